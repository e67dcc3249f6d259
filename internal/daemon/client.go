package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/apperr"
)

// Client talks to wheeld over its Unix socket. Safe for use from
// multiple goroutines; commands are serialized on the connection.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
}

// Connect dials the daemon Unix socket.
func Connect(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB buffer

	return &Client{conn: conn, scanner: scanner}, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Send writes one command and reads one response line. Transport
// failures are returned as plain errors; a daemon-side failure comes
// back as a Response with OK false.
func (c *Client) Send(cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, fmt.Errorf("marshal command: %w", err)
	}

	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("write command: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Response{}, fmt.Errorf("read response: %w", err)
		}
		return Response{}, fmt.Errorf("connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("unmarshal response: %w", err)
	}

	return resp, nil
}

// Call sends a command and converts a daemon-side failure into an
// apperr.Error carrying the wire error kind, so callers can branch on
// kinds the same way they would against the service directly.
func (c *Client) Call(cmd Command) (Response, error) {
	resp, err := c.Send(cmd)
	if err != nil {
		return Response{}, err
	}
	if !resp.OK {
		kind := apperr.Kind(resp.ErrorKind)
		if kind == "" {
			kind = apperr.KindInternal
		}
		return resp, &apperr.Error{
			Kind:        kind,
			Message:     resp.Error,
			CurrentText: resp.CurrentText,
		}
	}
	return resp, nil
}
