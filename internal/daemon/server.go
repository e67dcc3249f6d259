package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/apperr"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/db"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/engine"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/session"
)

// Recents reads back archived sessions. *db.Store satisfies it.
type Recents interface {
	RecentSessions(limit int) ([]db.SessionRecord, error)
	TokensForSession(sessionID string) ([]db.TokenRecord, error)
}

// Server accepts NDJSON connections on a Unix socket and dispatches
// commands to the session service.
type Server struct {
	svc     *session.Service
	recents Recents
	logf    func(format string, args ...any)

	mu       sync.Mutex
	listener net.Listener
}

func NewServer(svc *session.Service, recents Recents, logf func(format string, args ...any)) *Server {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Server{svc: svc, recents: recents, logf: logf}
}

// Listen binds the Unix socket, removing a stale socket file first.
func (s *Server) Listen(socketPath string) error {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed. Each connection gets its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("serve before listen")
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

// Close shuts the listener down.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cmd Command
		var resp Response
		if err := json.Unmarshal(line, &cmd); err != nil {
			resp = errorResponse(apperr.Newf(apperr.KindInvalidParameter, "malformed command: %v", err))
		} else {
			resp = s.dispatch(cmd)
		}

		if err := enc.Encode(resp); err != nil {
			s.logf("write response: %v", err)
			return
		}
	}
}

func (s *Server) dispatch(cmd Command) Response {
	switch cmd.Cmd {
	case CmdPing:
		// Ping doubles as a health check, reporting live session count.
		return Response{OK: true, Sessions: IntPtr(s.svc.SessionCount())}
	case CmdCreateSession:
		return s.createSession(cmd)
	case CmdSetPrompt:
		return s.setPrompt(cmd)
	case CmdDistribution:
		return s.distribution(cmd)
	case CmdAppend:
		return s.appendSelection(cmd)
	case CmdUndo:
		return s.undo(cmd)
	case CmdDeleteSession:
		return s.deleteSession(cmd)
	case CmdSessionState:
		return s.sessionState(cmd)
	case CmdListModels:
		return Response{OK: true, Models: s.svc.Models()}
	case CmdRecent:
		return s.recentSessions(cmd)
	default:
		return errorResponse(apperr.Newf(apperr.KindInvalidParameter, "unknown command %q", cmd.Cmd))
	}
}

func (s *Server) createSession(cmd Command) Response {
	name := cmd.Model
	if name == "" {
		if models := s.svc.Models(); len(models) > 0 {
			name = models[0].ID
		}
	}
	st, err := s.svc.CreateSession(name)
	if err != nil {
		return errorResponse(err)
	}
	return Response{OK: true, Session: &st, CurrentText: st.CurrentText}
}

func (s *Server) setPrompt(cmd Command) Response {
	st, count, err := s.svc.SetPrompt(cmd.SessionID, cmd.Prompt)
	if err != nil {
		return errorResponse(err)
	}
	return Response{OK: true, Session: &st, CurrentText: st.CurrentText, PromptTokens: &count}
}

func (s *Server) distribution(cmd Command) Response {
	opts := session.DistOptions{
		Threshold:   engine.DefaultThreshold,
		Temperature: engine.DefaultTemperature,
		OtherTopK:   engine.DefaultOtherTopK,
	}
	if cmd.Threshold != nil {
		opts.Threshold = *cmd.Threshold
	}
	if cmd.Temperature != nil {
		opts.Temperature = *cmd.Temperature
	}
	if cmd.OtherTopK != nil {
		opts.OtherTopK = *cmd.OtherTopK
	}

	res, err := s.svc.Distribution(cmd.SessionID, opts)
	if err != nil {
		return errorResponse(err)
	}
	return Response{OK: true, CurrentText: res.CurrentText, Distribution: res.Snapshot}
}

func (s *Server) appendSelection(cmd Command) Response {
	var sel session.Selection
	switch cmd.Select {
	case SelectToken:
		if cmd.TokenID == nil {
			return errorResponse(apperr.New(apperr.KindInvalidParameter, "token selection requires tokenId"))
		}
		sel = session.ExplicitSelection{TokenID: *cmd.TokenID}
	case SelectOther:
		sel = session.OtherSelection{}
	default:
		return errorResponse(apperr.Newf(apperr.KindInvalidParameter, "unknown selection %q", cmd.Select))
	}

	res, err := s.svc.AppendSelection(cmd.SessionID, sel)
	if err != nil {
		return errorResponse(err)
	}

	resp := Response{
		OK:           true,
		Session:      &res.State,
		CurrentText:  res.State.CurrentText,
		Appended:     &res.Entry,
		PreviousText: res.PreviousText,
	}
	if res.Other != nil {
		resp.Other = &OtherSelectionPayload{
			TotalProbability:  res.Other.TotalProbability,
			TokenCount:        res.Other.TokenCount,
			SelectedTokenRank: res.Other.SelectedTokenRank,
		}
	}
	return resp
}

func (s *Server) undo(cmd Command) Response {
	res, err := s.svc.Undo(cmd.SessionID)
	if err != nil {
		return errorResponse(err)
	}
	return Response{
		OK:           true,
		Session:      &res.State,
		CurrentText:  res.State.CurrentText,
		Removed:      &res.Removed,
		PreviousText: res.PreviousText,
	}
}

func (s *Server) deleteSession(cmd Command) Response {
	if err := s.svc.DeleteSession(cmd.SessionID); err != nil {
		return errorResponse(err)
	}
	return Response{OK: true}
}

func (s *Server) sessionState(cmd Command) Response {
	st, err := s.svc.SessionState(cmd.SessionID)
	if err != nil {
		return errorResponse(err)
	}
	return Response{OK: true, Session: &st, CurrentText: st.CurrentText}
}

func (s *Server) recentSessions(cmd Command) Response {
	if s.recents == nil {
		return Response{OK: true}
	}
	limit := 10
	if cmd.Limit != nil {
		limit = *cmd.Limit
	}
	records, err := s.recents.RecentSessions(limit)
	if err != nil {
		return errorResponse(apperr.Wrap(apperr.KindInternal, "read archive", err))
	}
	archived := make([]ArchivedSession, 0, len(records))
	for _, rec := range records {
		tokens, err := s.recents.TokensForSession(rec.ID)
		if err != nil {
			return errorResponse(apperr.Wrap(apperr.KindInternal, "read archive", err))
		}
		archived = append(archived, ArchivedSession{Record: rec, Tokens: tokens})
	}
	return Response{OK: true, Archived: archived}
}

// errorResponse maps an error to a wire response, preserving the kind
// and the current text when the error carries them.
func errorResponse(err error) Response {
	return Response{
		OK:          false,
		Error:       err.Error(),
		ErrorKind:   string(apperr.KindOf(err)),
		CurrentText: apperr.TextOf(err),
	}
}
