// wheel-mcp exposes the token wheel to MCP clients over stdio, proxying
// every tool call to a running wheeld.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/config"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/daemon"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/engine"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "wheel-mcp: load config: %v\n", err)
		os.Exit(1)
	}

	client, err := daemon.Connect(cfg.SocketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wheel-mcp: %v (is wheeld running?)\n", err)
		os.Exit(1)
	}
	defer client.Close()

	s := server.NewMCPServer("token-wheel", "1.0.0", server.WithToolCapabilities(false))
	registerTools(s, client)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "wheel-mcp: %v\n", err)
		os.Exit(1)
	}
}

func registerTools(s *server.MCPServer, client *daemon.Client) {
	s.AddTool(
		mcp.NewTool("create_session",
			mcp.WithDescription("Create a new token wheel session bound to a model."),
			mcp.WithString("model", mcp.Description("Model id; defaults to the daemon's default model.")),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return proxy(client, daemon.Command{
				Cmd:   daemon.CmdCreateSession,
				Model: req.GetString("model", ""),
			})
		},
	)

	s.AddTool(
		mcp.NewTool("set_prompt",
			mcp.WithDescription("Set or replace the session prompt. Replacing clears the token history."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id.")),
			mcp.WithString("prompt", mcp.Required(), mcp.Description("The prompt text.")),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			prompt, err := req.RequireString("prompt")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return proxy(client, daemon.Command{
				Cmd:       daemon.CmdSetPrompt,
				SessionID: sessionID,
				Prompt:    prompt,
			})
		},
	)

	s.AddTool(
		mcp.NewTool("get_distribution",
			mcp.WithDescription("Compute the next-token distribution: individual tokens at or above the threshold plus an aggregated 'other' bucket."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id.")),
			mcp.WithNumber("threshold", mcp.Description("Probability threshold in [0,1]. Default 0.01.")),
			mcp.WithNumber("temperature", mcp.Description("Softmax temperature, > 0. Default 1.0.")),
			mcp.WithNumber("other_top_k", mcp.Description("How many tail tokens to include as a sample. Default 10.")),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			threshold := req.GetFloat("threshold", engine.DefaultThreshold)
			temperature := req.GetFloat("temperature", engine.DefaultTemperature)
			otherTopK := req.GetInt("other_top_k", engine.DefaultOtherTopK)
			return proxy(client, daemon.Command{
				Cmd:         daemon.CmdDistribution,
				SessionID:   sessionID,
				Threshold:   daemon.Float64Ptr(threshold),
				Temperature: daemon.Float64Ptr(temperature),
				OtherTopK:   daemon.IntPtr(otherTopK),
			})
		},
	)

	s.AddTool(
		mcp.NewTool("select_token",
			mcp.WithDescription("Append a specific above-threshold token from the most recent distribution."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id.")),
			mcp.WithNumber("token_id", mcp.Required(), mcp.Description("Token id from the above-threshold set.")),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			tokenID, err := req.RequireInt("token_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return proxy(client, daemon.Command{
				Cmd:       daemon.CmdAppend,
				SessionID: sessionID,
				Select:    daemon.SelectToken,
				TokenID:   daemon.IntPtr(tokenID),
			})
		},
	)

	s.AddTool(
		mcp.NewTool("select_other",
			mcp.WithDescription("Spin the wheel: sample one token from the 'other' bucket, weighted by probability."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id.")),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return proxy(client, daemon.Command{
				Cmd:       daemon.CmdAppend,
				SessionID: sessionID,
				Select:    daemon.SelectOther,
			})
		},
	)

	s.AddTool(
		mcp.NewTool("undo",
			mcp.WithDescription("Remove the most recently generated token. The prompt itself cannot be undone."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id.")),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return proxy(client, daemon.Command{Cmd: daemon.CmdUndo, SessionID: sessionID})
		},
	)

	s.AddTool(
		mcp.NewTool("get_state",
			mcp.WithDescription("Get the full session state: prompt, current text, and the token history."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id.")),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return proxy(client, daemon.Command{Cmd: daemon.CmdSessionState, SessionID: sessionID})
		},
	)

	s.AddTool(
		mcp.NewTool("delete_session",
			mcp.WithDescription("End a session. Its trace is archived."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id.")),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return proxy(client, daemon.Command{Cmd: daemon.CmdDeleteSession, SessionID: sessionID})
		},
	)

	s.AddTool(
		mcp.NewTool("list_models",
			mcp.WithDescription("List the models the daemon can run."),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return proxy(client, daemon.Command{Cmd: daemon.CmdListModels})
		},
	)

	s.AddTool(
		mcp.NewTool("recent_sessions",
			mcp.WithDescription("List recently archived sessions with their token traces."),
			mcp.WithNumber("limit", mcp.Description("How many sessions to return. Default 10.")),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return proxy(client, daemon.Command{
				Cmd:   daemon.CmdRecent,
				Limit: daemon.IntPtr(req.GetInt("limit", 10)),
			})
		},
	)
}

// proxy forwards a command to the daemon and returns the response as a
// JSON tool result. Daemon-side failures become tool errors, not
// protocol errors.
func proxy(client *daemon.Client, cmd daemon.Command) (*mcp.CallToolResult, error) {
	resp, err := client.Send(cmd)
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}
	if !resp.OK {
		return mcp.NewToolResultError(resp.Error), nil
	}
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
