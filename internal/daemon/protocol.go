// Package daemon provides the NDJSON protocol, the Unix-socket server,
// and the client for talking to wheeld. Each connection carries one
// command per line and one response line per command.
package daemon

import (
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/db"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/engine"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/model"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/session"
)

// Command names accepted by the daemon.
const (
	CmdCreateSession = "create_session"
	CmdSetPrompt     = "set_prompt"
	CmdDistribution  = "get_distribution"
	CmdAppend        = "append_selection"
	CmdUndo          = "undo"
	CmdDeleteSession = "delete_session"
	CmdSessionState  = "get_state"
	CmdListModels    = "list_models"
	CmdRecent        = "recent_sessions"
	CmdPing          = "ping"
)

// Selection categories on the wire.
const (
	SelectToken = "token"
	SelectOther = "other"
)

// Command is one client request. Optional numeric knobs are pointers so
// absence is distinguishable from zero.
type Command struct {
	Cmd       string `json:"cmd"`
	SessionID string `json:"sessionId,omitempty"`
	Model     string `json:"model,omitempty"`
	Prompt    string `json:"prompt,omitempty"`

	Threshold   *float64 `json:"threshold,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	OtherTopK   *int     `json:"otherTopK,omitempty"`

	Select  string `json:"select,omitempty"` // "token" or "other"
	TokenID *int   `json:"tokenId,omitempty"`

	Limit *int `json:"limit,omitempty"`
}

// OtherSelectionPayload describes a tail draw in a response.
type OtherSelectionPayload struct {
	TotalProbability  float64 `json:"totalProbability"`
	TokenCount        int     `json:"tokenCount"`
	SelectedTokenRank int     `json:"selectedTokenRank"`
}

// ArchivedSession is one finished session as reported by recent_sessions.
type ArchivedSession struct {
	Record db.SessionRecord `json:"record"`
	Tokens []db.TokenRecord `json:"tokens,omitempty"`
}

// Response is the daemon's reply to one command. On failure OK is false
// and ErrorKind carries the machine-readable error class.
type Response struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`

	Session      *session.State         `json:"session,omitempty"`
	CurrentText  string                 `json:"currentText,omitempty"`
	PromptTokens *int                   `json:"promptTokens,omitempty"`
	Distribution *engine.Snapshot       `json:"distribution,omitempty"`
	Appended     *session.HistoryEntry  `json:"appended,omitempty"`
	Removed      *session.HistoryEntry  `json:"removed,omitempty"`
	PreviousText string                 `json:"previousText,omitempty"`
	Other        *OtherSelectionPayload `json:"otherSelection,omitempty"`
	Models       []model.Info           `json:"models,omitempty"`
	Archived     []ArchivedSession      `json:"archived,omitempty"`
	Sessions     *int                   `json:"sessions,omitempty"`
}

// Float64Ptr returns a pointer to v. Convenience for building commands.
func Float64Ptr(v float64) *float64 { return &v }

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
