package app

import "github.com/cmmiller26/ai-fun-token-wheel-v2/internal/daemon"

// DaemonConnectedMsg is sent when the daemon connection is established.
type DaemonConnectedMsg struct {
	Client *daemon.Client
}

// DaemonConnectErrorMsg is sent when the daemon connection fails.
type DaemonConnectErrorMsg struct {
	Err error
}

// DaemonErrorMsg is sent when a command cannot reach the daemon.
type DaemonErrorMsg struct {
	Err error
}

// SessionCreatedMsg carries the response to a create_session command.
type SessionCreatedMsg struct {
	Response daemon.Response
}

// PromptSetMsg carries the response to a set_prompt command.
type PromptSetMsg struct {
	Response daemon.Response
}

// DistributionMsg carries a fresh next-token distribution.
type DistributionMsg struct {
	Response daemon.Response
}

// SelectionAppliedMsg carries the response to an append_selection command.
type SelectionAppliedMsg struct {
	Response daemon.Response
}

// UndoneMsg carries the response to an undo command.
type UndoneMsg struct {
	Response daemon.Response
}

// ModelsMsg carries the daemon's model catalog.
type ModelsMsg struct {
	Response daemon.Response
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}
