// Package db provides SQLite persistence for finished wheel sessions.
// Live sessions stay in memory; a session is written here once, when it
// is deleted or swept out by the TTL.
package db

import "time"

// Archive reasons.
const (
	ReasonDeleted = "deleted"
	ReasonExpired = "expired"
)

// SessionRecord is one archived session.
type SessionRecord struct {
	ID            string
	ModelName     string
	InitialPrompt string
	FinalText     string
	TokenCount    int
	Reason        string
	CreatedAt     time.Time
	EndedAt       time.Time
}

// TokenRecord is one applied token of an archived session, in selection
// order.
type TokenRecord struct {
	SessionID        string
	Position         int
	TokenID          int
	TokenText        string
	Probability      float64
	Category         string
	SampledFromOther bool
	RankInOther      int // 1-based; 0 when the token was picked explicitly
	SelectedAt       time.Time
}
