// Package session holds the mutable side of the token wheel: the
// append-only token history, the per-session state machine, the registry
// that owns session lifetimes, and the service that ties them to the
// distribution engine and the model adapter.
package session

import (
	"strings"
	"time"

	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/engine"
)

// Category says which side of the threshold a token came from.
type Category string

const (
	CategoryAboveThreshold Category = "above_threshold"
	CategoryOther          Category = "other"
)

// HistoryEntry is one applied token selection. Created by append,
// destroyed by undo, never otherwise mutated.
type HistoryEntry struct {
	Token            engine.Candidate `json:"token"`
	Category         Category         `json:"category"`
	SampledFromOther bool             `json:"sampledFromOther,omitempty"`
	RankInOther      int              `json:"rankInOther,omitempty"` // 1-based; 0 when picked explicitly
	SelectedAt       time.Time        `json:"selectedAt"`
}

// History is the ordered sequence of applied tokens for one session.
// It is a stack with full iterate access: the UI shows the whole trace,
// not just the top. The initial prompt is never part of the sequence.
type History struct {
	entries []HistoryEntry
}

// Append grows the sequence. It always succeeds.
func (h *History) Append(e HistoryEntry) {
	h.entries = append(h.entries, e)
}

// PeekLast returns the most recent entry without removing it.
func (h *History) PeekLast() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// PopLast removes and returns the most recent entry. The second return is
// false when the history is empty, which is the "cannot undo" case.
func (h *History) PopLast() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	e := h.entries[len(h.entries)-1]
	h.entries = h.entries[:len(h.entries)-1]
	return e, true
}

// Entries returns a copy of the sequence in selection order.
func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) Len() int {
	return len(h.entries)
}

// Reset drops every entry.
func (h *History) Reset() {
	h.entries = nil
}

// CurrentText reconstructs the text state: the prompt followed by every
// applied token in order. Byte-for-byte reproducible from the same inputs.
func (h *History) CurrentText(prompt string) string {
	if len(h.entries) == 0 {
		return prompt
	}
	var b strings.Builder
	b.WriteString(prompt)
	for _, e := range h.entries {
		b.WriteString(e.Token.Text)
	}
	return b.String()
}
