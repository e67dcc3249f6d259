package app

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/daemon"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/engine"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/session"
)

func testSnapshot() *engine.Snapshot {
	return &engine.Snapshot{
		AboveThreshold: []engine.Candidate{
			{ID: 3, Text: " the", Probability: 0.6},
			{ID: 2, Text: " a", Probability: 0.3},
		},
		Other:          engine.OtherBucket{TotalProbability: 0.1, TokenCount: 254},
		Threshold:      0.01,
		Temperature:    1.0,
		VocabularySize: 256,
	}
}

func TestNewModel(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	if m.connected {
		t.Error("new model should not be connected")
	}
	if m.mode != ModePrompt {
		t.Error("new model should start in prompt mode")
	}
	if m.threshold != engine.DefaultThreshold {
		t.Errorf("threshold = %v, want default", m.threshold)
	}
	if m.temperature != engine.DefaultTemperature {
		t.Errorf("temperature = %v, want default", m.temperature)
	}
}

func TestDaemonConnectError(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.width = 80
	m.height = 24

	updated, _ := m.Update(DaemonConnectErrorMsg{Err: fmt.Errorf("connection refused")})
	model := updated.(Model)

	if model.connected {
		t.Error("should not be connected after error")
	}
	if !model.reconnecting {
		t.Error("should be reconnecting after connect error")
	}
}

func TestSessionCreated(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true

	updated, _ := m.Update(SessionCreatedMsg{Response: daemon.Response{
		OK:      true,
		Session: &session.State{ID: "sess-1", ModelName: "bytegram"},
	}})
	model := updated.(Model)

	if model.sessionID != "sess-1" {
		t.Errorf("sessionID = %q, want %q", model.sessionID, "sess-1")
	}
	if model.modelName != "bytegram" {
		t.Errorf("modelName = %q, want bytegram", model.modelName)
	}
}

func TestPromptEntryTyping(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true
	m.sessionID = "sess-1"

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	model := updated.(Model)
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeySpace})
	model = updated.(Model)
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("there")})
	model = updated.(Model)

	if model.promptInput != "hi there" {
		t.Errorf("promptInput = %q, want %q", model.promptInput, "hi there")
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	model = updated.(Model)
	if model.promptInput != "hi ther" {
		t.Errorf("after backspace = %q, want %q", model.promptInput, "hi ther")
	}
}

func TestPromptEnterSendsSetPrompt(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true
	m.sessionID = "sess-1"
	m.promptInput = "hello"

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model := updated.(Model)

	if cmd == nil {
		t.Error("enter with a prompt should produce a command")
	}
	if !model.loading {
		t.Error("should be loading while the prompt is set")
	}
}

func TestPromptEnterRejectsBlank(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true
	m.sessionID = "sess-1"
	m.promptInput = "   "

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("blank prompt should not be submitted")
	}
}

func TestPromptSetEntersWheelMode(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true
	m.sessionID = "sess-1"

	count := 1
	updated, cmd := m.Update(PromptSetMsg{Response: daemon.Response{
		OK:           true,
		Session:      &session.State{ID: "sess-1", CurrentText: "hello"},
		CurrentText:  "hello",
		PromptTokens: &count,
	}})
	model := updated.(Model)

	if model.mode != ModeWheel {
		t.Error("should switch to wheel mode after prompt is set")
	}
	if model.currentText != "hello" {
		t.Errorf("currentText = %q, want hello", model.currentText)
	}
	if cmd == nil {
		t.Error("should immediately request a distribution")
	}
}

func TestDistributionBuildsRows(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true
	m.mode = ModeWheel
	m.loading = true

	updated, _ := m.Update(DistributionMsg{Response: daemon.Response{
		OK:           true,
		CurrentText:  "hello",
		Distribution: testSnapshot(),
	}})
	model := updated.(Model)

	if model.loading {
		t.Error("should no longer be loading")
	}
	// Two candidates plus the other row.
	if len(model.rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(model.rows))
	}
	if model.rows[0].candidate.ID != 3 {
		t.Errorf("rows[0] = %d, want token 3", model.rows[0].candidate.ID)
	}
	if !model.rows[2].isOther {
		t.Error("last row should be the other bucket")
	}
}

func TestWheelNavigation(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true
	m.mode = ModeWheel
	m.setDistribution(testSnapshot())

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	model := updated.(Model)
	if model.cursor != 1 {
		t.Errorf("after j, cursor = %d, want 1", model.cursor)
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	model = updated.(Model)
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	model = updated.(Model)
	if model.cursor != 2 {
		t.Errorf("cursor should clamp at last row, got %d", model.cursor)
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	model = updated.(Model)
	if model.cursor != 1 {
		t.Errorf("after k, cursor = %d, want 1", model.cursor)
	}
}

func TestSelectionAppliedRefreshes(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true
	m.mode = ModeWheel
	m.sessionID = "sess-1"
	m.setDistribution(testSnapshot())

	updated, cmd := m.Update(SelectionAppliedMsg{Response: daemon.Response{
		OK: true,
		Session: &session.State{
			ID:          "sess-1",
			CurrentText: "hello the",
			TokenHistory: []session.HistoryEntry{
				{Token: engine.Candidate{ID: 3, Text: " the", Probability: 0.6}},
			},
		},
		CurrentText: "hello the",
	}})
	model := updated.(Model)

	if model.currentText != "hello the" {
		t.Errorf("currentText = %q, want %q", model.currentText, "hello the")
	}
	if len(model.history) != 1 {
		t.Errorf("history = %d entries, want 1", len(model.history))
	}
	if model.dist != nil {
		t.Error("stale distribution should be dropped after a selection")
	}
	if cmd == nil {
		t.Error("should request a fresh distribution")
	}
}

func TestSelectionErrorIsTransient(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true
	m.mode = ModeWheel
	m.loading = true

	updated, cmd := m.Update(SelectionAppliedMsg{Response: daemon.Response{
		OK:        false,
		Error:     "stale_selection: token 9 is not in the current above-threshold set",
		ErrorKind: "stale_selection",
	}})
	model := updated.(Model)

	if model.errorMessage == "" {
		t.Error("error should be displayed")
	}
	if model.loading {
		t.Error("loading should clear on error")
	}
	if cmd == nil {
		t.Error("transient error should schedule a clear")
	}

	updated, _ = model.Update(ClearTransientErrorMsg{})
	model = updated.(Model)
	if model.errorMessage != "" {
		t.Error("transient error should clear")
	}
}

func TestUndoKeyProducesCommand(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true
	m.mode = ModeWheel
	m.sessionID = "sess-1"
	m.setDistribution(testSnapshot())

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'u'}})
	model := updated.(Model)
	if cmd == nil {
		t.Error("u should produce an undo command")
	}
	if !model.loading {
		t.Error("should be loading during undo")
	}
}

func TestTemperatureKeys(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true
	m.mode = ModeWheel
	m.sessionID = "sess-1"
	m.setDistribution(testSnapshot())

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	model := updated.(Model)
	if model.temperature <= 1.0 {
		t.Errorf("temperature = %v, want > 1.0", model.temperature)
	}

	// Temperature never drops to zero.
	model.loading = false
	for i := 0; i < 30; i++ {
		updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'-'}})
		model = updated.(Model)
		model.loading = false
	}
	if model.temperature <= 0 {
		t.Errorf("temperature = %v, must stay positive", model.temperature)
	}
}

func TestPromptKeyReturnsToPromptMode(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true
	m.mode = ModeWheel
	m.setDistribution(testSnapshot())

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	model := updated.(Model)
	if model.mode != ModePrompt {
		t.Error("p should switch to prompt mode")
	}
	if model.promptInput != "" {
		t.Error("prompt input should start empty")
	}
}

func TestViewRendersWheel(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	m.connected = true
	m.mode = ModeWheel
	m.width = 100
	m.height = 30
	m.currentText = "hello"
	m.setDistribution(testSnapshot())

	view := m.View()
	if view == "" {
		t.Fatal("view should not be empty")
	}
	if !strings.Contains(view, "TOKEN WHEEL") {
		t.Error("view should contain the title")
	}
	if !strings.Contains(view, "OTHER") {
		t.Error("view should show the other row")
	}
}

func TestViewWithoutSize(t *testing.T) {
	m := New("/tmp/wheeld.sock")
	view := m.View()
	if view != "Initializing..." {
		t.Errorf("view without size = %q, want 'Initializing...'", view)
	}
}
