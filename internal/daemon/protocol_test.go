package daemon

import (
	"encoding/json"
	"testing"
)

func TestCommandMarshalDistribution(t *testing.T) {
	cmd := Command{
		Cmd:         CmdDistribution,
		SessionID:   "abc-123",
		Threshold:   Float64Ptr(0.05),
		Temperature: Float64Ptr(0.8),
		OtherTopK:   IntPtr(5),
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Command
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Cmd != CmdDistribution {
		t.Errorf("cmd = %q, want %q", got.Cmd, CmdDistribution)
	}
	if got.SessionID != "abc-123" {
		t.Errorf("sessionId = %q, want %q", got.SessionID, "abc-123")
	}
	if got.Threshold == nil || *got.Threshold != 0.05 {
		t.Errorf("threshold = %v, want 0.05", got.Threshold)
	}
	if got.Temperature == nil || *got.Temperature != 0.8 {
		t.Errorf("temperature = %v, want 0.8", got.Temperature)
	}
	if got.OtherTopK == nil || *got.OtherTopK != 5 {
		t.Errorf("otherTopK = %v, want 5", got.OtherTopK)
	}
}

func TestCommandOmitsEmptyFields(t *testing.T) {
	cmd := Command{Cmd: CmdUndo, SessionID: "abc-123"}
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}

	for _, field := range []string{"threshold", "temperature", "otherTopK", "tokenId", "select", "prompt", "model", "limit"} {
		if _, ok := raw[field]; ok {
			t.Errorf("undo command should omit %s", field)
		}
	}
}

func TestCommandDistinguishesZeroThreshold(t *testing.T) {
	withZero := Command{Cmd: CmdDistribution, Threshold: Float64Ptr(0)}
	without := Command{Cmd: CmdDistribution}

	dataZero, _ := json.Marshal(withZero)
	dataNone, _ := json.Marshal(without)

	var rawZero, rawNone map[string]any
	json.Unmarshal(dataZero, &rawZero)
	json.Unmarshal(dataNone, &rawNone)

	if _, ok := rawZero["threshold"]; !ok {
		t.Error("explicit zero threshold was dropped from the wire")
	}
	if _, ok := rawNone["threshold"]; ok {
		t.Error("absent threshold appeared on the wire")
	}
}

func TestResponseErrorRoundTrip(t *testing.T) {
	resp := Response{
		OK:          false,
		Error:       "cannot_undo: no generated tokens to remove",
		ErrorKind:   "cannot_undo",
		CurrentText: "the prompt",
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Response
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.OK {
		t.Error("ok = true, want false")
	}
	if got.ErrorKind != "cannot_undo" {
		t.Errorf("errorKind = %q, want cannot_undo", got.ErrorKind)
	}
	if got.CurrentText != "the prompt" {
		t.Errorf("currentText = %q, want %q", got.CurrentText, "the prompt")
	}
}

func TestResponseOmitsEmptyPayloads(t *testing.T) {
	resp := Response{OK: true}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}

	for _, field := range []string{"session", "distribution", "appended", "removed", "otherSelection", "models", "archived", "error", "errorKind"} {
		if _, ok := raw[field]; ok {
			t.Errorf("bare ok response should omit %s", field)
		}
	}
}
