package session

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/apperr"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/db"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/model"
)

// fakeAdapter returns a fixed logit vector for every input, so the
// partition is fully predictable. Vocab is 4 tokens named "t0".."t3".
type fakeAdapter struct {
	logits []float32
	err    error
	calls  int
}

func (a *fakeAdapter) NextTokenLogits(_ context.Context, _ string) ([]float32, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	out := make([]float32, len(a.logits))
	copy(out, a.logits)
	return out, nil
}

func (a *fakeAdapter) TokenText(id int) string {
	if id < 0 || id >= len(a.logits) {
		return ""
	}
	return []string{"t0", "t1", "t2", "t3"}[id]
}

func (a *fakeAdapter) CountTokens(_ context.Context, text string) (int, error) {
	if a.err != nil {
		return 0, a.err
	}
	return len(strings.Fields(text)), nil
}

func (a *fakeAdapter) VocabSize() int { return len(a.logits) }

// memArchive records archive calls in memory.
type memArchive struct {
	records []db.SessionRecord
	tokens  map[string][]db.TokenRecord
}

func (m *memArchive) ArchiveSession(rec db.SessionRecord, tokens []db.TokenRecord) error {
	m.records = append(m.records, rec)
	if m.tokens == nil {
		m.tokens = make(map[string][]db.TokenRecord)
	}
	m.tokens[rec.ID] = tokens
	return nil
}

// Probabilities from these logits come out close to 0.02, 0.08, 0.30,
// 0.60 for t0..t3. With threshold 0.1 the above set is {t3, t2} and the
// tail is {t0, t1}.
func testLogits() []float32 {
	return []float32{2.0, 3.386, 4.708, 5.401}
}

func newTestService(t *testing.T, adapter model.Adapter) (*Service, *fakeClock, *memArchive) {
	t.Helper()
	catalog := model.NewCatalog()
	catalog.Register(
		model.Info{ID: "fake", Name: "Fake", Default: true},
		func() (model.Adapter, error) { return adapter, nil },
	)
	clock := newFakeClock()
	archive := &memArchive{}
	svc := NewService(catalog, Options{
		TTL:     time.Hour,
		Clock:   clock,
		Rand:    rand.New(rand.NewSource(1)),
		Archive: archive,
		Logf:    func(string, ...any) {},
	})
	return svc, clock, archive
}

func startedSession(t *testing.T, svc *Service) State {
	t.Helper()
	st, err := svc.CreateSession("fake")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	st, _, err = svc.SetPrompt(st.ID, "hello")
	if err != nil {
		t.Fatalf("SetPrompt: %v", err)
	}
	return st
}

func defaultDist() DistOptions {
	return DistOptions{Threshold: 0.1, Temperature: 1.0, OtherTopK: 10}
}

func TestCreateSessionUnknownModel(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAdapter{logits: testLogits()})
	_, err := svc.CreateSession("missing")
	if !apperr.IsKind(err, apperr.KindInvalidParameter) {
		t.Fatalf("got %v, want invalid_parameter", err)
	}
}

func TestDistributionBeforePrompt(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAdapter{logits: testLogits()})
	st, err := svc.CreateSession("fake")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	_, err = svc.Distribution(st.ID, defaultDist())
	if !apperr.IsKind(err, apperr.KindNoPromptSet) {
		t.Fatalf("got %v, want no_prompt_set", err)
	}
}

func TestSetPromptReplacesAndResets(t *testing.T) {
	adapter := &fakeAdapter{logits: testLogits()}
	svc, _, _ := newTestService(t, adapter)
	st := startedSession(t, svc)

	res, err := svc.Distribution(st.ID, defaultDist())
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	app, err := svc.AppendSelection(st.ID, ExplicitSelection{TokenID: res.Snapshot.AboveThreshold[0].ID})
	if err != nil {
		t.Fatalf("AppendSelection: %v", err)
	}
	if app.State.GenerationCount != 1 {
		t.Fatalf("GenerationCount = %d, want 1", app.State.GenerationCount)
	}

	st2, count, err := svc.SetPrompt(st.ID, "brand new prompt")
	if err != nil {
		t.Fatalf("SetPrompt again: %v", err)
	}
	if count != 3 {
		t.Errorf("prompt token count = %d, want 3", count)
	}
	if st2.GenerationCount != 0 {
		t.Errorf("GenerationCount after new prompt = %d, want 0", st2.GenerationCount)
	}
	if st2.CurrentText != "brand new prompt" {
		t.Errorf("CurrentText = %q, want the new prompt", st2.CurrentText)
	}
}

func TestSetPromptRejectsEmpty(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAdapter{logits: testLogits()})
	st, _ := svc.CreateSession("fake")
	for _, prompt := range []string{"", "   ", "\n\t"} {
		if _, _, err := svc.SetPrompt(st.ID, prompt); !apperr.IsKind(err, apperr.KindInvalidParameter) {
			t.Errorf("SetPrompt(%q): got %v, want invalid_parameter", prompt, err)
		}
	}
}

func TestDistributionRejectsBadParamsWithoutInference(t *testing.T) {
	adapter := &fakeAdapter{logits: testLogits()}
	svc, _, _ := newTestService(t, adapter)
	st := startedSession(t, svc)

	before := adapter.calls
	cases := []DistOptions{
		{Threshold: -0.1, Temperature: 1, OtherTopK: 10},
		{Threshold: 1.5, Temperature: 1, OtherTopK: 10},
		{Threshold: 0.1, Temperature: 0, OtherTopK: 10},
		{Threshold: 0.1, Temperature: -2, OtherTopK: 10},
		{Threshold: 0.1, Temperature: 1, OtherTopK: -1},
	}
	for _, opts := range cases {
		if _, err := svc.Distribution(st.ID, opts); !apperr.IsKind(err, apperr.KindInvalidParameter) {
			t.Errorf("Distribution(%+v): got %v, want invalid_parameter", opts, err)
		}
	}
	if adapter.calls != before {
		t.Errorf("invalid params reached the model: %d extra calls", adapter.calls-before)
	}
}

func TestAppendExplicitSelection(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAdapter{logits: testLogits()})
	st := startedSession(t, svc)

	res, err := svc.Distribution(st.ID, defaultDist())
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	if len(res.Snapshot.AboveThreshold) != 2 {
		t.Fatalf("above set size = %d, want 2", len(res.Snapshot.AboveThreshold))
	}

	top := res.Snapshot.AboveThreshold[0]
	app, err := svc.AppendSelection(st.ID, ExplicitSelection{TokenID: top.ID})
	if err != nil {
		t.Fatalf("AppendSelection: %v", err)
	}
	if app.PreviousText != "hello" {
		t.Errorf("PreviousText = %q, want %q", app.PreviousText, "hello")
	}
	if app.State.CurrentText != "hello"+top.Text {
		t.Errorf("CurrentText = %q, want %q", app.State.CurrentText, "hello"+top.Text)
	}
	if app.Entry.Category != CategoryAboveThreshold {
		t.Errorf("Category = %q, want above_threshold", app.Entry.Category)
	}
	if app.Other != nil {
		t.Error("explicit selection reported other-bucket info")
	}
}

func TestAppendWithoutDistribution(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAdapter{logits: testLogits()})
	st := startedSession(t, svc)

	_, err := svc.AppendSelection(st.ID, ExplicitSelection{TokenID: 3})
	if !apperr.IsKind(err, apperr.KindStaleSelection) {
		t.Fatalf("got %v, want stale_selection", err)
	}
}

func TestAppendTailTokenExplicitlyIsStale(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAdapter{logits: testLogits()})
	st := startedSession(t, svc)

	if _, err := svc.Distribution(st.ID, defaultDist()); err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	// t0 sits below the 0.1 threshold; it is not explicitly selectable.
	_, err := svc.AppendSelection(st.ID, ExplicitSelection{TokenID: 0})
	if !apperr.IsKind(err, apperr.KindStaleSelection) {
		t.Fatalf("got %v, want stale_selection", err)
	}

	stAfter, err := svc.SessionState(st.ID)
	if err != nil {
		t.Fatalf("SessionState: %v", err)
	}
	if stAfter.GenerationCount != 0 {
		t.Errorf("failed append mutated history: count = %d", stAfter.GenerationCount)
	}
}

func TestAppendInvalidatesSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAdapter{logits: testLogits()})
	st := startedSession(t, svc)

	res, err := svc.Distribution(st.ID, defaultDist())
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	top := res.Snapshot.AboveThreshold[0]
	if _, err := svc.AppendSelection(st.ID, ExplicitSelection{TokenID: top.ID}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	// Second selection against the consumed snapshot must be rejected.
	_, err = svc.AppendSelection(st.ID, ExplicitSelection{TokenID: top.ID})
	if !apperr.IsKind(err, apperr.KindStaleSelection) {
		t.Fatalf("second append: got %v, want stale_selection", err)
	}
}

func TestAppendOtherSelection(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAdapter{logits: testLogits()})
	st := startedSession(t, svc)

	res, err := svc.Distribution(st.ID, defaultDist())
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	app, err := svc.AppendSelection(st.ID, OtherSelection{})
	if err != nil {
		t.Fatalf("AppendSelection(other): %v", err)
	}
	if app.Entry.Category != CategoryOther || !app.Entry.SampledFromOther {
		t.Errorf("entry not flagged as other: %+v", app.Entry)
	}
	if app.Entry.Token.ID != 0 && app.Entry.Token.ID != 1 {
		t.Errorf("sampled token %d is not in the tail", app.Entry.Token.ID)
	}
	if app.Other == nil {
		t.Fatal("other-bucket info missing")
	}
	if app.Other.TokenCount != res.Snapshot.Other.TokenCount {
		t.Errorf("TokenCount = %d, want %d", app.Other.TokenCount, res.Snapshot.Other.TokenCount)
	}
	if app.Other.SelectedTokenRank < 1 || app.Other.SelectedTokenRank > app.Other.TokenCount {
		t.Errorf("rank %d out of range 1..%d", app.Other.SelectedTokenRank, app.Other.TokenCount)
	}
}

func TestUndoRemovesExactlyOne(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAdapter{logits: testLogits()})
	st := startedSession(t, svc)

	res, err := svc.Distribution(st.ID, defaultDist())
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	top := res.Snapshot.AboveThreshold[0]
	app, err := svc.AppendSelection(st.ID, ExplicitSelection{TokenID: top.ID})
	if err != nil {
		t.Fatalf("AppendSelection: %v", err)
	}

	undo, err := svc.Undo(st.ID)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if undo.Removed.Token.ID != top.ID {
		t.Errorf("removed token %d, want %d", undo.Removed.Token.ID, top.ID)
	}
	if undo.PreviousText != app.State.CurrentText {
		t.Errorf("PreviousText = %q, want %q", undo.PreviousText, app.State.CurrentText)
	}
	if undo.State.CurrentText != "hello" {
		t.Errorf("CurrentText after undo = %q, want %q", undo.State.CurrentText, "hello")
	}
}

func TestUndoEmptyHistory(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAdapter{logits: testLogits()})
	st := startedSession(t, svc)

	_, err := svc.Undo(st.ID)
	if !apperr.IsKind(err, apperr.KindCannotUndo) {
		t.Fatalf("got %v, want cannot_undo", err)
	}
	if got := apperr.TextOf(err); got != "hello" {
		t.Errorf("error current text = %q, want %q", got, "hello")
	}
}

func TestUndoInvalidatesSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAdapter{logits: testLogits()})
	st := startedSession(t, svc)

	res, err := svc.Distribution(st.ID, defaultDist())
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	top := res.Snapshot.AboveThreshold[0]
	if _, err := svc.AppendSelection(st.ID, ExplicitSelection{TokenID: top.ID}); err != nil {
		t.Fatalf("AppendSelection: %v", err)
	}
	if _, err := svc.Distribution(st.ID, defaultDist()); err != nil {
		t.Fatalf("second Distribution: %v", err)
	}
	if _, err := svc.Undo(st.ID); err != nil {
		t.Fatalf("Undo: %v", err)
	}

	_, err = svc.AppendSelection(st.ID, ExplicitSelection{TokenID: top.ID})
	if !apperr.IsKind(err, apperr.KindStaleSelection) {
		t.Fatalf("append after undo: got %v, want stale_selection", err)
	}
}

func TestInferenceFailureLeavesSessionIntact(t *testing.T) {
	adapter := &fakeAdapter{logits: testLogits()}
	svc, _, _ := newTestService(t, adapter)
	st := startedSession(t, svc)

	adapter.err = errors.New("backend down")
	_, err := svc.Distribution(st.ID, defaultDist())
	if !apperr.IsKind(err, apperr.KindInferenceFailure) {
		t.Fatalf("got %v, want inference_failure", err)
	}

	adapter.err = nil
	stAfter, err := svc.SessionState(st.ID)
	if err != nil {
		t.Fatalf("SessionState: %v", err)
	}
	if stAfter.CurrentText != "hello" || stAfter.GenerationCount != 0 {
		t.Errorf("failed inference mutated session: %+v", stAfter)
	}
	if _, err := svc.Distribution(st.ID, defaultDist()); err != nil {
		t.Errorf("session unusable after recovered failure: %v", err)
	}
}

func TestDeleteSessionArchives(t *testing.T) {
	svc, _, archive := newTestService(t, &fakeAdapter{logits: testLogits()})
	st := startedSession(t, svc)

	res, err := svc.Distribution(st.ID, defaultDist())
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	top := res.Snapshot.AboveThreshold[0]
	if _, err := svc.AppendSelection(st.ID, ExplicitSelection{TokenID: top.ID}); err != nil {
		t.Fatalf("AppendSelection: %v", err)
	}

	if err := svc.DeleteSession(st.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := svc.SessionState(st.ID); !apperr.IsKind(err, apperr.KindSessionNotFound) {
		t.Errorf("state after delete: got %v, want session_not_found", err)
	}

	if len(archive.records) != 1 {
		t.Fatalf("archived %d sessions, want 1", len(archive.records))
	}
	rec := archive.records[0]
	if rec.Reason != db.ReasonDeleted {
		t.Errorf("reason = %q, want %q", rec.Reason, db.ReasonDeleted)
	}
	if rec.TokenCount != 1 || len(archive.tokens[rec.ID]) != 1 {
		t.Errorf("archived token count %d/%d, want 1/1", rec.TokenCount, len(archive.tokens[rec.ID]))
	}
	if rec.FinalText != "hello"+top.Text {
		t.Errorf("final text = %q, want %q", rec.FinalText, "hello"+top.Text)
	}
}

func TestSweepArchivesExpired(t *testing.T) {
	svc, clock, archive := newTestService(t, &fakeAdapter{logits: testLogits()})
	st := startedSession(t, svc)

	clock.advance(2 * time.Hour)
	if n := svc.SweepOnce(); n != 1 {
		t.Fatalf("SweepOnce removed %d, want 1", n)
	}
	if _, err := svc.SessionState(st.ID); !apperr.IsKind(err, apperr.KindSessionNotFound) {
		t.Errorf("state after sweep: got %v, want session_not_found", err)
	}
	if len(archive.records) != 1 || archive.records[0].Reason != db.ReasonExpired {
		t.Fatalf("expired session not archived with reason %q: %+v", db.ReasonExpired, archive.records)
	}
}

func TestModelsListsDefaultFirst(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAdapter{logits: testLogits()})
	models := svc.Models()
	if len(models) != 1 || models[0].ID != "fake" {
		t.Fatalf("Models = %+v, want the fake model", models)
	}
}

// slowAdapter blocks inside NextTokenLogits until released, to hold a
// session's lock across a long inference.
type slowAdapter struct {
	fakeAdapter
	started chan struct{}
	release chan struct{}
}

func (a *slowAdapter) NextTokenLogits(ctx context.Context, text string) ([]float32, error) {
	close(a.started)
	select {
	case <-a.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return a.fakeAdapter.NextTokenLogits(ctx, text)
}

func TestBusySessionDoesNotStallOthers(t *testing.T) {
	adapter := &slowAdapter{
		fakeAdapter: fakeAdapter{logits: testLogits()},
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	svc, _, _ := newTestService(t, adapter)

	busy := startedSession(t, svc)
	other := startedSession(t, svc)

	distDone := make(chan error, 1)
	go func() {
		_, err := svc.Distribution(busy.ID, defaultDist())
		distDone <- err
	}()
	<-adapter.started

	// A second request against the busy session queues behind its lock.
	stateDone := make(chan error, 1)
	go func() {
		_, err := svc.SessionState(busy.ID)
		stateDone <- err
	}()

	// Requests for an unrelated session must complete while the busy
	// session is still mid-inference.
	begin := time.Now()
	if _, err := svc.SessionState(other.ID); err != nil {
		t.Fatalf("SessionState(other): %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 500*time.Millisecond {
		t.Fatalf("unrelated session stalled %v behind busy session", elapsed)
	}

	close(adapter.release)
	if err := <-distDone; err != nil {
		t.Fatalf("Distribution(busy): %v", err)
	}
	if err := <-stateDone; err != nil {
		t.Fatalf("SessionState(busy): %v", err)
	}
}
