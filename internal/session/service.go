package session

import (
	"context"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/apperr"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/db"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/engine"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/model"
)

// Archiver receives finished sessions. *db.Store satisfies it; tests
// substitute their own.
type Archiver interface {
	ArchiveSession(rec db.SessionRecord, tokens []db.TokenRecord) error
}

// Options configure a Service. Zero values fall back to production
// defaults; tests inject a fake clock and a seeded rng.
type Options struct {
	TTL              time.Duration
	SweepInterval    time.Duration
	InferenceTimeout time.Duration
	Workers          int
	Clock            Clock
	Rand             *rand.Rand
	Archive          Archiver
	Logf             func(format string, args ...any)
}

// Service exposes the wheel operations over the registry, the engine,
// and the model catalog. All mutation is serialized per session; the
// model forward pass runs inside a bounded worker pool so one slow model
// cannot stall unrelated sessions beyond the pool size.
type Service struct {
	registry *Registry
	catalog  *model.Catalog
	clock    Clock
	archive  Archiver

	rngMu sync.Mutex
	rng   *rand.Rand

	workers       chan struct{}
	inferTimeout  time.Duration
	sweepInterval time.Duration
	logf          func(format string, args ...any)
}

func NewService(catalog *model.Catalog, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	if opts.InferenceTimeout <= 0 {
		opts.InferenceTimeout = 30 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}

	return &Service{
		registry:      NewRegistry(opts.Clock, opts.TTL),
		catalog:       catalog,
		clock:         opts.Clock,
		archive:       opts.Archive,
		rng:           opts.Rand,
		workers:       make(chan struct{}, opts.Workers),
		inferTimeout:  opts.InferenceTimeout,
		sweepInterval: opts.SweepInterval,
		logf:          opts.Logf,
	}
}

// Models lists the catalog for clients choosing a model.
func (s *Service) Models() []model.Info {
	return s.catalog.List()
}

// SessionCount reports live sessions.
func (s *Service) SessionCount() int {
	return s.registry.Len()
}

// CreateSession registers a session bound to a known model. The prompt
// starts empty; nothing else is permitted until SetPrompt.
func (s *Service) CreateSession(modelName string) (State, error) {
	if !s.catalog.Has(modelName) {
		return State{}, apperr.Newf(apperr.KindInvalidParameter, "unknown model %q", modelName)
	}
	sess := s.registry.Create(modelName)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state(), nil
}

// SessionState returns a full dump of the session.
func (s *Service) SessionState(id string) (State, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return State{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state(), nil
}

// SetPrompt sets (or replaces) the initial prompt. Replacing clears the
// history, which is how a session is reset. Returns the new state and
// the prompt's token count.
func (s *Service) SetPrompt(id, prompt string) (State, int, error) {
	if strings.TrimSpace(prompt) == "" {
		return State{}, 0, apperr.New(apperr.KindInvalidParameter, "empty or invalid prompt")
	}

	sess, err := s.registry.Get(id)
	if err != nil {
		return State{}, 0, err
	}

	adapter, err := s.adapterFor(sess)
	if err != nil {
		return State{}, 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.inferTimeout)
	defer cancel()
	count, err := adapter.CountTokens(ctx, prompt)
	if err != nil {
		return State{}, 0, apperr.Wrap(apperr.KindInferenceFailure, "count prompt tokens", err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.setPrompt(prompt)
	return sess.state(), count, nil
}

// DistOptions are the partition parameters of one probability request.
type DistOptions struct {
	Threshold   float64
	Temperature float64
	OtherTopK   int
}

// DistributionResult is the outcome of one probability request.
type DistributionResult struct {
	SessionID   string
	CurrentText string
	Snapshot    *engine.Snapshot
}

// Distribution computes the next-token distribution for the session's
// current text and retains the snapshot for the next selection.
// Parameters are validated before the model is consulted.
func (s *Service) Distribution(id string, opts DistOptions) (*DistributionResult, error) {
	if err := engine.ValidateParams(opts.Threshold, opts.Temperature, opts.OtherTopK); err != nil {
		return nil, err
	}

	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	adapter, err := s.adapterFor(sess)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.initialPrompt == "" {
		return nil, apperr.New(apperr.KindNoPromptSet, "no prompt set yet")
	}

	text := sess.currentText()
	logits, err := s.infer(adapter, text)
	if err != nil {
		return nil, err
	}

	snap, err := engine.Partition(logits, opts.Threshold, opts.Temperature, opts.OtherTopK, adapter)
	if err != nil {
		return nil, err
	}

	sess.snapshot = snap
	return &DistributionResult{
		SessionID:   sess.id,
		CurrentText: text,
		Snapshot:    snap,
	}, nil
}

// infer runs the model forward pass inside the worker pool with the
// configured timeout. Failures carry no session side effects.
func (s *Service) infer(adapter model.Adapter, text string) ([]float32, error) {
	s.workers <- struct{}{}
	defer func() { <-s.workers }()

	ctx, cancel := context.WithTimeout(context.Background(), s.inferTimeout)
	defer cancel()

	logits, err := adapter.NextTokenLogits(ctx, text)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInferenceFailure, "model inference failed", err)
	}
	return logits, nil
}

func (s *Service) adapterFor(sess *Session) (model.Adapter, error) {
	adapter, err := s.catalog.Get(sess.modelName)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInferenceFailure, "model failed to load", err)
	}
	return adapter, nil
}

// OtherSelectionInfo describes a tail draw for display.
type OtherSelectionInfo struct {
	TotalProbability  float64
	TokenCount        int
	SelectedTokenRank int
}

// AppendResult is the outcome of one applied selection.
type AppendResult struct {
	State        State
	Entry        HistoryEntry
	PreviousText string
	Other        *OtherSelectionInfo
}

// AppendSelection applies a selection against the session's most recent
// snapshot. Explicit token ids must belong to that snapshot's
// above-threshold set; if the snapshot has been invalidated by an
// intervening mutation (or never fetched), the selection is stale and
// rejected. The tail draw samples the snapshot's full complement set.
// Either the history grows by exactly one entry or nothing changes.
func (s *Service) AppendSelection(id string, sel Selection) (*AppendResult, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.initialPrompt == "" {
		return nil, apperr.New(apperr.KindNoPromptSet, "no prompt set")
	}
	snap := sess.snapshot
	if snap == nil {
		return nil, apperr.New(apperr.KindStaleSelection, "no current distribution; request probabilities first")
	}

	previous := sess.currentText()
	var entry HistoryEntry
	var otherInfo *OtherSelectionInfo

	switch sel := sel.(type) {
	case ExplicitSelection:
		cand, ok := snap.Candidate(sel.TokenID)
		if !ok {
			return nil, apperr.Newf(apperr.KindStaleSelection,
				"token %d is not in the current above-threshold set", sel.TokenID)
		}
		entry = HistoryEntry{
			Token:      cand,
			Category:   CategoryAboveThreshold,
			SelectedAt: s.clock.Now(),
		}

	case OtherSelection:
		cand, rank, err := s.sampleTail(snap)
		if err != nil {
			return nil, err
		}
		entry = HistoryEntry{
			Token:            cand,
			Category:         CategoryOther,
			SampledFromOther: true,
			RankInOther:      rank,
			SelectedAt:       s.clock.Now(),
		}
		otherInfo = &OtherSelectionInfo{
			TotalProbability:  snap.Other.TotalProbability,
			TokenCount:        snap.Other.TokenCount,
			SelectedTokenRank: rank,
		}

	default:
		return nil, apperr.New(apperr.KindInvalidParameter, "unknown selection type")
	}

	sess.history.Append(entry)
	sess.snapshot = nil

	return &AppendResult{
		State:        sess.state(),
		Entry:        entry,
		PreviousText: previous,
		Other:        otherInfo,
	}, nil
}

func (s *Service) sampleTail(snap *engine.Snapshot) (engine.Candidate, int, error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return engine.SampleTail(snap, s.rng)
}

// UndoResult is the outcome of removing the most recent token.
type UndoResult struct {
	State        State
	Removed      HistoryEntry
	PreviousText string
}

// Undo removes exactly the most recent token. The initial prompt is
// untouchable: undoing an empty history fails with CannotUndo carrying
// the current text, and has no side effects.
func (s *Service) Undo(id string) (*UndoResult, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	previous := sess.currentText()
	removed, ok := sess.history.PopLast()
	if !ok {
		return nil, apperr.WithText(apperr.KindCannotUndo,
			"no generated tokens to remove; only the initial prompt remains", previous)
	}
	sess.snapshot = nil

	return &UndoResult{
		State:        sess.state(),
		Removed:      removed,
		PreviousText: previous,
	}, nil
}

// DeleteSession removes the session and archives its trace.
func (s *Service) DeleteSession(id string) error {
	sess, err := s.registry.Delete(id)
	if err != nil {
		return err
	}
	s.archiveSession(sess, db.ReasonDeleted)
	return nil
}

// StartSweeper runs the TTL sweep until ctx is cancelled.
func (s *Service) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.SweepOnce(); n > 0 {
					s.logf("cleaned up %d expired sessions", n)
				}
			}
		}
	}()
}

// SweepOnce removes and archives every expired session, returning how
// many were removed.
func (s *Service) SweepOnce() int {
	expired := s.registry.Sweep()
	for _, sess := range expired {
		s.archiveSession(sess, db.ReasonExpired)
	}
	return len(expired)
}

// archiveSession persists a finished session. Archive failures are
// logged, not surfaced: the session is already gone from the registry.
func (s *Service) archiveSession(sess *Session, reason string) {
	if s.archive == nil {
		return
	}

	sess.mu.Lock()
	rec := db.SessionRecord{
		ID:            sess.id,
		ModelName:     sess.modelName,
		InitialPrompt: sess.initialPrompt,
		FinalText:     sess.currentText(),
		TokenCount:    sess.history.Len(),
		Reason:        reason,
		CreatedAt:     sess.createdAt,
		EndedAt:       s.clock.Now(),
	}
	entries := sess.history.Entries()
	sess.mu.Unlock()

	tokens := make([]db.TokenRecord, 0, len(entries))
	for i, e := range entries {
		tokens = append(tokens, db.TokenRecord{
			SessionID:        rec.ID,
			Position:         i,
			TokenID:          e.Token.ID,
			TokenText:        e.Token.Text,
			Probability:      e.Token.Probability,
			Category:         string(e.Category),
			SampledFromOther: e.SampledFromOther,
			RankInOther:      e.RankInOther,
			SelectedAt:       e.SelectedAt,
		})
	}

	if err := s.archive.ArchiveSession(rec, tokens); err != nil {
		s.logf("archive session %s: %v", rec.ID, err)
	}
}
