package engine

import (
	"math/rand"

	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/apperr"
)

// SampleTail draws one token from the snapshot's below-threshold complement
// set. The tail is renormalized by its total mass and walked via inverse CDF
// in ascending token id order, so a given draw value always selects the same
// token. The returned rank is the 1-based position of the selected token in
// the tail ordered by probability descending (ties by ascending id). The
// rank is reported for display, never used for selection.
//
// The caller must not invoke this on an empty tail.
func SampleTail(snap *Snapshot, rng *rand.Rand) (Candidate, int, error) {
	return sampleTailAt(snap, rng.Float64())
}

// sampleTailAt selects the tail token for a fixed uniform draw in [0,1).
func sampleTailAt(snap *Snapshot, draw float64) (Candidate, int, error) {
	if snap.Other.TokenCount == 0 || snap.Other.TotalProbability <= 0 {
		return Candidate{}, 0, apperr.New(apperr.KindInvalidParameter, "other bucket is empty, nothing to sample")
	}

	total := snap.Other.TotalProbability
	selected := -1
	cum := 0.0
	last := -1
	for id, p := range snap.probs {
		if p >= snap.Threshold {
			continue
		}
		last = id
		cum += p / total
		if cum >= draw {
			selected = id
			break
		}
	}
	// Floating-point shortfall at the end of the walk falls back to the
	// last tail token.
	if selected < 0 {
		selected = last
	}

	return snap.candidateFor(selected), tailRank(snap, selected), nil
}

// tailRank counts how many tail tokens precede id when the tail is sorted
// by probability descending, ties broken by ascending id.
func tailRank(snap *Snapshot, id int) int {
	p := snap.probs[id]
	rank := 1
	for other, q := range snap.probs {
		if q >= snap.Threshold || other == id {
			continue
		}
		if q > p || (q == p && other < id) {
			rank++
		}
	}
	return rank
}
