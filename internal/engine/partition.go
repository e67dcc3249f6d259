// Package engine implements the distribution side of the token wheel:
// temperature-scaled softmax over raw logits, partitioning into
// above-threshold tokens and an aggregated "other" tail, and weighted
// sampling from that tail.
//
// Partition and SampleTail are pure with respect to their inputs; all
// randomness is injected by the caller.
package engine

import (
	"math"
	"sort"

	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/apperr"
)

// Defaults for the partition parameters, shared with the transport layer.
const (
	DefaultThreshold   = 0.01
	DefaultTemperature = 1.0
	DefaultOtherTopK   = 10
)

// TokenDecoder maps a token id to its display text.
type TokenDecoder interface {
	TokenText(id int) string
}

// Candidate is one token of the next-token distribution. Immutable once
// produced; derived entirely from one forward pass.
type Candidate struct {
	ID             int     `json:"tokenId"`
	Text           string  `json:"tokenText"`
	Probability    float64 `json:"probability"`
	LogProbability float64 `json:"logProbability"`
}

// OtherBucket aggregates every token below the threshold. SampleTokens is
// a display subset; sampling always runs over the full complement set.
type OtherBucket struct {
	TotalProbability float64     `json:"totalProbability"`
	TokenCount       int         `json:"tokenCount"`
	SampleTokens     []Candidate `json:"sampleTokens"`
}

// Snapshot is one immutable partition of the next-token distribution for
// one text state. It retains the full probability vector so a subsequent
// tail draw samples the real complement set, not the display subset.
type Snapshot struct {
	AboveThreshold []Candidate `json:"aboveThreshold"`
	Other          OtherBucket `json:"other"`
	Threshold      float64     `json:"threshold"`
	Temperature    float64     `json:"temperature"`
	VocabularySize int         `json:"vocabularySize"`

	probs    []float64
	logProbs []float64
	dec      TokenDecoder
}

// TotalAboveProbability is the summed mass of the above-threshold set.
func (s *Snapshot) TotalAboveProbability() float64 {
	total := 0.0
	for _, c := range s.AboveThreshold {
		total += c.Probability
	}
	return total
}

// Candidate returns the above-threshold candidate with the given id.
func (s *Snapshot) Candidate(id int) (Candidate, bool) {
	for _, c := range s.AboveThreshold {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// ValidateParams checks the partition parameter domains. The session
// layer calls this before spending a model forward pass on bad inputs.
func ValidateParams(threshold, temperature float64, otherTopK int) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return apperr.Newf(apperr.KindInvalidParameter, "threshold %v outside [0,1]", threshold)
	}
	if math.IsNaN(temperature) || temperature <= 0 {
		return apperr.Newf(apperr.KindInvalidParameter, "temperature %v must be > 0", temperature)
	}
	if otherTopK < 0 {
		return apperr.Newf(apperr.KindInvalidParameter, "otherTopK %d must be >= 0", otherTopK)
	}
	return nil
}

// Partition applies temperature scaling and softmax to raw logits, then
// splits the distribution at threshold. Tokens with probability >= threshold
// are listed individually, sorted by probability descending (ties by
// ascending id); everything else is folded into the Other bucket.
//
// threshold must be in [0,1], temperature must be > 0, otherTopK must be
// >= 0; violations fail with InvalidParameter before any work is done.
func Partition(logits []float32, threshold, temperature float64, otherTopK int, dec TokenDecoder) (*Snapshot, error) {
	if len(logits) == 0 {
		return nil, apperr.New(apperr.KindInvalidParameter, "empty logits")
	}
	if err := ValidateParams(threshold, temperature, otherTopK); err != nil {
		return nil, err
	}

	probs, logProbs := softmax(logits, temperature)

	snap := &Snapshot{
		Threshold:      threshold,
		Temperature:    temperature,
		VocabularySize: len(logits),
		probs:          probs,
		logProbs:       logProbs,
		dec:            dec,
	}

	var aboveIDs, tailIDs []int
	tailTotal := 0.0
	for id, p := range probs {
		if p >= threshold {
			aboveIDs = append(aboveIDs, id)
		} else {
			tailIDs = append(tailIDs, id)
			tailTotal += p
		}
	}

	sortByProbDesc(aboveIDs, probs)
	snap.AboveThreshold = make([]Candidate, 0, len(aboveIDs))
	for _, id := range aboveIDs {
		snap.AboveThreshold = append(snap.AboveThreshold, snap.candidateFor(id))
	}

	sortByProbDesc(tailIDs, probs)
	sampleN := otherTopK
	if sampleN > len(tailIDs) {
		sampleN = len(tailIDs)
	}
	samples := make([]Candidate, 0, sampleN)
	for _, id := range tailIDs[:sampleN] {
		samples = append(samples, snap.candidateFor(id))
	}

	snap.Other = OtherBucket{
		TotalProbability: tailTotal,
		TokenCount:       len(tailIDs),
		SampleTokens:     samples,
	}
	return snap, nil
}

func (s *Snapshot) candidateFor(id int) Candidate {
	text := ""
	if s.dec != nil {
		text = s.dec.TokenText(id)
	}
	return Candidate{
		ID:             id,
		Text:           text,
		Probability:    s.probs[id],
		LogProbability: s.logProbs[id],
	}
}

// sortByProbDesc orders ids by probability descending, ties by ascending id
// so the output is stable and reproducible across calls.
func sortByProbDesc(ids []int, probs []float64) {
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := probs[ids[i]], probs[ids[j]]
		if pi != pj {
			return pi > pj
		}
		return ids[i] < ids[j]
	})
}

// softmax computes temperature-scaled probabilities and log-probabilities
// with the usual max-subtraction for numerical stability. Scaled logits
// are clamped to the finite float64 range so a tiny temperature cannot
// overflow to Inf and turn the max subtraction into NaN.
func softmax(logits []float32, temperature float64) (probs, logProbs []float64) {
	scaled := make([]float64, len(logits))
	maxLogit := math.Inf(-1)
	for i, l := range logits {
		scaled[i] = float64(l) / temperature
		if math.IsInf(scaled[i], 0) {
			scaled[i] = math.Copysign(math.MaxFloat64, scaled[i])
		}
		if scaled[i] > maxLogit {
			maxLogit = scaled[i]
		}
	}

	sum := 0.0
	exps := make([]float64, len(scaled))
	for i, l := range scaled {
		exps[i] = math.Exp(l - maxLogit)
		sum += exps[i]
	}
	logSum := math.Log(sum)

	probs = make([]float64, len(scaled))
	logProbs = make([]float64, len(scaled))
	for i := range scaled {
		probs[i] = exps[i] / sum
		logProbs[i] = scaled[i] - maxLogit - logSum
	}
	return probs, logProbs
}
