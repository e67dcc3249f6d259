// Package model provides the inference side of the token wheel: the
// adapter interface the engine consumes, a deterministic in-process byte
// n-gram model, a remote HTTP adapter, and a load-once catalog keyed by
// model name.
package model

import "context"

// Adapter is the opaque collaborator the session layer talks to: text in,
// next-token logits out, plus the token id <-> text mapping needed to
// display selections.
type Adapter interface {
	// NextTokenLogits returns one logit per vocabulary entry for the token
	// following text.
	NextTokenLogits(ctx context.Context, text string) ([]float32, error)

	// TokenText maps a token id back to its surface form.
	TokenText(id int) string

	// CountTokens reports how many tokens text encodes to.
	CountTokens(ctx context.Context, text string) (int, error)

	// VocabSize is the fixed vocabulary size of the model.
	VocabSize() int
}

// Info describes a catalog entry for clients choosing a model.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}
