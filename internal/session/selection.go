package session

// Selection is the tagged choice a caller makes against a distribution:
// either a specific above-threshold token, or a request to draw from the
// other bucket. Modeled as a closed variant rather than optional fields
// so a payload cannot be both at once.
type Selection interface {
	isSelection()
}

// ExplicitSelection picks a token by id. The id must belong to the
// above-threshold set of the session's most recent snapshot.
type ExplicitSelection struct {
	TokenID int
}

func (ExplicitSelection) isSelection() {}

// OtherSelection asks the tail sampler to draw from the other bucket.
type OtherSelection struct{}

func (OtherSelection) isSelection() {}
