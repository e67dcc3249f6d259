package session

import "time"

// Clock abstracts time so registry expiration is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the production clock, always UTC.
func SystemClock() Clock { return systemClock{} }
