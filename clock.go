package leapsec

import "time"

// Clock abstracts the wall clock so staleness decisions are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
