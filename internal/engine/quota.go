package engine

import (
	"errors"
	"fmt"
)

// LegQuota caps the number of legs one trace may stage.
//
// Each trace has its own quota. Staged legs are counted when an invocation
// commits; an invocation that would push the trace over the limit fails and
// none of its legs are scheduled. This bounds runaway traces such as a
// service that continues after itself forever.
type LegQuota struct {
	maxLegs int
	current int
}

// NewLegQuota creates a quota allowing maxLegs legs.
func NewLegQuota(maxLegs int) *LegQuota {
	return &LegQuota{maxLegs: maxLegs}
}

// Reserve counts n more legs against the quota. Nothing is counted when the
// reservation fails.
func (q *LegQuota) Reserve(traceToken string, n int) error {
	if q.current+n > q.maxLegs {
		return &LegsExceededError{
			TraceToken: traceToken,
			Legs:       q.current + n,
			Limit:      q.maxLegs,
		}
	}
	q.current += n
	return nil
}

// Current returns the number of legs counted so far.
func (q *LegQuota) Current() int {
	return q.current
}

// MaxLegs returns the limit.
func (q *LegQuota) MaxLegs() int {
	return q.maxLegs
}

// LegsExceededError is returned when a trace would exceed its leg quota.
type LegsExceededError struct {
	TraceToken string
	Legs       int
	Limit      int
}

func (e *LegsExceededError) Error() string {
	return fmt.Sprintf("trace %s exceeded leg quota: %d legs > %d limit",
		e.TraceToken, e.Legs, e.Limit)
}

// IsLegsExceededError reports whether err is a LegsExceededError.
func IsLegsExceededError(err error) bool {
	var le *LegsExceededError
	return errors.As(err, &le)
}
