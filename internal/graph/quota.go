package graph

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps bounds the deliveries of one propagation.
const DefaultMaxSteps = 10000

// QuotaEnforcer counts deliveries within one propagation.
//
// Cycle detection catches loops (A -> B -> A); the quota catches runaway
// fan-out that never revisits an emitter. Together they guarantee that
// every propagation terminates.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates an enforcer allowing maxSteps deliveries.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one step and fails once the limit is passed.
func (q *QuotaEnforcer) Check(token string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{Token: token, Steps: q.current, Limit: q.maxSteps}
	}
	return nil
}

// Current returns the number of steps counted so far.
func (q *QuotaEnforcer) Current() int { return q.current }

// MaxSteps returns the limit.
func (q *QuotaEnforcer) MaxSteps() int { return q.maxSteps }

// StepsExceededError aborts a propagation that passed its step quota.
// Unlike a cycle, which skips one branch, this stops the whole propagation.
type StepsExceededError struct {
	Token string
	Steps int
	Limit int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("propagation %s exceeded max steps quota: %d steps > %d limit",
		e.Token, e.Steps, e.Limit)
}

// IsStepsExceededError reports whether err is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
