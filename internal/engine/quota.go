package engine

import (
	"fmt"
	"strconv"
	"time"
)

// ErrCodeQuotaExceeded indicates that one call would run more periodic
// cycles than the catch-up quota allows.
const ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

// CatchUpQuota bounds the number of periodic cycles a single AcceptEvent
// or Finish call may run.
//
// An event far ahead of the monitor's time makes the monitor catch up on
// every deadline in between. With a short period and a large gap that is
// millions of cycles for one call. The quota turns such a trace into an
// error instead of an unbounded stall.
//
// A fresh quota is used per call. A limit of zero or less is unlimited.
type CatchUpQuota struct {
	limit   int
	current int
}

// NewCatchUpQuota creates a quota allowing limit periodic cycles.
func NewCatchUpQuota(limit int) *CatchUpQuota {
	return &CatchUpQuota{limit: limit}
}

// Check counts one periodic cycle due at due.
//
// Returns a QUOTA_EXCEEDED RuntimeError once the limit is passed.
func (q *CatchUpQuota) Check(due time.Duration) error {
	q.current++
	if q.limit <= 0 || q.current <= q.limit {
		return nil
	}
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("more than %d periodic cycles in one call (next deadline %s)", q.limit, due),
		Details: map[string]string{
			"limit": strconv.Itoa(q.limit),
			"due":   due.String(),
		},
	}
}

// Current returns the number of cycles counted so far.
func (q *CatchUpQuota) Current() int { return q.current }

// Limit returns the configured limit.
func (q *CatchUpQuota) Limit() int { return q.limit }

// IsQuotaExceeded returns true if the error is a catch-up quota failure.
func IsQuotaExceeded(err error) bool { return hasCode(err, ErrCodeQuotaExceeded) }
