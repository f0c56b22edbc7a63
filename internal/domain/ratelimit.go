package domain

import "time"

// RateLimitResult describes the state of a caller's attempt window after
// an attempt has been counted.
type RateLimitResult struct {
	Limited   bool
	Remaining int
	ResetAt   time.Time
}
