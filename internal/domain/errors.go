package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// RateLimitError reports an exhausted daily quota. All amounts are wei so the
// caller can compute its own backoff until the next UTC day.
type RateLimitError struct {
	QuotaWei     int64
	ClaimedWei   int64
	RemainingWei int64
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("daily rate limit exceeded: quota=%d claimed=%d remaining=%d",
		e.QuotaWei, e.ClaimedWei, e.RemainingWei)
}

func (e RateLimitError) Is(target error) bool {
	_, ok := target.(RateLimitError)
	if ok {
		return true
	}
	_, ok = target.(*RateLimitError)
	return ok
}

var ErrRateLimited = RateLimitError{}

// InvalidRequestError is a caller error: malformed address, amount, or body.
type InvalidRequestError struct {
	Reason string
}

func (e InvalidRequestError) Error() string {
	return e.Reason
}

func (e InvalidRequestError) Is(target error) bool {
	_, ok := target.(InvalidRequestError)
	if ok {
		return true
	}
	_, ok = target.(*InvalidRequestError)
	return ok
}

var ErrInvalidRequest = InvalidRequestError{}

// DuplicateError marks an operation that was already recorded, keyed by the
// named resource (e.g. a deposit tx hash).
type DuplicateError struct {
	Resource string
}

func (e DuplicateError) Error() string {
	if e.Resource == "" {
		return "already recorded"
	}
	return fmt.Sprintf("%s already recorded", e.Resource)
}

func (e DuplicateError) Is(target error) bool {
	_, ok := target.(DuplicateError)
	if ok {
		return true
	}
	_, ok = target.(*DuplicateError)
	return ok
}

var ErrDuplicate = DuplicateError{}

// ErrUnauthorized covers missing, invalid, expired and superseded tokens.
var ErrUnauthorized = fmt.Errorf("unauthorized")

// ErrTransferFailed wraps a failed or timed-out external transfer. The ledger
// reservation is always released before this is surfaced, so retrying the
// whole claim is safe.
var ErrTransferFailed = fmt.Errorf("transfer failed")
