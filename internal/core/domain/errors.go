package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrValidation marks a malformed request. Never retried, surfaced
	// immediately, no side effects to clean up.
	ErrValidation = errors.New("invalid request")

	// ErrNoMatch means resolution found no catalog entry above the score
	// floor. Terminal for the whole order.
	ErrNoMatch = errors.New("no matching catalog entry")
)

// AmbiguousMatchError reports top candidates scoring too close together to
// auto-select. Callers are expected to ask the user to disambiguate.
type AmbiguousMatchError struct {
	Query      string
	Candidates []CatalogEntry
}

func (e *AmbiguousMatchError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = fmt.Sprintf("%s (%s)", c.Name, c.Unit)
	}
	return fmt.Sprintf("ambiguous match for %q: %s", e.Query, strings.Join(names, ", "))
}

// LockTimeoutError means a resource stayed contended beyond the configured
// wait bound. The transaction attempt failed without side effects.
type LockTimeoutError struct {
	Key  string
	Wait time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("lock on %q not acquired within %v", e.Key, e.Wait)
}

// Shortfall is one line whose requested quantity exceeds current stock.
type Shortfall struct {
	Key       string
	Product   string
	Requested int
	Available int
}

// InsufficientStockError enumerates every short-falling line, not just the
// first one found.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		parts[i] = fmt.Sprintf("%s: want %d, have %d", s.Product, s.Requested, s.Available)
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// StoreIOError wraps a transient backing-store failure. The coordinator
// retries these with bounded backoff before surfacing them.
type StoreIOError struct {
	Op  string
	Err error
}

func (e *StoreIOError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreIOError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var se *StoreIOError
	return errors.As(err, &se)
}

// RollbackFailureError means compensation itself failed: the store may be
// inconsistent and an operator has to reconcile by hand. It must never be
// folded into ordinary failure.
type RollbackFailureError struct {
	OrderID    int64
	Cause      error
	Unrestored []string
}

func (e *RollbackFailureError) Error() string {
	return fmt.Sprintf("rollback of order %d failed, unrestored keys %v: %v",
		e.OrderID, e.Unrestored, e.Cause)
}

func (e *RollbackFailureError) Unwrap() error { return e.Cause }

// IsRollbackFailure distinguishes the manual-reconciliation case from
// ordinary failure.
func IsRollbackFailure(err error) bool {
	var re *RollbackFailureError
	return errors.As(err, &re)
}
