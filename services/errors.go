package services

import "errors"

// Sentinel errors. Expected precondition failures (insufficient balance, wrong
// tournament status, attempt limits) are NOT errors — those surface as typed
// false results. Errors are reserved for absent records, contract violations
// and storage failures.
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidScore       = errors.New("score out of range")
	ErrInvalidResult      = errors.New("result does not match match participants")
	ErrNoEligibleTemplate = errors.New("no eligible challenge template")

	// ErrConflict surfaces after the bounded optimistic-retry loop is
	// exhausted; callers may retry the whole operation.
	ErrConflict = errors.New("concurrent update conflict")
)

// casRetries bounds every optimistic compare-and-swap loop.
const casRetries = 3

// errNoMutation aborts a read-modify-write round trip without writing. It
// never escapes the services package; callers translate it to a false result.
var errNoMutation = errors.New("no mutation")

// errRetryCAS signals a version-check miss inside a transaction; the enclosing
// loop rolls back and retries with fresh state.
var errRetryCAS = errors.New("version check failed")
