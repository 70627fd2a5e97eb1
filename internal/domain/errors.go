package domain

import "errors"

// Business-rule failures surfaced directly to the caller, never retried.
var (
	// ErrNotFound indicates an unknown user/stock/position id or ticker
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a duplicate ticker or email on create
	ErrAlreadyExists = errors.New("already exists")

	// ErrInsufficientHoldings indicates a SELL exceeding the owned quantity
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrInvalidInput indicates a non-positive quantity/price, negative fee
	// or malformed ticker
	ErrInvalidInput = errors.New("invalid input")

	// ErrPermissionDenied indicates the caller's role or account state does
	// not allow the operation
	ErrPermissionDenied = errors.New("permission denied")
)

// Failures originating outside the accounting core.
var (
	// ErrQuoteUnavailable indicates an external provider failure or a
	// malformed provider response
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrConcurrencyConflict indicates two writers collided at the storage
	// layer; the operation may be retried from fresh state
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
