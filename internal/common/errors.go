package common

import "errors"

var (
	// ErrNotFound is returned when a portfolio, asset or transaction does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformedTransaction marks a ledger entry that violates its variant's required fields.
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrInvalidInput rejects a portfolio or asset write with bad fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPriceUnavailable is returned by a price feed that has no quote for a symbol.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrInsufficientHistory tags analytics metrics that need more data points.
	// Reports carry it as a reason; only chart rendering returns it.
	ErrInsufficientHistory = errors.New("insufficient history")
)
