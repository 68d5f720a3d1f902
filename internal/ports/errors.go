package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these sentinels so the
// engine can classify failures without knowing exchange specifics.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Exchange Specific Errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrInvalidAPIKeys       = errors.New("invalid API keys or permissions")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderNotFound        = errors.New("order not found on the exchange")
	ErrOrderRejected        = errors.New("order rejected by the exchange")
	ErrOrderCancelFailed    = errors.New("failed to cancel order")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)

// IsTransient reports whether an error is expected to clear on its own:
// the current cycle is abandoned and the loop retries on a later tick,
// with backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrExchangeUnavailable)
}

// IsRejected reports whether the exchange refused an order outright
// (bad price, quantity or notional). Rejected orders are dropped for the
// cycle and never retried in a tight loop.
func IsRejected(err error) bool {
	return errors.Is(err, ErrOrderRejected) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInsufficientFunds)
}
