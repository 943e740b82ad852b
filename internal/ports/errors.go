package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Market Data Errors
	ErrDataUnavailable     = errors.New("no price data available for symbol")
	ErrInsufficientHistory = errors.New("not enough bars for the required lookback")
	ErrMalformedData       = errors.New("malformed price data")
	ErrConnectionFailed    = errors.New("failed to connect to the data provider")
	ErrRateLimited         = errors.New("data provider rate limit exceeded")

	// Simulation Errors
	ErrNoEntry           = errors.New("entry condition never triggered")
	ErrDegenerateNumeric = errors.New("degenerate numeric input")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
