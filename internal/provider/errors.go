package provider

import (
	"errors"
	"fmt"
)

// UpstreamUnavailableError reports a transport failure, a timeout or a
// non-success status from an upstream. Status is 0 when no response arrived.
type UpstreamUnavailableError struct {
	Source Source
	Symbol string
	Status int
	Err    error
}

func (e *UpstreamUnavailableError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream unavailable for %s: status %d: %v", e.Source, e.Symbol, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: upstream unavailable for %s: %v", e.Source, e.Symbol, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// InvalidSymbolError means the upstream rejected the instrument itself.
// Callers treat it as a client error rather than a retryable fault.
type InvalidSymbolError struct {
	Source Source
	Symbol string
}

func (e *InvalidSymbolError) Error() string {
	return fmt.Sprintf("%s: invalid symbol %s", e.Source, e.Symbol)
}

// QuoteParseError reports a missing or malformed field in an upstream payload.
type QuoteParseError struct {
	Source Source
	Field  string
	Err    error
}

func (e *QuoteParseError) Error() string {
	return fmt.Sprintf("%s: parse %s: %v", e.Source, e.Field, e.Err)
}

func (e *QuoteParseError) Unwrap() error { return e.Err }

// ErrMissingField is wrapped by QuoteParseError when a required field is absent.
var ErrMissingField = errors.New("missing field")

// Unavailable is a shorthand used by adapters.
func Unavailable(src Source, symbol string, status int, err error) error {
	return &UpstreamUnavailableError{Source: src, Symbol: symbol, Status: status, Err: err}
}

// IsInvalidSymbol reports whether err carries an InvalidSymbolError.
func IsInvalidSymbol(err error) bool {
	var e *InvalidSymbolError
	return errors.As(err, &e)
}

// IsUnavailable reports whether err carries an UpstreamUnavailableError.
func IsUnavailable(err error) bool {
	var e *UpstreamUnavailableError
	return errors.As(err, &e)
}
