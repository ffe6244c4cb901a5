package acquire

import (
	"errors"
	"fmt"
)

var (
	// ErrSymbolNotFound is returned before any fetch when the exchange does not list the symbol
	// or cannot serve OHLCV data at all.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrEmptyResult is returned when every window came back without a single bar.
	ErrEmptyResult = errors.New("no data for requested range")
)

// ConfigurationError rejects a request before acquisition starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func configError(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// FetchError aborts the whole acquisition when at least one window failed.
// Err is the failure of the last failing window in submission order.
type FetchError struct {
	Since  int64
	Failed int
	Total  int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %d/%d windows (last since=%d): %v", e.Failed, e.Total, e.Since, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
