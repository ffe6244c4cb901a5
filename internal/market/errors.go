package market

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrTransient marks network, timeout and rate-limit failures.
	ErrTransient = errors.New("transient fetch failure")
	// ErrDataUnavailable marks an empty or malformed payload for a requested slot.
	ErrDataUnavailable = errors.New("data unavailable")
)

type classifiedError struct {
	kind error
	err  error
}

func (e *classifiedError) Error() string {
	return fmt.Sprintf("%v: %v", e.kind, e.err)
}

func (e *classifiedError) Unwrap() []error {
	return []error{e.kind, e.err}
}

// MarkTransient wraps err so that errors.Is(err, ErrTransient) holds.
func MarkTransient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return &classifiedError{kind: ErrTransient, err: err}
}

// MarkUnavailable wraps err so that errors.Is(err, ErrDataUnavailable) holds.
func MarkUnavailable(err error) error {
	if err == nil || errors.Is(err, ErrDataUnavailable) {
		return err
	}
	return &classifiedError{kind: ErrDataUnavailable, err: err}
}

// ClassifyError tags raw client errors as transient when they look like network,
// timeout, throttling or server-side failures. Anything else is returned as is.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrDataUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return MarkTransient(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return MarkTransient(err)
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range transientHints {
		if strings.Contains(msg, hint) {
			return MarkTransient(err)
		}
	}
	return err
}

var transientHints = []string{
	"429",
	"too many requests",
	"rate limit",
	"code=-1003",
	"502",
	"503",
	"504",
	"connection reset",
	"eof",
}
