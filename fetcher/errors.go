package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// TransientFetchError is a failure worth retrying: network errors, timeouts,
// 5xx responses, 408 and 429.
type TransientFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient fetch error for %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transient fetch error for %s: %v", e.URL, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// FatalFetchError is a failure that retrying will not fix: 4xx responses
// other than 408/429, unparsable bodies, and transient failures that
// exhausted the retry budget (Err then holds the last transient cause).
type FatalFetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FatalFetchError) Error() string {
	switch {
	case e.Attempts > 1:
		return fmt.Sprintf("fatal fetch error for %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fatal fetch error for %s: HTTP %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fatal fetch error for %s: %v", e.URL, e.Err)
	}
}

func (e *FatalFetchError) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a FatalFetchError.
func IsFatal(err error) bool {
	var fatal *FatalFetchError
	return errors.As(err, &fatal)
}

// IsTransient reports whether err is a transient failure that has not been
// promoted to fatal.
func IsTransient(err error) bool {
	if IsFatal(err) {
		return false
	}
	var transient *TransientFetchError
	return errors.As(err, &transient)
}

// classifyStatus maps an HTTP status to nil, a transient or a fatal error.
func classifyStatus(url string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return &TransientFetchError{URL: url, StatusCode: status}
	default:
		return &FatalFetchError{URL: url, StatusCode: status, Attempts: 1,
			Err: fmt.Errorf("unexpected status %d", status)}
	}
}

// classifyTransportError decides whether a transport failure is retryable.
// Typed fetch errors returned by the transport are passed through.
func classifyTransportError(url string, err error) error {
	var transient *TransientFetchError
	var fatal *FatalFetchError
	if errors.As(err, &fatal) || errors.As(err, &transient) {
		return err
	}

	var opErr *net.OpError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.As(err, &opErr),
		errors.As(err, &netErr) && netErr.Timeout():
		return &TransientFetchError{URL: url, Err: err}
	default:
		return &FatalFetchError{URL: url, Attempts: 1, Err: err}
	}
}
