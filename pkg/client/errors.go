package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all attempts ended in a non-200 status.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during a fetch.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrCircuitOpen is returned when the circuit breaker rejects a fetch.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// FailureClass represents a classification of fetch failures.
type FailureClass string

const (
	// ClassDNS represents host resolution failures.
	ClassDNS FailureClass = "dns"

	// ClassTimeout represents connect or read timeouts.
	ClassTimeout FailureClass = "timeout"

	// ClassIO represents any other transport failure (refused, reset, truncated body).
	ClassIO FailureClass = "io"

	// ClassStatus represents non-200 responses.
	ClassStatus FailureClass = "http_status"

	// ClassCircuitOpen represents fetches rejected by the circuit breaker.
	ClassCircuitOpen FailureClass = "circuit_open"

	// ClassCancelled represents fetches aborted by the caller's context.
	ClassCancelled FailureClass = "cancelled"
)

// FetchError describes why a fetch produced no data.
type FetchError struct {
	Class      FailureClass
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed (%s, status %d, %d attempts): %v",
			e.URL, e.Class, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s failed (%s, %d attempts): %v",
		e.URL, e.Class, e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClassOf returns the failure class of err, or "" if err is not a FetchError.
func ClassOf(err error) FailureClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ""
}

// classifyTransportError maps a transport error to a failure class.
// ctxErr is the caller context's error at the time of failure.
func classifyTransportError(ctxErr, err error) FailureClass {
	if ctxErr != nil {
		return ClassCancelled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ClassDNS
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}

	return ClassIO
}
