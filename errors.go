package brunt

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by the Brunt client.
// All errors are defined here for easy discovery and consistent organization.
var (
	// Authentication errors
	ErrCredentialsMissing = errors.New("brunt: username and password are required to log in")

	// Selector errors
	ErrMissingSelector = errors.New("brunt: provide a thing name or a thing URI")
	ErrUnknownDevice   = errors.New("brunt: unknown thing")

	// Command validation errors
	ErrInvalidPosition = errors.New("brunt: position must be between 0 and 100")
	ErrEmptyKey        = errors.New("brunt: key cannot be empty")
	ErrEmptyValue      = errors.New("brunt: value cannot be empty")

	// Response errors
	ErrProtocol  = errors.New("brunt: unexpected response shape")
	ErrTransport = errors.New("brunt: transport error")

	// Lifecycle errors
	ErrClientClosed = errors.New("brunt: client is closed")
)

// TransportError reports a request that failed at the transport level or
// returned a non-2xx status.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("brunt: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("brunt: %s %s: status %d", e.Method, e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("brunt: %s %s: %v", e.Method, e.URL, e.Err)
	default:
		return fmt.Sprintf("brunt: %s %s: request failed", e.Method, e.URL)
	}
}

// Unwrap returns the underlying transport failure, if any.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is() to match ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ProtocolError reports a response whose shape matched none of the
// expected cases for the endpoint that produced it.
type ProtocolError struct {
	Reason string
	Body   string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("brunt: unexpected response shape: %s (body: %s)", e.Reason, e.Body)
	}
	return "brunt: unexpected response shape: " + e.Reason
}

// Is allows errors.Is() to match ErrProtocol.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func newProtocolError(reason string, body []byte) *ProtocolError {
	return &ProtocolError{Reason: reason, Body: truncatePreview(body)}
}

// truncatePreview returns a truncated string for error messages.
func truncatePreview(data []byte) string {
	s := string(data)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// IsUnauthorized returns true if the vendor rejected the session or credentials.
func IsUnauthorized(err error) bool {
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return tErr.StatusCode == http.StatusUnauthorized || tErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsNotFound returns true if the error indicates the thing was not found.
func IsNotFound(err error) bool {
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return tErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsTransport returns true for transport failures and non-2xx responses.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsProtocol returns true if a response could not be interpreted.
func IsProtocol(err error) bool {
	return errors.Is(err, ErrProtocol)
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
