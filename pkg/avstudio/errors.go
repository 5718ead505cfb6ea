package avstudio

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Sentinel errors returned by the client
var (
	ErrEmptyToken     = errors.New("avstudio: auth token cannot be empty")
	ErrEmptyDeviceID  = errors.New("avstudio: device ID cannot be empty")
	ErrEmptyUsername  = errors.New("avstudio: username cannot be empty")
	ErrEmptySessionID = errors.New("avstudio: session ID cannot be empty")

	// Matched by errors.Is against an *HTTPError of the same kind
	ErrUnauthorized = errors.New("avstudio: unauthorized (the auth token is invalid or was not specified)")
	ErrUnavailable  = errors.New("avstudio: service unavailable")
)

// ErrorKind classifies a failed HTTP exchange
type ErrorKind int

const (
	// KindHTTP is any failure status not otherwise classified
	KindHTTP ErrorKind = iota
	// KindUnauthorized is a 401 from a token-scoped (v2) endpoint
	KindUnauthorized
	// KindUnavailable is a 5xx from a token-scoped (v2) endpoint
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnavailable:
		return "unavailable"
	}

	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// HTTPError is returned for any exchange that completed with a failure status
type HTTPError struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	switch e.Kind {
	case KindUnauthorized:
		return ErrUnauthorized.Error()
	case KindUnavailable:
		return fmt.Sprintf("avstudio: AV Studio HTTP error %d: %s", e.StatusCode, e.Body)
	}

	return fmt.Sprintf("avstudio: HTTP error %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrUnauthorized) and errors.Is(err, ErrUnavailable)
// match the corresponding kinds
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	}

	return false
}

// classifyV1 reports every failure as a generic HTTP error
func classifyV1(statusCode int, body []byte) error {
	return &HTTPError{Kind: KindHTTP, StatusCode: statusCode, Body: string(body)}
}

// classifyV2 distinguishes credential and platform failures from the rest
func classifyV2(statusCode int, body []byte) error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return &HTTPError{Kind: KindUnauthorized, StatusCode: statusCode, Body: string(body)}
	case statusCode >= 500 && statusCode < 600:
		return &HTTPError{Kind: KindUnavailable, StatusCode: statusCode, Body: string(body)}
	}

	return &HTTPError{Kind: KindHTTP, StatusCode: statusCode, Body: string(body)}
}

// successV1 accepts any 2xx or 3xx status
func successV1(statusCode int) bool {
	return statusCode >= 200 && statusCode < 400
}

// successV2 accepts only 200 and 302; every other status is an error
func successV2(statusCode int) bool {
	return statusCode == http.StatusOK || statusCode == http.StatusFound
}

// IsUnauthorized returns true if err reports a rejected credential
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsUnavailable returns true if err reports the platform itself failing
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// StatusCode extracts the HTTP status from an *HTTPError anywhere in err's chain
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}

	return 0, false
}
