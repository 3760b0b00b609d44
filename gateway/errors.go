package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

const genericErrorMessage = "request failed"

// AppError is a backend response whose envelope carried a non-zero code.
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Code, e.Message)
}

// TransportError covers network failures, timeouts and non-2xx responses.
// Status is 0 when no response was received.
type TransportError struct {
	Status  int
	Message string
	Body    []byte
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("transport error: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("http %d: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("http %d", e.Status)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAuthExpired reports whether err is a 401 or 403 transport error.
func IsAuthExpired(err error) bool {
	status := StatusOf(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// StatusOf returns the HTTP status of a transport error, 0 otherwise.
func StatusOf(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

// IsAppError reports whether err carries a backend application error.
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}
