package detailcache

import (
	"errors"
	"fmt"
)

// Fetch error codes
const (
	CodeNotFound     = "not_found"
	CodeRateLimited  = "rate_limit_exceeded"
	CodeServerError  = "server_error"
	CodeNetworkError = "network_error"
	CodeTimeout      = "timeout"
	CodeInvalidData  = "invalid_data"
	CodeCircuitOpen  = "circuit_open"
	CodeUnknown      = "unknown"
)

var (
	ErrNotFound    = errors.New("horse not found")
	ErrInvalidData = errors.New("invalid profile data")
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// FetchError describes a failed profile fetch for one horse
type FetchError struct {
	HorseID   string
	Code      string
	Message   string
	Permanent bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %s (%v)", e.HorseID, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %s", e.HorseID, e.Code, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new fetch error
func NewFetchError(horseID, code, message string, permanent bool, err error) *FetchError {
	return &FetchError{HorseID: horseID, Code: code, Message: message, Permanent: permanent, Err: err}
}

// IsPermanent reports whether retrying err cannot help
func IsPermanent(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Permanent
	}
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidData)
}

// ErrorCode returns the fetch error code carried by err
func ErrorCode(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidData):
		return CodeInvalidData
	}
	return CodeUnknown
}
