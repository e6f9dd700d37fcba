package embedding

import (
	"fmt"
	"strconv"
)

// ConfigurationError means a required credential or setting is missing.
// It is fatal and never retried.
type ConfigurationError struct {
	Provider string
	Setting  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s embedding provider: %s is required", e.Provider, e.Setting)
}

// DimensionMismatchError means the provider returned a vector of the wrong size.
type DimensionMismatchError struct {
	Provider string
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s embedding dimension mismatch: expected %d, got %d", e.Provider, e.Expected, e.Got)
}

// UpstreamError wraps a failed call to the embedding backend. StatusCode is
// zero when the failure happened before an HTTP response was received.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s embedding error: status %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s embedding error: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s embedding error: %s", e.Provider, e.Message)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) HTTPStatus() int {
	return e.StatusCode
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
