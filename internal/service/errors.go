package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"textbook-rag-be/internal/repository/contract"
	"textbook-rag-be/pkg/rag/stream"

	goopenai "github.com/sashabaranov/go-openai"
)

const MaxQueryLength = 1000

// ValidationError is a malformed request. Message is safe to show to clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) HTTPStatus() int {
	return 400
}

// PersistenceError is a failed write of conversation state.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) HTTPStatus() int {
	if errors.Is(e.Err, contract.ErrDuplicateMessage) {
		return 409
	}
	return 500
}

// ValidateQuery trims the query and enforces presence and length.
func ValidateQuery(query string) (string, error) {
	if query == "" {
		return "", &ValidationError{Field: "query", Message: "Query is required"}
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", &ValidationError{Field: "query", Message: "Query cannot be empty"}
	}
	if utf8.RuneCountInString(trimmed) > MaxQueryLength {
		return "", &ValidationError{Field: "query", Message: fmt.Sprintf("Query is too long (max %d characters)", MaxQueryLength)}
	}
	return trimmed, nil
}

type httpStatuser interface {
	HTTPStatus() int
}

// Classify maps a failure to a client-facing code. Typed information wins and
// message text is only consulted when nothing else is known.
func Classify(err error) stream.ErrorCode {
	if err == nil {
		return stream.CodeServiceError
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return stream.CodeInvalidRequest
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return stream.CodeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return stream.CodeTimeout
	}

	if code, ok := classifyStatus(statusOf(err)); ok {
		return code
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate"):
		return stream.CodeRateLimit
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return stream.CodeTimeout
	default:
		return stream.CodeServiceError
	}
}

func statusOf(err error) int {
	var statuser httpStatuser
	if errors.As(err, &statuser) {
		return statuser.HTTPStatus()
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classifyStatus(status int) (stream.ErrorCode, bool) {
	switch status {
	case http.StatusTooManyRequests:
		return stream.CodeRateLimit, true
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return stream.CodeTimeout, true
	case 0:
		return "", false
	}
	if status >= 400 {
		return stream.CodeServiceError, true
	}
	return "", false
}
