package stream

import (
	"encoding/json"
	"fmt"

	"textbook-rag-be/pkg/store"
)

type ErrorCode string

const (
	CodeRateLimit      ErrorCode = "RATE_LIMIT"
	CodeTimeout        ErrorCode = "TIMEOUT"
	CodeServiceError   ErrorCode = "SERVICE_ERROR"
	CodeInvalidRequest ErrorCode = "INVALID_REQUEST"
)

// Event is one item of a chat response stream. The set of implementations is
// closed: TokenEvent, SourcesEvent, DoneEvent and ErrorEvent.
type Event interface {
	eventType() string
}

type TokenEvent struct {
	Content string
}

type SourcesEvent struct {
	Sources []store.SourceReference
}

type DoneEvent struct{}

type ErrorEvent struct {
	Message string
	Code    ErrorCode
}

func (TokenEvent) eventType() string   { return "token" }
func (SourcesEvent) eventType() string { return "sources" }
func (DoneEvent) eventType() string    { return "done" }
func (ErrorEvent) eventType() string   { return "error" }

// Visitor has one handler per event kind. Every field must be set.
type Visitor[T any] struct {
	Token   func(TokenEvent) T
	Sources func(SourcesEvent) T
	Done    func(DoneEvent) T
	Error   func(ErrorEvent) T
}

// Match dispatches e to the handler for its kind.
func Match[T any](e Event, v Visitor[T]) T {
	switch ev := e.(type) {
	case TokenEvent:
		return v.Token(ev)
	case SourcesEvent:
		return v.Sources(ev)
	case DoneEvent:
		return v.Done(ev)
	case ErrorEvent:
		return v.Error(ev)
	}
	panic(fmt.Sprintf("stream: unknown event %T", e))
}

// IsTerminal reports whether e ends a stream.
func IsTerminal(e Event) bool {
	return Match(e, Visitor[bool]{
		Token:   func(TokenEvent) bool { return false },
		Sources: func(SourcesEvent) bool { return false },
		Done:    func(DoneEvent) bool { return true },
		Error:   func(ErrorEvent) bool { return true },
	})
}

type wireEvent struct {
	Type      string                  `json:"type"`
	Content   *string                 `json:"content,omitempty"`
	Sources   []store.SourceReference `json:"sources,omitempty"`
	Citations []store.SourceReference `json:"citations,omitempty"`
	Message   string                  `json:"message,omitempty"`
	Code      ErrorCode               `json:"code,omitempty"`
}

// Encode renders the JSON object sent to clients.
func Encode(e Event) ([]byte, error) {
	w := Match(e, Visitor[wireEvent]{
		Token: func(ev TokenEvent) wireEvent {
			return wireEvent{Type: "token", Content: &ev.Content}
		},
		Sources: func(ev SourcesEvent) wireEvent {
			sources := ev.Sources
			if sources == nil {
				sources = []store.SourceReference{}
			}
			return wireEvent{Type: "sources", Sources: sources}
		},
		Done: func(DoneEvent) wireEvent {
			return wireEvent{Type: "done"}
		},
		Error: func(ev ErrorEvent) wireEvent {
			return wireEvent{Type: "error", Message: ev.Message, Code: ev.Code}
		},
	})

	// omitempty would drop an empty sources array
	if w.Type == "sources" && len(w.Sources) == 0 {
		return []byte(`{"type":"sources","sources":[]}`), nil
	}
	return json.Marshal(w)
}

// Frame renders e as one server-sent-events frame.
func Frame(e Event) ([]byte, error) {
	payload, err := Encode(e)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// Decode parses one JSON event. Source lists are accepted under either
// "sources" or "citations".
func Decode(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode stream event: %w", err)
	}

	switch w.Type {
	case "token":
		if w.Content == nil {
			return nil, fmt.Errorf("decode stream event: token without content")
		}
		return TokenEvent{Content: *w.Content}, nil
	case "sources", "citations":
		sources := w.Sources
		if sources == nil {
			sources = w.Citations
		}
		return SourcesEvent{Sources: sources}, nil
	case "done":
		return DoneEvent{}, nil
	case "error":
		code := w.Code
		if code == "" {
			code = CodeServiceError
		}
		return ErrorEvent{Message: w.Message, Code: code}, nil
	default:
		return nil, fmt.Errorf("decode stream event: unknown type %q", w.Type)
	}
}
