package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"textbook-rag-be/internal/dto"
	"textbook-rag-be/internal/entity"
	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/pkg/events"
	"textbook-rag-be/pkg/llm"
	"textbook-rag-be/pkg/rag/history"
	"textbook-rag-be/pkg/rag/prompt"
	"textbook-rag-be/pkg/rag/response"
	"textbook-rag-be/pkg/rag/search"
	"textbook-rag-be/pkg/rag/stream"
	"textbook-rag-be/pkg/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type chatState string

const (
	stateStart      chatState = "START"
	stateRetrieving chatState = "RETRIEVING"
	stateOutOfScope chatState = "OUT_OF_SCOPE_STREAM"
	stateGenerating chatState = "GENERATING"
	statePersisting chatState = "PERSISTING"
	stateDone       chatState = "DONE"
	stateError      chatState = "ERROR"
)

const publishTimeout = 3 * time.Second

// ChatCommand is one question. ConversationID and MessageID are both needed
// for the answer to be stored.
type ChatCommand struct {
	Query          string
	History        []llm.Message
	SelectedText   string
	ConversationID string
	MessageID      string
}

// ChatCommandFromRequest maps a transport payload onto a command.
func ChatCommandFromRequest(req dto.ChatRequest) ChatCommand {
	past := make([]llm.Message, 0, len(req.ConversationHistory))
	for _, m := range req.ConversationHistory {
		past = append(past, llm.Message{Role: m.Role, Content: m.Content})
	}
	return ChatCommand{
		Query:          req.Query,
		History:        past,
		SelectedText:   req.SelectedText,
		ConversationID: req.ConversationId,
		MessageID:      req.MessageId,
	}
}

// Answer is a fully drained response.
type Answer struct {
	Content string                  `json:"content"`
	Sources []store.SourceReference `json:"sources"`
}

// ChatError is an error event surfaced by Complete.
type ChatError struct {
	Code    stream.ErrorCode
	Message string
}

func (e *ChatError) Error() string {
	return string(e.Code) + ": " + e.Message
}

type ChatOptions struct {
	Temperature     float64
	MaxTokens       int
	OutOfScopeDelay time.Duration
}

func DefaultChatOptions() ChatOptions {
	return ChatOptions{
		Temperature:     0.7,
		MaxTokens:       1024,
		OutOfScopeDelay: 20 * time.Millisecond,
	}
}

// Retriever is the retrieval policy the chat service depends on.
type Retriever interface {
	RetrieveForQuery(ctx context.Context, query string) (search.Result, error)
	RetrieveForSelection(ctx context.Context, selection string) (search.Result, error)
}

// MessageSaver stores assistant answers.
type MessageSaver interface {
	SaveMessage(ctx context.Context, cmd SaveMessageCommand) (*entity.Message, error)
}

type IChatService interface {
	// Stream answers cmd as a finite event sequence. The channel is closed
	// after the terminal event, or as soon as ctx is cancelled. Callers must
	// drain the channel or cancel ctx.
	Stream(ctx context.Context, cmd ChatCommand) <-chan stream.Event
	// Complete drains Stream into a single answer.
	Complete(ctx context.Context, cmd ChatCommand) (*Answer, error)
}

type chatService struct {
	retriever Retriever
	builder   *prompt.Builder
	llm       llm.LLMProvider
	history   *history.Loader
	saver     MessageSaver
	publisher events.Publisher
	options   ChatOptions
	tracer    trace.Tracer
	logger    logger.ILogger
}

// NewChatService wires the orchestrator. historyLoader, saver and publisher
// may be nil, which disables stored history, persistence and events.
func NewChatService(
	retriever Retriever,
	builder *prompt.Builder,
	llmProvider llm.LLMProvider,
	historyLoader *history.Loader,
	saver MessageSaver,
	publisher events.Publisher,
	options ChatOptions,
	log logger.ILogger,
) IChatService {
	return &chatService{
		retriever: retriever,
		builder:   builder,
		llm:       llmProvider,
		history:   historyLoader,
		saver:     saver,
		publisher: publisher,
		options:   options,
		tracer:    otel.Tracer("textbook-rag-be/chat"),
		logger:    log,
	}
}

func (s *chatService) Stream(ctx context.Context, cmd ChatCommand) <-chan stream.Event {
	out := make(chan stream.Event)
	go func() {
		defer close(out)
		run := &chatRun{svc: s, cmd: cmd, out: out, started: time.Now()}
		run.execute(ctx)
	}()
	return out
}

func (s *chatService) Complete(ctx context.Context, cmd ChatCommand) (*Answer, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		content strings.Builder
		answer  Answer
		chatErr *ChatError
	)
	for ev := range s.Stream(ctx, cmd) {
		stream.Match(ev, stream.Visitor[struct{}]{
			Token: func(e stream.TokenEvent) struct{} {
				content.WriteString(e.Content)
				return struct{}{}
			},
			Sources: func(e stream.SourcesEvent) struct{} {
				answer.Sources = e.Sources
				return struct{}{}
			},
			Done: func(stream.DoneEvent) struct{} { return struct{}{} },
			Error: func(e stream.ErrorEvent) struct{} {
				chatErr = &ChatError{Code: e.Code, Message: e.Message}
				return struct{}{}
			},
		})
	}

	if chatErr != nil {
		return nil, chatErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	answer.Content = content.String()
	return &answer, nil
}

// chatRun holds the state of one request.
type chatRun struct {
	svc     *chatService
	cmd     ChatCommand
	out     chan<- stream.Event
	started time.Time
	state   chatState
	mode    string
	tokens  int
}

func (r *chatRun) transition(state chatState) {
	r.svc.logger.Debug("CHAT", "State transition", map[string]interface{}{
		"from":            string(r.state),
		"to":              string(state),
		"conversation_id": r.cmd.ConversationID,
	})
	r.state = state
}

// emit reports false when the caller went away.
func (r *chatRun) emit(ctx context.Context, ev stream.Event) bool {
	select {
	case r.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *chatRun) fail(ctx context.Context, span trace.Span, err error) {
	if ctx.Err() != nil {
		r.svc.logger.Info("CHAT", "Request cancelled", map[string]interface{}{"state": string(r.state)})
		return
	}

	failedIn := r.state
	r.transition(stateError)
	code := Classify(err)

	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	r.svc.logger.Error("CHAT", "Chat request failed", map[string]interface{}{
		"state": string(failedIn),
		"code":  string(code),
		"error": err.Error(),
	})

	r.emit(ctx, stream.ErrorEvent{Message: clientMessage(err, code), Code: code})
}

func (r *chatRun) execute(ctx context.Context) {
	ctx, span := r.svc.tracer.Start(ctx, "chat.stream")
	defer span.End()

	r.transition(stateStart)
	query, err := ValidateQuery(r.cmd.Query)
	if err != nil {
		r.fail(ctx, span, err)
		return
	}

	selection := strings.TrimSpace(r.cmd.SelectedText)
	r.mode = "standard"
	if selection != "" {
		r.mode = "selection"
	}
	span.SetAttributes(attribute.String("chat.mode", r.mode))

	r.transition(stateRetrieving)
	result, err := r.retrieve(ctx, query, selection)
	if err != nil {
		r.fail(ctx, span, err)
		return
	}

	var content string
	if r.mode == "standard" && result.OutOfScope {
		r.transition(stateOutOfScope)
		if !r.streamOutOfScope(ctx) {
			return
		}
		content = response.OutOfScope
		result.Sources = nil
	} else {
		r.transition(stateGenerating)
		content, err = r.generate(ctx, query, result.Chunks)
		if err != nil {
			r.fail(ctx, span, err)
			return
		}
	}

	if ctx.Err() != nil {
		r.svc.logger.Info("CHAT", "Request cancelled before persistence", nil)
		return
	}

	r.persist(ctx, content, result.Sources)

	if len(result.Sources) > 0 {
		if !r.emit(ctx, stream.SourcesEvent{Sources: result.Sources}) {
			return
		}
	}

	r.publishCompleted(ctx, len(result.Sources))

	r.transition(stateDone)
	r.emit(ctx, stream.DoneEvent{})
}

func (r *chatRun) retrieve(ctx context.Context, query, selection string) (search.Result, error) {
	ctx, span := r.svc.tracer.Start(ctx, "chat.retrieve")
	defer span.End()

	var (
		result search.Result
		err    error
	)
	if selection != "" {
		result, err = r.svc.retriever.RetrieveForSelection(ctx, selection)
	} else {
		result, err = r.svc.retriever.RetrieveForQuery(ctx, query)
	}
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	span.SetAttributes(
		attribute.Int("retrieval.hits", len(result.Chunks)),
		attribute.Bool("retrieval.out_of_scope", result.OutOfScope),
	)
	return result, nil
}

// streamOutOfScope replays the canned answer word by word.
func (r *chatRun) streamOutOfScope(ctx context.Context) bool {
	words := response.Words(response.OutOfScope)
	for i, word := range words {
		if !r.emit(ctx, stream.TokenEvent{Content: word}) {
			return false
		}
		r.tokens++
		if i < len(words)-1 && r.svc.options.OutOfScopeDelay > 0 {
			select {
			case <-time.After(r.svc.options.OutOfScopeDelay):
			case <-ctx.Done():
				return false
			}
		}
	}
	return true
}

func (r *chatRun) generate(ctx context.Context, query string, chunks []store.ScoredChunk) (string, error) {
	ctx, span := r.svc.tracer.Start(ctx, "chat.generate")
	defer span.End()

	past := r.cmd.History
	if r.svc.history != nil {
		loaded, err := r.svc.history.Load(ctx, r.cmd.ConversationID, r.cmd.History)
		if err != nil {
			r.svc.logger.Warn("CHAT", "Failed to load stored history, answering without it", map[string]interface{}{"error": err.Error()})
		} else {
			past = loaded
		}
	}

	template, systemPrompt := r.svc.builder.Build(chunks, r.cmd.SelectedText)
	messages := r.svc.builder.Assemble(systemPrompt, query, past)
	span.SetAttributes(
		attribute.String("prompt.template", string(template)),
		attribute.Int("prompt.messages", len(messages)),
	)

	llmStream, err := r.svc.llm.Stream(ctx, messages,
		llm.WithTemperature(r.svc.options.Temperature),
		llm.WithMaxTokens(r.svc.options.MaxTokens),
	)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	defer llmStream.Close()

	var content strings.Builder
	for {
		fragment, err := llmStream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.RecordError(err)
			return content.String(), err
		}
		if fragment == "" {
			continue
		}
		content.WriteString(fragment)
		if !r.emit(ctx, stream.TokenEvent{Content: fragment}) {
			return content.String(), ctx.Err()
		}
		r.tokens++
	}

	span.SetAttributes(attribute.Int("generation.fragments", r.tokens))
	return content.String(), nil
}

// persist is best-effort. Failures are logged and never reach the caller.
func (r *chatRun) persist(ctx context.Context, content string, sources []store.SourceReference) {
	if r.svc.saver == nil || r.cmd.ConversationID == "" || r.cmd.MessageID == "" {
		return
	}
	r.transition(statePersisting)

	ctx, span := r.svc.tracer.Start(ctx, "chat.persist")
	defer span.End()

	conversationID, err := uuid.Parse(r.cmd.ConversationID)
	if err != nil {
		r.svc.logger.Warn("PERSIST", "Skipping persistence, invalid conversation id", map[string]interface{}{"conversation_id": r.cmd.ConversationID})
		return
	}
	messageID, err := uuid.Parse(r.cmd.MessageID)
	if err != nil {
		r.svc.logger.Warn("PERSIST", "Skipping persistence, invalid message id", map[string]interface{}{"message_id": r.cmd.MessageID})
		return
	}

	_, err = r.svc.saver.SaveMessage(ctx, SaveMessageCommand{
		ConversationID: conversationID,
		MessageID:      messageID,
		Role:           entity.MessageRoleAssistant,
		Content:        content,
		Sources:        sources,
	})
	if err != nil {
		span.RecordError(err)
		r.svc.logger.Warn("PERSIST", "Failed to save message to database", map[string]interface{}{
			"conversation_id": r.cmd.ConversationID,
			"error":           err.Error(),
		})
	}
}

func (r *chatRun) publishCompleted(ctx context.Context, sources int) {
	if r.svc.publisher == nil {
		return
	}
	event := events.NewChatCompleted(r.cmd.ConversationID, r.mode, r.tokens, sources, time.Since(r.started))

	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := r.svc.publisher.Publish(pubCtx, event); err != nil {
			r.svc.logger.Warn("NATS", "Failed to publish chat event", map[string]interface{}{"error": err.Error()})
		}
	}()
}

func clientMessage(err error, code stream.ErrorCode) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}

	switch code {
	case stream.CodeRateLimit:
		return "The assistant is receiving too many requests. Please try again in a moment."
	case stream.CodeTimeout:
		return "The request timed out. Please try again."
	default:
		return "An error occurred while generating the response."
	}
}
