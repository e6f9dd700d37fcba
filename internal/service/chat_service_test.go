package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/internal/repository/cache"
	"textbook-rag-be/pkg/events"
	"textbook-rag-be/pkg/llm"
	"textbook-rag-be/pkg/rag/history"
	"textbook-rag-be/pkg/rag/prompt"
	"textbook-rag-be/pkg/rag/response"
	"textbook-rag-be/pkg/rag/search"
	"textbook-rag-be/pkg/rag/stream"
	"textbook-rag-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	result    search.Result
	err       error
	queries   []string
	selection []string
}

func (r *fakeRetriever) RetrieveForQuery(ctx context.Context, query string) (search.Result, error) {
	r.queries = append(r.queries, query)
	return r.result, r.err
}

func (r *fakeRetriever) RetrieveForSelection(ctx context.Context, selection string) (search.Result, error) {
	r.selection = append(r.selection, selection)
	return r.result, r.err
}

type fakeLLMStream struct {
	fragments []string
	err       error
	block     <-chan struct{}
	closed    bool
}

func (s *fakeLLMStream) Recv() (string, error) {
	if len(s.fragments) == 0 {
		if s.block != nil {
			<-s.block
		}
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	next := s.fragments[0]
	s.fragments = s.fragments[1:]
	return next, nil
}

func (s *fakeLLMStream) Close() error {
	s.closed = true
	return nil
}

type fakeLLM struct {
	stream   *fakeLLMStream
	startErr error
	history  []llm.Message
	options  llm.Options
}

func (p *fakeLLM) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	p.history = history
	p.options = llm.ApplyOptions(llm.Options{}, opts...)
	if p.startErr != nil {
		return nil, p.startErr
	}
	return p.stream, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []events.Event
	done      chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{done: make(chan struct{}, 1)}
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	p.published = append(p.published, event)
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

type statusErr struct{ code int }

func (e statusErr) Error() string   { return "upstream failure" }
func (e statusErr) HTTPStatus() int { return e.code }

func groundedResult() search.Result {
	chunk := store.ScoredChunk{
		TextChunk: store.TextChunk{ID: "ch2_sec1_0", ChapterNumber: 2, SectionTitle: "Kinematics", Content: "Forward kinematics maps joint angles to poses."},
		Score:     0.82,
	}
	return search.Result{
		Chunks:  []store.ScoredChunk{chunk},
		Sources: []store.SourceReference{{ChunkID: "ch2_sec1_0", ChapterNumber: 2, SectionTitle: "Kinematics", URL: "/chapter-2", RelevanceScore: 0.82}},
	}
}

type chatFixture struct {
	retriever *fakeRetriever
	llm       *fakeLLM
	db        *memoryDB
	publisher *recordingPublisher
	svc       IChatService
}

func newChatFixture(result search.Result, fragments ...string) *chatFixture {
	f := &chatFixture{
		retriever: &fakeRetriever{result: result},
		llm:       &fakeLLM{stream: &fakeLLMStream{fragments: fragments}},
		db:        newMemoryDB(),
		publisher: newRecordingPublisher(),
	}
	conversations := NewConversationService(f.db, cache.NewMemoryHistoryCache(time.Minute), logger.NewNopLogger())
	options := DefaultChatOptions()
	options.OutOfScopeDelay = 0

	f.svc = NewChatService(
		f.retriever,
		prompt.NewBuilder(history.DefaultLimit),
		f.llm,
		history.NewLoader(conversations, history.DefaultLimit),
		conversations,
		f.publisher,
		options,
		logger.NewNopLogger(),
	)
	return f
}

func drain(ch <-chan stream.Event) []stream.Event {
	var out []stream.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func tokens(evs []stream.Event) string {
	var b strings.Builder
	for _, ev := range evs {
		if t, ok := ev.(stream.TokenEvent); ok {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

func TestStreamGroundedAnswerOrdering(t *testing.T) {
	f := newChatFixture(groundedResult(), "Forward ", "kinematics ", "uses angles.")
	convID, msgID := uuid.New(), uuid.New()

	evs := drain(f.svc.Stream(context.Background(), ChatCommand{
		Query:          "  What is forward kinematics?  ",
		ConversationID: convID.String(),
		MessageID:      msgID.String(),
	}))

	require.Len(t, evs, 5)
	assert.Equal(t, stream.TokenEvent{Content: "Forward "}, evs[0])
	assert.IsType(t, stream.SourcesEvent{}, evs[3])
	assert.Equal(t, stream.DoneEvent{}, evs[4])
	assert.Equal(t, "Forward kinematics uses angles.", tokens(evs))
	assert.Equal(t, []string{"What is forward kinematics?"}, f.retriever.queries)

	saved := f.db.saved()
	require.Len(t, saved, 1)
	assert.Equal(t, msgID, saved[0].Id)
	assert.Equal(t, "Forward kinematics uses angles.", saved[0].Content)
	assert.Equal(t, "ch2_sec1_0", saved[0].Sources[0].ChunkID)

	require.NotEmpty(t, f.llm.history)
	assert.Equal(t, llm.RoleSystem, f.llm.history[0].Role)
	assert.Contains(t, f.llm.history[0].Content, "Forward kinematics maps joint angles to poses.")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "What is forward kinematics?"}, f.llm.history[len(f.llm.history)-1])
	assert.InDelta(t, 0.7, f.llm.options.Temperature, 1e-9)
	assert.Equal(t, 1024, f.llm.options.MaxTokens)
	assert.True(t, f.llm.stream.closed)

	select {
	case <-f.publisher.done:
	case <-time.After(time.Second):
		t.Fatal("chat completed event was not published")
	}
	assert.Equal(t, events.TypeChatCompleted, f.publisher.published[0].EventType())
}

func TestStreamOutOfScopeUsesCannedAnswer(t *testing.T) {
	f := newChatFixture(search.Result{OutOfScope: true})
	convID, msgID := uuid.New(), uuid.New()

	evs := drain(f.svc.Stream(context.Background(), ChatCommand{
		Query:          "Who won the match yesterday?",
		ConversationID: convID.String(),
		MessageID:      msgID.String(),
	}))

	require.NotEmpty(t, evs)
	assert.Equal(t, stream.DoneEvent{}, evs[len(evs)-1])
	for _, ev := range evs[:len(evs)-1] {
		assert.IsType(t, stream.TokenEvent{}, ev)
	}
	assert.Equal(t, strings.Join(response.Words(response.OutOfScope), ""), tokens(evs))
	assert.Nil(t, f.llm.history, "model must not be called")

	saved := f.db.saved()
	require.Len(t, saved, 1)
	assert.Equal(t, response.OutOfScope, saved[0].Content)
	assert.Empty(t, saved[0].Sources)
}

func TestStreamSelectionModeSkipsScopeGate(t *testing.T) {
	f := newChatFixture(search.Result{OutOfScope: true}, "It means ", "what it says.")

	evs := drain(f.svc.Stream(context.Background(), ChatCommand{
		Query:        "Explain this",
		SelectedText: "a PID controller",
	}))

	assert.Equal(t, []string{"a PID controller"}, f.retriever.selection)
	assert.Empty(t, f.retriever.queries)
	assert.Equal(t, "It means what it says.", tokens(evs))
	assert.Equal(t, stream.DoneEvent{}, evs[len(evs)-1])
	assert.Contains(t, f.llm.history[0].Content, "a PID controller")
	assert.Empty(t, f.db.saved(), "nothing is stored without ids")
}

func TestStreamRejectsInvalidQuery(t *testing.T) {
	f := newChatFixture(groundedResult())

	evs := drain(f.svc.Stream(context.Background(), ChatCommand{Query: "   "}))

	require.Len(t, evs, 1)
	assert.Equal(t, stream.ErrorEvent{Message: "Query cannot be empty", Code: stream.CodeInvalidRequest}, evs[0])
	assert.Empty(t, f.retriever.queries)
}

func TestStreamRetrievalFailureIsTerminal(t *testing.T) {
	f := newChatFixture(search.Result{})
	f.retriever.err = errors.New("embedding generation failed: request timed out")

	evs := drain(f.svc.Stream(context.Background(), ChatCommand{Query: "What is a servo?"}))

	require.Len(t, evs, 1)
	errEv, ok := evs[0].(stream.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, stream.CodeTimeout, errEv.Code)
}

func TestStreamGenerationFailureAfterTokens(t *testing.T) {
	f := newChatFixture(groundedResult(), "partial ")
	f.llm.stream.err = statusErr{code: 429}
	convID, msgID := uuid.New(), uuid.New()

	evs := drain(f.svc.Stream(context.Background(), ChatCommand{
		Query:          "What is a servo?",
		ConversationID: convID.String(),
		MessageID:      msgID.String(),
	}))

	require.Len(t, evs, 2)
	assert.Equal(t, stream.TokenEvent{Content: "partial "}, evs[0])
	assert.Equal(t, stream.CodeRateLimit, evs[1].(stream.ErrorEvent).Code)
	assert.Empty(t, f.db.saved())
}

func TestStreamPersistenceFailureStillCompletes(t *testing.T) {
	f := newChatFixture(groundedResult(), "answer")
	f.db.failSave = errors.New("database is down")

	evs := drain(f.svc.Stream(context.Background(), ChatCommand{
		Query:          "What is a servo?",
		ConversationID: uuid.NewString(),
		MessageID:      uuid.NewString(),
	}))

	require.Len(t, evs, 3)
	assert.IsType(t, stream.SourcesEvent{}, evs[1])
	assert.Equal(t, stream.DoneEvent{}, evs[2])
}

func TestStreamCancellationStopsWithoutPersisting(t *testing.T) {
	block := make(chan struct{})
	f := newChatFixture(groundedResult(), "first ")
	f.llm.stream.block = block
	f.llm.stream.err = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	ch := f.svc.Stream(ctx, ChatCommand{
		Query:          "What is a servo?",
		ConversationID: uuid.NewString(),
		MessageID:      uuid.NewString(),
	})

	first := <-ch
	assert.Equal(t, stream.TokenEvent{Content: "first "}, first)

	cancel()
	close(block)

	rest := drain(ch)
	for _, ev := range rest {
		assert.False(t, stream.IsTerminal(ev), "no terminal event after cancellation")
	}
	assert.Empty(t, f.db.saved())
}

func TestStreamBoundsStoredHistory(t *testing.T) {
	f := newChatFixture(groundedResult(), "ok")
	supplied := make([]llm.Message, 30)
	for i := range supplied {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		supplied[i] = llm.Message{Role: role, Content: "turn"}
	}

	drain(f.svc.Stream(context.Background(), ChatCommand{Query: "And then?", History: supplied}))

	// system + 10 history + user
	assert.Len(t, f.llm.history, 12)
}

func TestCompleteDrainsStream(t *testing.T) {
	f := newChatFixture(groundedResult(), "Servos ", "hold position.")

	answer, err := f.svc.Complete(context.Background(), ChatCommand{Query: "What is a servo?"})

	require.NoError(t, err)
	assert.Equal(t, "Servos hold position.", answer.Content)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "/chapter-2", answer.Sources[0].URL)
}

func TestCompleteReturnsChatError(t *testing.T) {
	f := newChatFixture(groundedResult())
	f.llm.startErr = statusErr{code: 503}

	_, err := f.svc.Complete(context.Background(), ChatCommand{Query: "What is a servo?"})

	var chatErr *ChatError
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, stream.CodeServiceError, chatErr.Code)
}
