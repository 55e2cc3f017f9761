package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessamero/chatrelay/backend/internal/config"
	"github.com/tessamero/chatrelay/backend/internal/model/chat"
	"github.com/tessamero/chatrelay/backend/internal/service/history"
	"github.com/tessamero/chatrelay/backend/internal/trigger"
)

type stubModel struct {
	reply string
	err   error

	mu     sync.Mutex
	inputs [][]*schema.Message
}

func (m *stubModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, in)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *stubModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *stubModel) lastInput(t *testing.T) []*schema.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.inputs)
	return m.inputs[len(m.inputs)-1]
}

type captureSink struct {
	ch chan chat.Message
}

func (s *captureSink) Inject(record chat.Message) {
	s.ch <- record
}

func newTestDispatcher(t *testing.T, chatModel model.BaseChatModel, hist *history.Log, available bool) (*Dispatcher, *captureSink) {
	t.Helper()

	det := trigger.NewDetector(config.TriggerConfig{
		Mentions:           []string{"@ai"},
		QuestionIndicators: []string{"?"},
		TopicKeywords:      []string{"algorithm"},
	})

	d, err := NewDispatcher(context.Background(), chatModel, hist, det, func() bool { return available }, 5)
	require.NoError(t, err)

	sink := &captureSink{ch: make(chan chat.Message, 4)}
	d.SetSink(sink)
	return d, sink
}

func receiveRecord(t *testing.T, sink *captureSink) chat.Message {
	t.Helper()
	select {
	case record := <-sink.ch:
		return record
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for injected record")
		return chat.Message{}
	}
}

func TestDispatchInjectsAIRecord(t *testing.T) {
	stub := &stubModel{reply: "  2+2 is 4.\n\nUser: leftover"}
	hist := history.NewLog(10)
	d, sink := newTestDispatcher(t, stub, hist, true)

	d.Dispatch("Alice", "@ai What is 2+2?")
	d.Wait()

	record := receiveRecord(t, sink)
	assert.Equal(t, chat.KindAI, record.Kind)
	assert.Equal(t, chat.AIAuthor, record.Username)
	assert.Equal(t, "2+2 is 4.", record.Body)

	// The stripped question reaches the model as the final user turn.
	input := stub.lastInput(t)
	require.NotEmpty(t, input)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Equal(t, "What is 2+2?", input[len(input)-1].Content)
}

func TestDispatchGreetsOnEmptyPrompt(t *testing.T) {
	stub := &stubModel{reply: "Hi!"}
	d, sink := newTestDispatcher(t, stub, history.NewLog(10), true)

	d.Dispatch("Alice", "@ai")
	d.Wait()

	receiveRecord(t, sink)

	input := stub.lastInput(t)
	assert.Equal(t, "Hello! How can I help you?", input[len(input)-1].Content)
}

func TestDispatchBuildsContextExcludingTriggerAndSystem(t *testing.T) {
	stub := &stubModel{reply: "ok"}
	hist := history.NewLog(20)
	hist.Append(chat.SystemMessage("Alice joined"))
	hist.Append(chat.Message{Username: "Alice", Body: "hello", Kind: chat.KindUser})
	hist.Append(chat.Message{Username: "Bob", Body: "hi Alice", Kind: chat.KindUser})
	hist.Append(chat.Message{Username: "Alice", Body: "@ai what is an algorithm?", Kind: chat.KindUser})

	d, sink := newTestDispatcher(t, stub, hist, true)

	d.Dispatch("Alice", "@ai what is an algorithm?")
	d.Wait()
	receiveRecord(t, sink)

	input := stub.lastInput(t)
	// system + 2 context lines + query
	require.Len(t, input, 4)
	assert.Equal(t, "Alice: hello", input[1].Content)
	assert.Equal(t, "Bob: hi Alice", input[2].Content)
	assert.Equal(t, "what is an algorithm?", input[3].Content)
}

func TestDispatchFailureInjectsErrorRecord(t *testing.T) {
	stub := &stubModel{err: errors.New("boom")}
	d, sink := newTestDispatcher(t, stub, history.NewLog(10), true)

	d.Dispatch("Alice", "@ai anything")
	d.Wait()

	record := receiveRecord(t, sink)
	assert.Equal(t, chat.KindError, record.Kind)
	assert.Equal(t, chat.SystemAuthor, record.Username)
	assert.Contains(t, record.Body, "boom")
}

func TestDispatchShortCircuitsWhenUnavailable(t *testing.T) {
	stub := &stubModel{reply: "never"}
	d, sink := newTestDispatcher(t, stub, history.NewLog(10), false)

	d.Dispatch("Alice", "@ai anything")
	d.Wait()

	record := receiveRecord(t, sink)
	assert.Equal(t, chat.KindError, record.Kind)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Empty(t, stub.inputs)
}

func TestFailureBodyTruncatesOnRuneBoundary(t *testing.T) {
	body := failureBody(errors.New(strings.Repeat("é", 150)))

	assert.True(t, utf8.ValidString(body))
	assert.Contains(t, body, strings.Repeat("é", 100))
	assert.NotContains(t, body, strings.Repeat("é", 101))
}

func TestCompleteBypassesRelay(t *testing.T) {
	stub := &stubModel{reply: "direct answer"}
	d, _ := newTestDispatcher(t, stub, history.NewLog(10), true)

	out, err := d.Complete(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "direct answer", out)
}
