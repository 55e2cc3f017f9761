// Package ai turns AI-directed chat messages into completion records.
package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/tessamero/chatrelay/backend/internal/model/chat"
	"github.com/tessamero/chatrelay/backend/internal/provider/ollama"
	"github.com/tessamero/chatrelay/backend/internal/service/history"
	"github.com/tessamero/chatrelay/backend/internal/trigger"
	"github.com/tessamero/chatrelay/backend/pkg/log"
)

const (
	systemInstruction = "You are a helpful AI assistant in a group chat. Keep responses concise, friendly, and under 200 words."
	greetingPrompt    = "Hello! How can I help you?"
	emptyReplyBody    = "🤔 I'm having trouble thinking of a response right now."
	unavailableBody   = "❌ AI service is currently unavailable. Please try again later."
	timeoutBody       = "⏱️ Sorry, that request took too long. Please try again!"

	// DefaultContextWindow bounds the conversation context per completion.
	DefaultContextWindow = 5
)

// Broadcaster re-enters completed records into the relay path.
type Broadcaster interface {
	Inject(record chat.Message)
}

// AvailabilityFunc reports cached provider availability without blocking.
type AvailabilityFunc func() bool

// Dispatcher runs completion requests as detached tasks. Each dispatch is
// independent; there is no de-duplication and no cancellation.
type Dispatcher struct {
	runner    compose.Runnable[map[string]any, *schema.Message]
	history   *history.Log
	detector  *trigger.Detector
	sink      Broadcaster
	available AvailabilityFunc
	window    int

	wg sync.WaitGroup
}

// NewDispatcher compiles the prompt chain over the given chat model.
func NewDispatcher(ctx context.Context, chatModel model.BaseChatModel, hist *history.Log, det *trigger.Detector, available AvailabilityFunc, window int) (*Dispatcher, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runner, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	if window <= 0 {
		window = DefaultContextWindow
	}
	if available == nil {
		available = func() bool { return true }
	}

	return &Dispatcher{
		runner:    runner,
		history:   hist,
		detector:  det,
		available: available,
		window:    window,
	}, nil
}

// SetSink wires the relay entry point. Call before the first Dispatch.
func (d *Dispatcher) SetSink(sink Broadcaster) {
	d.sink = sink
}

// Dispatch starts one detached completion task for a triggering message.
// It returns immediately; the result re-enters through the sink as an
// ai-kind record, or an error-kind record on failure.
func (d *Dispatcher) Dispatch(username, body string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.L().Error().Interface("panic", rec).Msg("ai dispatch panic")
				d.sink.Inject(chat.ErrorMessage("❌ Sorry, the AI assistant encountered an error"))
			}
		}()
		d.process(username, body)
	}()
}

// Wait blocks until in-flight dispatches finish. Used during shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) process(username, body string) {
	if !d.available() {
		d.sink.Inject(chat.ErrorMessage(unavailableBody))
		return
	}

	query := d.detector.Strip(body)
	if query == "" {
		query = greetingPrompt
	}

	// The triggering message is passed as the query, not repeated in the
	// context window.
	records := d.history.RecentContext(d.window+1, chat.KindSystem, chat.KindError)
	if n := len(records); n > 0 && records[n-1].Username == username && records[n-1].Body == body {
		records = records[:n-1]
	}
	if len(records) > d.window {
		records = records[len(records)-d.window:]
	}

	log.L().Info().Str("username", username).Int("context", len(records)).Msg("requesting ai completion")

	reply, err := d.complete(context.Background(), query, records)
	if err != nil {
		log.L().Error().Err(err).Msg("ai completion failed")
		d.sink.Inject(chat.ErrorMessage(failureBody(err)))
		return
	}

	if reply == "" {
		reply = emptyReplyBody
	}

	d.sink.Inject(chat.Message{
		Username: chat.AIAuthor,
		Body:     reply,
		Kind:     chat.KindAI,
	})
}

// Complete invokes the completion chain directly, bypassing the relay. Used
// by the out-of-band diagnostics endpoint.
func (d *Dispatcher) Complete(ctx context.Context, message string) (string, error) {
	return d.complete(ctx, message, nil)
}

func (d *Dispatcher) complete(ctx context.Context, query string, records []chat.Message) (string, error) {
	response, err := d.runner.Invoke(ctx, map[string]any{
		"system":  systemInstruction,
		"history": contextMessages(records),
		"query":   query,
	})
	if err != nil {
		return "", err
	}
	return Sanitize(response.Content), nil
}

// contextMessages renders chat records as "<name>: <body>" conversation
// lines in chronological order.
func contextMessages(records []chat.Message) []*schema.Message {
	if len(records) == 0 {
		return nil
	}

	messages := make([]*schema.Message, 0, len(records))
	for _, record := range records {
		line := fmt.Sprintf("%s: %s", record.Username, record.Body)
		if record.Kind == chat.KindAI {
			messages = append(messages, schema.AssistantMessage(line, nil))
			continue
		}
		messages = append(messages, schema.UserMessage(line))
	}
	return messages
}

func failureBody(err error) string {
	switch {
	case ollama.IsTimeout(err):
		return timeoutBody
	case ollama.IsNotRunning(err):
		return unavailableBody
	default:
		return "❌ Sorry, the AI assistant encountered an error: " + truncate(err.Error(), 100)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
