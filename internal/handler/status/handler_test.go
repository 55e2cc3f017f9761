package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tessamero/chatrelay/backend/internal/config"
	"github.com/tessamero/chatrelay/backend/internal/model/chat"
	"github.com/tessamero/chatrelay/backend/internal/service/history"
	"github.com/tessamero/chatrelay/backend/internal/service/registry"
	"github.com/tessamero/chatrelay/backend/internal/service/relay"
	"github.com/tessamero/chatrelay/backend/internal/trigger"
)

type stubCompleter struct {
	output string
	err    error
	input  string
}

func (c *stubCompleter) Complete(_ context.Context, message string) (string, error) {
	c.input = message
	if c.err != nil {
		return "", c.err
	}
	return c.output, nil
}

func newTestHandler(hist *history.Log, completer Completer, available bool) *Handler {
	cfg := config.ChatConfig{
		HistoryCap:    100,
		MaxNameLen:    50,
		MaxMessageLen: 1000,
		SweepInterval: time.Minute,
		IdleTimeout:   time.Minute,
	}
	det := trigger.NewDetector(config.TriggerConfig{Mentions: []string{"@ai"}})
	relaySvc := relay.New(cfg, registry.New(cfg.MaxNameLen), hist, det, nil)

	ollamaCfg := config.OllamaConfig{
		BaseURL: "http://localhost:11434",
		Model:   "llama2",
	}
	return New(relaySvc, hist, func() bool { return available }, completer, ollamaCfg)
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHandleIndex(t *testing.T) {
	h := newTestHandler(history.NewLog(10), nil, false)

	rec := serve(h, http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["model"] != "llama2" {
		t.Errorf("expected model llama2, got %v", body["model"])
	}
	if body["ai_integration"] != "ollama" {
		t.Errorf("expected ollama integration, got %v", body["ai_integration"])
	}
}

func TestHandleHealth(t *testing.T) {
	hist := history.NewLog(10)
	hist.Append(chat.SystemMessage("Alice joined"))
	hist.Append(chat.SystemMessage("Bob joined"))
	h := newTestHandler(hist, nil, true)

	rec := serve(h, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	if body["ollama_available"] != true {
		t.Errorf("expected ollama_available true, got %v", body["ollama_available"])
	}
	if body["chat_history_size"] != float64(2) {
		t.Errorf("expected history size 2, got %v", body["chat_history_size"])
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Errorf("timestamp not RFC3339: %v", err)
	}
}

func TestHandleDebugAI(t *testing.T) {
	completer := &stubCompleter{output: "Hi there!"}
	h := newTestHandler(history.NewLog(10), completer, true)

	rec := serve(h, http.MethodGet, "/debug-ai?message=Hello+bot")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["success"] != true {
		t.Errorf("expected success, got %v", body["success"])
	}
	if body["output"] != "Hi there!" {
		t.Errorf("unexpected output: %v", body["output"])
	}
	if completer.input != "Hello bot" {
		t.Errorf("expected query to reach completer, got %q", completer.input)
	}
}

func TestHandleDebugAIDefaultsMessage(t *testing.T) {
	completer := &stubCompleter{output: "ok"}
	h := newTestHandler(history.NewLog(10), completer, true)

	serve(h, http.MethodGet, "/debug-ai")
	if completer.input != "Hello" {
		t.Errorf("expected default message Hello, got %q", completer.input)
	}
}

func TestHandleDebugAIReportsFailure(t *testing.T) {
	completer := &stubCompleter{err: errors.New("model offline")}
	h := newTestHandler(history.NewLog(10), completer, true)

	rec := serve(h, http.MethodGet, "/debug-ai")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
	if body["error"] != "model offline" {
		t.Errorf("unexpected error: %v", body["error"])
	}
}

func TestHandleDebugAIWithoutCompleter(t *testing.T) {
	h := newTestHandler(history.NewLog(10), nil, false)

	rec := serve(h, http.MethodGet, "/debug-ai")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandleFavicon(t *testing.T) {
	h := newTestHandler(history.NewLog(10), nil, false)

	rec := serve(h, http.MethodGet, "/favicon.ico")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}
