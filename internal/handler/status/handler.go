// Package status serves the process-level request/response surface: the
// root descriptor, the health probe and the out-of-band AI diagnostics
// endpoint.
package status

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tessamero/chatrelay/backend/internal/config"
	"github.com/tessamero/chatrelay/backend/internal/service/history"
	"github.com/tessamero/chatrelay/backend/internal/service/relay"
	"github.com/tessamero/chatrelay/backend/pkg/utils"
)

// Completer invokes the completion provider directly, bypassing the relay.
type Completer interface {
	Complete(ctx context.Context, message string) (string, error)
}

// AvailabilityFunc reports cached provider availability.
type AvailabilityFunc func() bool

// Handler serves the plain HTTP surface.
type Handler struct {
	relay     *relay.Relay
	history   *history.Log
	available AvailabilityFunc
	completer Completer
	ollamaCfg config.OllamaConfig
}

// New creates the status handler. completer may be nil when AI is disabled.
func New(relaySvc *relay.Relay, hist *history.Log, available AvailabilityFunc, completer Completer, ollamaCfg config.OllamaConfig) *Handler {
	if available == nil {
		available = func() bool { return false }
	}
	return &Handler{
		relay:     relaySvc,
		history:   hist,
		available: available,
		completer: completer,
		ollamaCfg: ollamaCfg,
	}
}

// RegisterRoutes registers the status endpoints on the root router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/health", h.handleHealth)
	r.Get("/debug-ai", h.handleDebugAI)
	r.Get("/favicon.ico", h.handleFavicon)
}

func (h *Handler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message":        "Chat relay backend with AI integration",
		"version":        "2.0",
		"endpoints":      []string{"/health", "/ws", "/api/history", "/api/users"},
		"ai_integration": "ollama",
		"model":          h.ollamaCfg.Model,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"ollama_available":  h.available(),
		"active_users":      h.relay.SessionCount(),
		"chat_history_size": h.history.Len(),
		"model":             h.ollamaCfg.Model,
		"ollama_url":        h.ollamaCfg.BaseURL,
	})
}

func (h *Handler) handleDebugAI(w http.ResponseWriter, r *http.Request) {
	if h.completer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai integration disabled")
		return
	}

	message := r.URL.Query().Get("message")
	if message == "" {
		message = "Hello"
	}

	output, err := h.completer.Complete(r.Context(), message)
	if err != nil {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
			"input":   message,
		})
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"input":     message,
		"output":    output,
		"timestamp": float64(time.Now().UnixNano()) / float64(time.Second),
	})
}

func (h *Handler) handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
