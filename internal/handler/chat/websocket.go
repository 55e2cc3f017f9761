// Package chat exposes the websocket relay endpoint and read-only REST
// mirrors of the chat state.
package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tessamero/chatrelay/backend/internal/hub"
	"github.com/tessamero/chatrelay/backend/internal/service/history"
	"github.com/tessamero/chatrelay/backend/internal/service/relay"
	"github.com/tessamero/chatrelay/backend/pkg/log"
	"github.com/tessamero/chatrelay/backend/pkg/utils"
)

// Handler upgrades connections into the relay.
type Handler struct {
	relay    *relay.Relay
	history  *history.Log
	hubCfg   hub.Config
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(relaySvc *relay.Relay, hist *history.Log, hubCfg hub.Config) *Handler {
	return &Handler{
		relay:   relaySvc,
		history: hist,
		hubCfg:  hubCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the request and hands the connection to the relay.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.L().Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.NewString(), conn, h.hubCfg)
	h.relay.Connect(client)

	go client.WritePump()
	go client.ReadPump(h.relay.HandleFrame, h.relay.Detach)
}

// RegisterRoutes registers the read-only REST mirrors.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history", h.handleHistory)
	r.Get("/users", h.handleUsers)
}

func (h *Handler) handleHistory(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.history.Snapshot())
}

func (h *Handler) handleUsers(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.relay.ActiveUsers())
}
