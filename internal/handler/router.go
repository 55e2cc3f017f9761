package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/tessamero/chatrelay/backend/internal/handler/chat"
	"github.com/tessamero/chatrelay/backend/internal/handler/status"
	middlewarePkg "github.com/tessamero/chatrelay/backend/internal/middleware"
)

// Deps collects everything the HTTP surface needs.
type Deps struct {
	Chat   *chatHandler.Handler
	Status *status.Handler
}

// NewRouter wires HTTP and websocket routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	deps.Status.RegisterRoutes(r)

	r.Get("/ws", deps.Chat.HandleWebSocket)
	r.Route("/api", func(api chi.Router) {
		deps.Chat.RegisterRoutes(api)
	})

	return r
}
