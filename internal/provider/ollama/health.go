package ollama

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tessamero/chatrelay/backend/pkg/log"
)

// Health caches provider availability so the relay path never blocks on a
// health probe. Refresh runs on its own schedule in the background.
type Health struct {
	client    *Client
	interval  time.Duration
	available atomic.Bool
}

// NewHealth wraps the client with a cached availability flag.
func NewHealth(client *Client, interval time.Duration) *Health {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Health{client: client, interval: interval}
}

// Available reports the last observed provider availability.
func (h *Health) Available() bool {
	return h.available.Load()
}

// Refresh probes the provider once and updates the cached flag.
func (h *Health) Refresh(ctx context.Context) bool {
	err := h.client.CheckHealth(ctx)
	ok := err == nil
	if prev := h.available.Swap(ok); prev != ok {
		if ok {
			log.L().Info().Msg("ollama service is healthy")
		} else {
			log.L().Warn().Err(err).Msg("ollama service unavailable")
		}
	}
	return ok
}

// Run refreshes availability until the context is cancelled.
func (h *Health) Run(ctx context.Context) {
	h.Refresh(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}
