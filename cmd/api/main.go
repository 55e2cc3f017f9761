package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tessamero/chatrelay/backend/internal/config"
	"github.com/tessamero/chatrelay/backend/internal/handler"
	chatHandler "github.com/tessamero/chatrelay/backend/internal/handler/chat"
	"github.com/tessamero/chatrelay/backend/internal/handler/status"
	"github.com/tessamero/chatrelay/backend/internal/hub"
	providerOllama "github.com/tessamero/chatrelay/backend/internal/provider/ollama"
	"github.com/tessamero/chatrelay/backend/internal/service/ai"
	"github.com/tessamero/chatrelay/backend/internal/service/history"
	"github.com/tessamero/chatrelay/backend/internal/service/registry"
	"github.com/tessamero/chatrelay/backend/internal/service/relay"
	"github.com/tessamero/chatrelay/backend/internal/trigger"
	"github.com/tessamero/chatrelay/backend/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.L().Debug().Err(err).Msg("no .env file, continuing with system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.L().Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Init(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Service: "chatrelay"})
	logger := log.L()

	// Provider admin client and cached availability.
	providerClient := providerOllama.NewClient(cfg.Ollama)
	health := providerOllama.NewHealth(providerClient, cfg.Ollama.HealthInterval)
	go health.Run(ctx)

	// Model bootstrap runs in the background; failures are logged only and
	// never block startup or the request path.
	go func() {
		if err := providerClient.EnsureModel(ctx); err != nil {
			logger.Warn().Err(err).Msg("model bootstrap failed, ai features may be degraded")
		}
	}()

	detector := trigger.NewDetector(cfg.Trigger)
	chatLog := history.NewLog(cfg.Chat.HistoryCap)
	sessions := registry.New(cfg.Chat.MaxNameLen)
	relaySvc := relay.New(cfg.Chat, sessions, chatLog, detector, health.Available)

	var dispatcher *ai.Dispatcher
	chatModel, err := cfg.Ollama.NewChatModel(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize chat model, continuing without ai")
	} else {
		dispatcher, err = ai.NewDispatcher(ctx, chatModel, chatLog, detector, health.Available, cfg.Chat.ContextWindow)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize ai dispatcher, continuing without ai")
			dispatcher = nil
		}
	}
	if dispatcher != nil {
		dispatcher.SetSink(relaySvc)
		relaySvc.SetDispatcher(dispatcher)
		logger.Info().Str("model", cfg.Ollama.Model).Msg("ai dispatch enabled")
	}

	go relaySvc.Run(ctx)

	wsHandler := chatHandler.New(relaySvc, chatLog, hub.DefaultConfig())
	var completer status.Completer
	if dispatcher != nil {
		completer = dispatcher
	}
	statusHandler := status.New(relaySvc, chatLog, health.Available, completer, cfg.Ollama)

	router := handler.NewRouter(handler.Deps{Chat: wsHandler, Status: statusHandler})

	startServer(ctx, cfg.Server, router)

	if dispatcher != nil {
		dispatcher.Wait()
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.L().Info().Str("addr", serverCfg.Addr).Msg("chat relay backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.L().Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
