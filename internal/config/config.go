package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
	"github.com/ollama/ollama/api"
)

// Config aggregates every configuration concern of the service.
type Config struct {
	Server  ServerConfig
	Ollama  OllamaConfig
	Chat    ChatConfig
	Trigger TriggerConfig
	Log     LogConfig
}

// Load reads the full configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ollamaCfg, err := loadOllamaConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Ollama:  ollamaCfg,
		Chat:    chat,
		Trigger: loadTriggerConfig(),
		Log:     logCfg,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5000"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":5000" or "127.0.0.1:5000" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// OllamaConfig describes the completion provider.
type OllamaConfig struct {
	BaseURL        string
	Model          string
	Timeout        time.Duration
	PullTimeout    time.Duration
	HealthInterval time.Duration
	Temperature    float32
	TopP           float32
	MaxTokens      int
	Stop           []string
}

// NewChatModel builds an eino chat model backed by the configured Ollama
// server.
func (c OllamaConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Timeout: c.Timeout,
		Options: &api.Options{
			Temperature: c.Temperature,
			TopP:        c.TopP,
			NumPredict:  c.MaxTokens,
			Stop:        c.Stop,
		},
	})
}

func loadOllamaConfig() (OllamaConfig, error) {
	timeout, err := parseDurationEnv("OLLAMA_TIMEOUT", 45*time.Second)
	if err != nil {
		return OllamaConfig{}, err
	}

	pullTimeout, err := parseDurationEnv("OLLAMA_PULL_TIMEOUT", 5*time.Minute)
	if err != nil {
		return OllamaConfig{}, err
	}

	healthInterval, err := parseDurationEnv("OLLAMA_HEALTH_INTERVAL", 30*time.Second)
	if err != nil {
		return OllamaConfig{}, err
	}

	temperature, err := parseFloatEnv("OLLAMA_TEMPERATURE", 0.7)
	if err != nil {
		return OllamaConfig{}, err
	}

	topP, err := parseFloatEnv("OLLAMA_TOP_P", 0.9)
	if err != nil {
		return OllamaConfig{}, err
	}

	maxTokens, err := parseIntEnv("OLLAMA_MAX_TOKENS", 200)
	if err != nil {
		return OllamaConfig{}, err
	}

	return OllamaConfig{
		BaseURL:        getEnvOrDefault("OLLAMA_URL", "http://localhost:11434"),
		Model:          getEnvOrDefault("MODEL_NAME", "llama2"),
		Timeout:        timeout,
		PullTimeout:    pullTimeout,
		HealthInterval: healthInterval,
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		Stop:           []string{"User:", "Assistant:", "\n\nUser:", "\n\nAssistant:"},
	}, nil
}

// ChatConfig bounds the chat log, message validation and the idle sweep.
type ChatConfig struct {
	HistoryCap    int
	ContextWindow int
	MaxMessageLen int
	MaxNameLen    int
	SweepInterval time.Duration
	IdleTimeout   time.Duration
}

func loadChatConfig() (ChatConfig, error) {
	historyCap, err := parseIntEnv("CHAT_HISTORY_CAP", 100)
	if err != nil {
		return ChatConfig{}, err
	}

	contextWindow, err := parseIntEnv("CHAT_CONTEXT_WINDOW", 5)
	if err != nil {
		return ChatConfig{}, err
	}

	maxMessageLen, err := parseIntEnv("CHAT_MAX_MESSAGE_LEN", 1000)
	if err != nil {
		return ChatConfig{}, err
	}

	maxNameLen, err := parseIntEnv("CHAT_MAX_NAME_LEN", 50)
	if err != nil {
		return ChatConfig{}, err
	}

	sweepInterval, err := parseDurationEnv("CHAT_SWEEP_INTERVAL", 5*time.Minute)
	if err != nil {
		return ChatConfig{}, err
	}

	idleTimeout, err := parseDurationEnv("CHAT_IDLE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return ChatConfig{}, err
	}

	return ChatConfig{
		HistoryCap:    historyCap,
		ContextWindow: contextWindow,
		MaxMessageLen: maxMessageLen,
		MaxNameLen:    maxNameLen,
		SweepInterval: sweepInterval,
		IdleTimeout:   idleTimeout,
	}, nil
}

// TriggerConfig holds the AI trigger phrase sets. All three lists are data,
// overridable per deployment.
type TriggerConfig struct {
	Mentions           []string
	QuestionIndicators []string
	TopicKeywords      []string
}

func loadTriggerConfig() TriggerConfig {
	return TriggerConfig{
		Mentions: parseListEnv("AI_TRIGGER_MENTIONS",
			[]string{"@ai", "@bot", "ai:", "bot:", "hey ai", "ask ai", "ai please", "ai help"}),
		QuestionIndicators: parseListEnv("AI_TRIGGER_QUESTIONS",
			[]string{"?", "how", "what", "why", "when", "where", "can you"}),
		TopicKeywords: parseListEnv("AI_TRIGGER_TOPICS",
			[]string{"artificial intelligence", "machine learning", "algorithm"}),
	}
}

// LogConfig describes logger output.
type LogConfig struct {
	Level  string
	Pretty bool
}

func loadLogConfig() (LogConfig, error) {
	pretty, err := parseBoolEnv("LOG_PRETTY", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Pretty: pretty,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloatEnv(key string, defaultValue float32) (float32, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return float32(val), nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
