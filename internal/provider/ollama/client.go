// Package ollama provides the admin-side HTTP client for the completion
// provider: health checks and model availability. Completions themselves go
// through the eino chat model.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tessamero/chatrelay/backend/internal/config"
	"github.com/tessamero/chatrelay/backend/pkg/log"
)

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeInvalidResponse
)

// ClientError represents an error from the Ollama admin client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Sentinel errors for easy checking.
var (
	ErrNotRunning = &ClientError{Type: ErrTypeNotRunning, Message: "ollama is not running"}
	ErrTimeout    = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
)

// Client talks to the Ollama HTTP API for operations the chat model does not
// cover. It is safe for concurrent use.
type Client struct {
	cfg        config.OllamaConfig
	httpClient *http.Client
	pullClient *http.Client
}

// NewClient creates an admin client from provider configuration.
func NewClient(cfg config.OllamaConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		pullClient: &http.Client{Timeout: cfg.PullTimeout},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// BaseURL returns the configured provider URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// CheckHealth verifies that the provider is reachable.
func (c *Client) CheckHealth(ctx context.Context) error {
	resp, err := c.get(ctx, "/api/tags")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "unexpected status from ollama: " + resp.Status,
		}
	}
	return nil
}

type listModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type pullRequest struct {
	Name string `json:"name"`
}

// EnsureModel pulls the configured model if it is not present yet. The call
// is idempotent and may take minutes; run it from a background goroutine,
// never on the request path.
func (c *Client) EnsureModel(ctx context.Context) error {
	resp, err := c.get(ctx, "/api/tags")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "failed to list models: " + resp.Status,
		}
	}

	var models listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode model list", Cause: err}
	}

	for _, model := range models.Models {
		if strings.Contains(model.Name, c.cfg.Model) {
			log.L().Debug().Str("model", c.cfg.Model).Msg("model already available")
			return nil
		}
	}

	log.L().Info().Str("model", c.cfg.Model).Msg("model not found, pulling")
	return c.pull(ctx)
}

func (c *Client) pull(ctx context.Context) error {
	body, err := json.Marshal(pullRequest{Name: c.cfg.Model})
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal pull request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.pullClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: fmt.Sprintf("failed to pull model %s: %s", c.cfg.Model, resp.Status),
		}
	}

	log.L().Info().Str("model", c.cfg.Model).Msg("model pulled")
	return nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrNotRunning
	}
	return resp, nil
}

// IsNotRunning checks if an error indicates the provider is unreachable.
func IsNotRunning(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotRunning
	}
	return false
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}
