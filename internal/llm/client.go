// Package llm talks to an OpenAI-compatible chat completion endpoint in
// streaming mode.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/sproutwatch/sproutwatch/internal/config"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

var (
	// ErrRateLimited is returned for HTTP 429 from the endpoint.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrQuotaExceeded is returned for HTTP 402 from the endpoint.
	ErrQuotaExceeded = errors.New("payment required")
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("chat endpoint not configured")
)

// StatusError is any other non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat endpoint: status %d: %s", e.Code, e.Body)
}

// Client sends streaming chat completion requests.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu    sync.RWMutex
	model string
}

// NewClient creates a client from config.
func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// SetModel switches the model used by subsequent requests.
func (c *Client) SetModel(model string) {
	if model == "" {
		return
	}
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Stream posts the transcript, prefixed with the system prompt for
// currentPlant, and returns the raw event-stream body. The caller must
// close it.
func (c *Client) Stream(ctx context.Context, transcript []models.ChatMessage, currentPlant string) (io.ReadCloser, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	msgs := make([]chatMessage, 0, len(transcript)+1)
	msgs = append(msgs, chatMessage{Role: string(models.RoleSystem), Content: SystemPrompt(currentPlant)})
	for _, m := range transcript {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(chatRequest{Model: c.Model(), Messages: msgs, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat endpoint: request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return nil, ErrRateLimited
		case http.StatusPaymentRequired:
			return nil, ErrQuotaExceeded
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return resp.Body, nil
}
