// Package assistant holds the conversational core: context assembly from
// Outlook data, the chat-completions client, the calendar directive protocol
// and the shared inbound message router.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Completion parameters. Replies go out over SMS, so keep them short.
const (
	completionMaxTokens   = 500
	completionTemperature = 0.7
)

// ErrAIProcessing wraps any model-call failure. Every caller substitutes a
// generic apology instead of letting this reach the transport layer.
var ErrAIProcessing = errors.New("assistant: AI processing failed")

// Completer produces a chat completion for a system/user prompt pair.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// LLMConfig configures the chat-completions endpoint.
type LLMConfig struct {
	// Provider is "openai" (Bearer auth) or "azure" (api-key header,
	// deployment-scoped URL with api-version).
	Provider   string
	BaseURL    string
	APIKey     string
	Model      string
	APIVersion string
}

// LLMClient calls an OpenAI-compatible chat-completions endpoint.
type LLMClient struct {
	cfg        LLMConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLLMClient creates a chat-completions client.
func NewLLMClient(cfg LLMConfig, logger *slog.Logger) *LLMClient {
	return &LLMClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With("component", "llm"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one system+user exchange and returns the assistant reply.
// All failures are wrapped in ErrAIProcessing.
func (c *LLMClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	reqBody := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		MaxTokens:   completionMaxTokens,
		Temperature: completionTemperature,
	}
	if c.cfg.Provider != "azure" {
		// Azure routes by deployment in the URL, not the body.
		reqBody.Model = c.cfg.Model
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: encoding request: %v", ErrAIProcessing, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrAIProcessing, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Provider == "azure" {
		req.Header.Set("api-key", c.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAIProcessing, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrAIProcessing, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: parsing response (status %d): %v", ErrAIProcessing, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrAIProcessing, resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices in response", ErrAIProcessing)
	}

	reply := parsed.Choices[0].Message.Content
	c.logger.Debug("completion received", "model", c.cfg.Model, "reply_len", len(reply))
	return reply, nil
}

// endpoint builds the provider-specific completions URL.
func (c *LLMClient) endpoint() string {
	if c.cfg.Provider == "azure" {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			c.cfg.BaseURL, c.cfg.Model, c.cfg.APIVersion)
	}
	return c.cfg.BaseURL + "/chat/completions"
}
