// Package ai wraps the text-completion service used for enrichment and
// normalizes its free-form responses into typed values.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is one chat turn sent to the completion service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces assistant text for a conversation. Implementations are
// selected at startup; call sites never care which backend answers.
type Completer interface {
	Complete(ctx context.Context, messages []Message, temperature float64) (string, error)
}

// UpstreamError reports a failed AI or network call. Always recoverable:
// callers surface it to the user and keep running.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream error: HTTP %d: %s", e.Status, truncate(e.Body, 200))
	}
	return fmt.Sprintf("upstream error: %s", e.Body)
}

// ChatClient talks to an OpenAI-compatible chat-completions endpoint:
// a single POST with {model, messages, temperature} and a bearer token,
// assistant text read from choices[0].message.content.
type ChatClient struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// NewChatClient creates a client for the given endpoint and model. Requests
// carry a fixed timeout; a timeout surfaces as an ordinary error, not a
// distinct state.
func NewChatClient(endpoint, model, apiKey string) *ChatClient {
	return &ChatClient{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &UpstreamError{Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamError{Body: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", &UpstreamError{Status: resp.StatusCode, Body: "response carried no choices"}
	}
	return parsed.Choices[0].Message.Content, nil
}

// truncate truncates text to maxLen characters
func truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
