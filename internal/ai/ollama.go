package ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaClient is a Completer backed by a local Ollama instance, for setups
// without an API key.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates a client from the environment, falling back to the
// given base URL.
func NewOllamaClient(baseURL, model string) (*OllamaClient, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		parsedURL, parseErr := url.Parse(baseURL)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid base URL: %w", parseErr)
		}
		client = api.NewClient(parsedURL, nil)
	}
	return &OllamaClient{client: client, model: model}, nil
}

func (o *OllamaClient) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	chatMessages := make([]api.Message, len(messages))
	for i, m := range messages {
		chatMessages[i] = api.Message{Role: m.Role, Content: m.Content}
	}

	req := &api.ChatRequest{
		Model:    o.model,
		Messages: chatMessages,
		Stream:   new(bool), // false
		Options: map[string]interface{}{
			"temperature": temperature,
		},
	}

	var fullResponse strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		fullResponse.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", &UpstreamError{Body: err.Error()}
	}
	return fullResponse.String(), nil
}
