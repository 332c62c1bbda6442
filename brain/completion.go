package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout  = 60 * time.Second
	maxResponseSize = 1 << 20
)

// Message is one chat message of a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// CompletionClient calls an OpenAI compatible chat completions endpoint.
type CompletionClient struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

// NewCompletionClient returns a client for the given base URL, for example
// https://api.openai.com/v1. A nil httpClient uses one with a 60s timeout.
func NewCompletionClient(endpoint, apiKey, model string, httpClient *http.Client) *CompletionClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &CompletionClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		http:     httpClient,
	}
}

// Model returns the model requested by the client.
func (cc *CompletionClient) Model() string {
	return cc.model
}

// Complete sends the messages and returns the content of the first choice.
func (cc *CompletionClient) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(&completionRequest{Model: cc.model, Messages: messages, Temperature: 0.2})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cc.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cc.apiKey)

	resp, err := cc.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("could not read completion response: %w", err)
	}

	var out completionResponse
	jsonErr := json.Unmarshal(data, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if jsonErr == nil && out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("completion endpoint returned %d", resp.StatusCode)
	}
	if jsonErr != nil {
		return "", fmt.Errorf("could not decode completion response: %w", jsonErr)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("completion response has no content")
	}
	return out.Choices[0].Message.Content, nil
}
