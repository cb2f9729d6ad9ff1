// Package llm wraps OpenAI-compatible chat-completion endpoints behind the
// port.LLM interface.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"kb/internal/adapter/provider"
)

// Client is an OpenAI-compatible chat completions client.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	client      *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatChoice struct {
	Index   int         `json:"index"`
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAIClient creates a client against api.openai.com.
func NewOpenAIClient(apiKeyEnv, model string, temperature float64, timeout time.Duration) (*Client, error) {
	return NewCompatibleClient(apiKeyEnv, model, "https://api.openai.com/v1", temperature, timeout)
}

// NewOpenRouterClient creates a client against openrouter.ai.
func NewOpenRouterClient(apiKeyEnv, model string, temperature float64, timeout time.Duration) (*Client, error) {
	return NewCompatibleClient(apiKeyEnv, model, "https://openrouter.ai/api/v1", temperature, timeout)
}

// NewOllamaClient creates a client against a local Ollama instance.
func NewOllamaClient(model, baseURL string, temperature float64, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	return newClient("ollama", model, baseURL, temperature, timeout), nil
}

// NewCompatibleClient creates a client against an arbitrary OpenAI-compatible
// base URL, reading the API key from the named environment variable.
func NewCompatibleClient(apiKeyEnv, model, baseURL string, temperature float64, timeout time.Duration) (*Client, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	return newClient(apiKey, model, baseURL, temperature, timeout), nil
}

func newClient(apiKey, model, baseURL string, temperature float64, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:      apiKey,
		model:       model,
		baseURL:     baseURL,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

// Generate produces a completion for the user prompt, optionally guided by a
// system prompt. A provider failure is surfaced directly; no answer is ever
// fabricated.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var messages []chatMessage
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	payload := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", provider.ErrUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", provider.ClassifyStatus(resp.StatusCode, string(raw))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", provider.ErrInvalidInput, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (c *Client) ModelName() string {
	return c.model
}
