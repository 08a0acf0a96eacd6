package openrouter_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Client calls the OpenRouter chat-completions API.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// Message represents a message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request represents a request to the OpenRouter API.
type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// response represents a response from the OpenRouter API.
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a new OpenRouter client. Zero-valued model,
// temperature and maxTokens fall back to the client defaults per call.
func NewClient(apiKey, baseURL, model string, temperature float64, maxTokens int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Complete sends the prompt as a single user message and returns the first
// choice's content. A zero model/temperature/maxTokens uses the client default.
func (c *Client) Complete(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error) {
	if model == "" {
		model = c.model
	}
	if temperature == 0 {
		temperature = c.temperature
	}
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	messages := []Message{{Role: "user", Content: prompt}}
	return c.sendRequest(ctx, request{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
}

// sendRequest sends a chat-completions request to the OpenRouter API.
func (c *Client) sendRequest(ctx context.Context, body request) (string, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var orResp response
	if err := json.Unmarshal(buf.Bytes(), &orResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(orResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return orResp.Choices[0].Message.Content, nil
}
