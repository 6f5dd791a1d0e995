// Package openai provides a chat client for OpenAI-compatible APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/reviewpilot/reviewpilot/internal/adapter/llm"
	llmhttp "github.com/reviewpilot/reviewpilot/internal/adapter/llm/http"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
	providerName   = "openai"
)

// Client is an HTTP chat client for OpenAI-compatible endpoints.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewClient creates a chat client. An empty baseURL uses the OpenAI API.
func NewClient(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// SetTimeout overrides the per-call HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Chat sends one prompt and returns the model's text. Failures come back
// as classified *llmhttp.Error values so the retry policy can act on them.
func (c *Client) Chat(ctx context.Context, prompt string, opts llm.ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llmhttp.NewNetworkError(providerName, err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPStatus(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", llmhttp.NewAPIError(providerName,
			fmt.Sprintf("unparseable response: %s", llmhttp.TruncateForLogging(string(raw))), resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", llmhttp.NewAPIError(providerName, "response contained no choices", resp.StatusCode)
	}

	return parsed.Choices[0].Message.Content, nil
}

func classifyTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return llmhttp.NewTimeoutError(providerName, err.Error())
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return llmhttp.NewTimeoutError(providerName, err.Error())
		}
		return llmhttp.NewNetworkError(providerName, err.Error())
	}
}

func classifyHTTPStatus(status int, body []byte) error {
	message := llmhttp.TruncateForLogging(string(body))

	switch {
	case status == http.StatusTooManyRequests:
		return llmhttp.NewRateLimitError(providerName, message)
	case status == http.StatusBadRequest && isContextLengthError(body):
		return llmhttp.NewTokenLimitError(providerName, message)
	case status == http.StatusRequestTimeout:
		return llmhttp.NewTimeoutError(providerName, message)
	default:
		return llmhttp.NewAPIError(providerName, message, status)
	}
}

// isContextLengthError detects a request rejected for exceeding the model
// context window. Retrying would send the same oversized payload.
func isContextLengthError(body []byte) bool {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error == nil {
		return false
	}
	msg := strings.ToLower(parsed.Error.Message)
	return parsed.Error.Code == "context_length_exceeded" ||
		strings.Contains(msg, "context length") ||
		strings.Contains(msg, "maximum context")
}
