package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client calls vLLM-style OpenAI-compatible completion endpoints.
type Client struct {
	http       *http.Client
	maxRetries uint64
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds a single HTTP attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithMaxRetries bounds transient-failure retries per call.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a vLLM completion client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:       &http.Client{Timeout: 60 * time.Second},
		maxRetries: 2,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// completionRequest is the vLLM /completions payload.
type completionRequest struct {
	Model             string         `json:"model"`
	Prompt            string         `json:"prompt"`
	MaxTokens         int            `json:"max_tokens"`
	Temperature       float64        `json:"temperature"`
	RepetitionPenalty float64        `json:"repetition_penalty,omitempty"`
	Stop              []string       `json:"stop,omitempty"`
	GuidedJSON        map[string]any `json:"guided_json,omitempty"`
}

// completionResponse is the subset of the /completions reply we consume.
type completionResponse struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Invoke posts the prompt to req.Endpoint and returns the completion text.
// Connection failures and 5xx responses are retried with exponential
// backoff; 4xx responses are permanent. All failures surface as
// *InferenceError.
func (c *Client) Invoke(ctx context.Context, req Request) (string, error) {
	url := strings.TrimRight(req.Endpoint, "/") + "/completions"

	payload := completionRequest{
		Model:             req.Model,
		Prompt:            req.Prompt,
		MaxTokens:         req.Params.MaxTokens,
		Temperature:       req.Params.Temperature,
		RepetitionPenalty: req.Params.RepetitionPenalty,
		Stop:              req.Params.Stop,
		GuidedJSON:        req.Params.GuidedJSON,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &InferenceError{Endpoint: req.Endpoint, Model: req.Model, Err: err}
	}

	var text string
	operation := func() error {
		out, opErr := c.post(ctx, url, body)
		if opErr != nil {
			return opErr
		}
		text = out
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		c.logger.Warn("inference call failed",
			"endpoint", req.Endpoint, "model", req.Model, "error", err)
		return "", &InferenceError{Endpoint: req.Endpoint, Model: req.Model, Err: err}
	}
	return text, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(respBody, 200))
	case resp.StatusCode >= 400:
		return "", backoff.Permanent(fmt.Errorf("request rejected %d: %s", resp.StatusCode, truncate(respBody, 200)))
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return strings.TrimSpace(parsed.Choices[0].Text), nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
