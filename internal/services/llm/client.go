package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vitrine/internal/config"
)

const (
	defaultBaseURL     = "https://api.deepseek.com"
	defaultModel       = "deepseek-chat"
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 60 * time.Second
)

// None is the sentinel the model returns when no candidate category fits.
const None = "NONE"

// AttributeSpec describes one attribute the model is asked to fill.
type AttributeSpec struct {
	Code      string   `json:"code"`
	Type      string   `json:"type"`
	Mandatory bool     `json:"mandatory"`
	Options   []string `json:"options,omitempty"`
}

// Client wraps the chat completion API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithModel overrides the default model identifier.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// NewClient constructs an API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// NewConfiguredClient constructs a client from application config.
func NewConfiguredClient(cfg *config.Config) *Client {
	if cfg == nil {
		return NewClient("")
	}
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return NewClient(
		cfg.LLM.APIKey,
		WithBaseURL(cfg.LLM.BaseURL),
		WithModel(cfg.LLM.Model),
		WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

// Classify asks the model to pick one category code from candidates for the
// given product text. Returns the chosen code, or an empty string when the
// model answers NONE.
func (c *Client) Classify(ctx context.Context, text string, candidates []string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("llm classify: text required")
	}
	if len(candidates) == 0 {
		return "", errors.New("llm classify: candidates required")
	}

	var parsed struct {
		Category string `json:"category"`
	}
	if err := c.complete(ctx, "classify", classifySystemPrompt(candidates), text, &parsed); err != nil {
		return "", err
	}

	choice := strings.TrimSpace(parsed.Category)
	if choice == "" || strings.EqualFold(choice, None) {
		return "", nil
	}
	for _, candidate := range candidates {
		if choice == candidate {
			return choice, nil
		}
	}
	return "", fmt.Errorf("llm classify: answer %q is not a candidate", choice)
}

// FillAttributes asks the model to choose a value for each attribute spec
// based on the product text. Missing keys are tolerated; callers run a
// completeness pass afterwards.
func (c *Client) FillAttributes(ctx context.Context, text string, specs []AttributeSpec) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("llm fill: text required")
	}
	if len(specs) == 0 {
		return map[string]any{}, nil
	}

	var parsed map[string]any
	if err := c.complete(ctx, "fill", fillSystemPrompt(specs), text, &parsed); err != nil {
		return nil, err
	}
	if parsed == nil {
		parsed = map[string]any{}
	}
	// Drop keys the model invented.
	known := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		known[spec.Code] = struct{}{}
	}
	for key := range parsed {
		if _, ok := known[key]; !ok {
			delete(parsed, key)
		}
	}
	return parsed, nil
}

func (c *Client) complete(ctx context.Context, op, system, user string, out any) error {
	if strings.TrimSpace(c.apiKey) == "" {
		return fmt.Errorf("llm %s: api key required", op)
	}
	endpoint, err := url.JoinPath(c.baseURL, "/chat/completions")
	if err != nil {
		return fmt.Errorf("llm %s: build url: %w", op, err)
	}
	encoded, err := json.Marshal(chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
		ResponseFormat: map[string]string{
			"type": jsonResponseType,
		},
	})
	if err != nil {
		return fmt.Errorf("llm %s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("llm %s: request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llm %s: request failed: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("llm %s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("llm %s: http %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return fmt.Errorf("llm %s: decode response: %w", op, err)
	}
	if completion.Error != nil {
		return fmt.Errorf("llm %s: api error: %s", op, strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return fmt.Errorf("llm %s: empty choices", op)
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return fmt.Errorf("llm %s: empty content", op)
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("llm %s: parse payload: %w", op, err)
	}
	return nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
