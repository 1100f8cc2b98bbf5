package httpllm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"neurotome/core"
)

// DefaultEndpoint is where the prompt is posted when nothing is configured.
const DefaultEndpoint = "http://localhost:8000/api/llm"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

var ErrEmptyEndpoint = errors.New("httpllm: endpoint is empty")

// Config holds the configuration for the prompt endpoint client.
type Config struct {
	Endpoint string            `json:"endpoint"`
	Headers  map[string]string `json:"headers,omitempty"`
	// Timeout bounds the whole HTTP exchange. Zero keeps the default.
	Timeout time.Duration `json:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		Timeout:  30 * time.Second,
	}
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// Client posts {"prompt": ...} and reads {"response": ...}.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *core.Logger
}

func NewClient(config Config, logger *core.Logger) *Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With(map[string]interface{}{"component": "httpllm", "endpoint": config.Endpoint}),
	}
}

// Complete returns the "response" string of the endpoint's JSON answer. A
// JSON body without a string "response" field yields "" and no error. Non-2xx
// statuses, transport failures and non-JSON bodies are errors.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.config.Endpoint == "" {
		return "", ErrEmptyEndpoint
	}
	body, err := sonic.Marshal(promptRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("httpllm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("httpllm: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("httpllm: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("endpoint responded", "status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("httpllm: read response: %w", err)
	}
	return parseReply(data)
}

// parseReply extracts the reply text. Only a syntactically invalid body is an
// error; any other shape counts as "no reply".
func parseReply(data []byte) (string, error) {
	var payload interface{}
	if err := sonic.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("httpllm: decode response: %w", err)
	}
	obj, ok := payload.(map[string]interface{})
	if !ok {
		return "", nil
	}
	reply, _ := obj["response"].(string)
	return reply, nil
}

// StatusError reports a non-success HTTP status from the endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d", e.StatusCode)
}
