package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"neurotome/core"
)

var ErrMissingAPIKey = errors.New("openai: API key is required")

// Config holds the configuration for the OpenAI-compatible completer.
type Config struct {
	APIKey      string  `json:"api_key,omitempty"`
	Model       string  `json:"model"`
	BaseURL     string  `json:"base_url,omitempty"` // empty means api.openai.com
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   256,
		Temperature: 0.7,
	}
}

// OpenAILLMService sends the rendered prompt as a single user message to a
// chat completion endpoint.
type OpenAILLMService struct {
	client *openai.Client
	config Config
	logger *core.Logger
}

func NewOpenAILLMService(config Config, logger *core.Logger) *OpenAILLMService {
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	if logger == nil {
		logger = core.NopLogger()
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	return &OpenAILLMService{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger.With(map[string]interface{}{"component": "openai", "model": config.Model}),
	}
}

// Complete returns the first choice's content, or "" when the API returned
// no choices.
func (s *OpenAILLMService) Complete(ctx context.Context, prompt string) (string, error) {
	if s.config.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	req := openai.ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		s.logger.Debug("completion returned no choices")
		return "", nil
	}
	s.logger.Debug("completion finished", "finish_reason", string(resp.Choices[0].FinishReason), "total_tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}
