package factories

import (
	"neurotome/core"
	"neurotome/handlers/chat"
	"neurotome/services/httpllm"
	openaillm "neurotome/services/openai/llm"
)

// CompleterFactoryConfig holds provider-specific configs for completer
// construction. Set at most one provider config; with none set the prompt
// endpoint client is used with its defaults. All providers other than HTTP
// speak the OpenAI-compatible protocol through the same OpenAI service with
// a custom base URL.
type CompleterFactoryConfig struct {
	HTTPConfig       *httpllm.Config   `json:"http,omitempty"`
	OpenAIConfig     *openaillm.Config `json:"openai,omitempty"`
	TogetherConfig   *openaillm.Config `json:"together,omitempty"`
	GroqConfig       *openaillm.Config `json:"groq,omitempty"`
	DeepSeekConfig   *openaillm.Config `json:"deepseek,omitempty"`
	OpenRouterConfig *openaillm.Config `json:"openrouter,omitempty"`
	MistralConfig    *openaillm.Config `json:"mistral,omitempty"`
}

func DefaultCompleterFactoryConfig() CompleterFactoryConfig {
	return CompleterFactoryConfig{}
}

// Default base URLs for OpenAI-compatible providers.
const (
	togetherBaseURL   = "https://api.together.xyz/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"
	deepseekBaseURL   = "https://api.deepseek.com/v1"
	openrouterBaseURL = "https://openrouter.ai/api/v1"
	mistralBaseURL    = "https://api.mistral.ai/v1"
)

// APIKeys holds provider API keys read from the environment.
type APIKeys struct {
	OpenAI     string
	Together   string
	Groq       string
	DeepSeek   string
	OpenRouter string
	Mistral    string
}

// InjectAPIKeys fills empty provider keys from keys.
func (c *CompleterFactoryConfig) InjectAPIKeys(keys APIKeys) {
	inject := func(cfg *openaillm.Config, key string) {
		if cfg != nil && cfg.APIKey == "" {
			cfg.APIKey = key
		}
	}
	inject(c.OpenAIConfig, keys.OpenAI)
	inject(c.TogetherConfig, keys.Together)
	inject(c.GroqConfig, keys.Groq)
	inject(c.DeepSeekConfig, keys.DeepSeek)
	inject(c.OpenRouterConfig, keys.OpenRouter)
	inject(c.MistralConfig, keys.Mistral)
}

// SetEndpoint points the HTTP completer at endpoint, selecting it when no
// other provider is configured. A configured OpenAI-compatible provider
// keeps precedence.
func (c *CompleterFactoryConfig) SetEndpoint(endpoint string) {
	if c.HTTPConfig == nil {
		if c.hasOpenAICompatible() {
			return
		}
		cfg := httpllm.DefaultConfig()
		c.HTTPConfig = &cfg
	}
	c.HTTPConfig.Endpoint = endpoint
}

func (c *CompleterFactoryConfig) hasOpenAICompatible() bool {
	return c.OpenAIConfig != nil || c.TogetherConfig != nil || c.GroqConfig != nil ||
		c.DeepSeekConfig != nil || c.OpenRouterConfig != nil || c.MistralConfig != nil
}

// BuildCompleter constructs a chat.Completer from the given factory config.
// The first provider set, in field order, wins.
func BuildCompleter(config CompleterFactoryConfig, logger *core.Logger) (chat.Completer, error) {
	if config.HTTPConfig != nil {
		return httpllm.NewClient(*config.HTTPConfig, logger), nil
	}
	if config.OpenAIConfig != nil {
		return openaiService(*config.OpenAIConfig, "", "", logger)
	}
	if config.TogetherConfig != nil {
		return openaiService(*config.TogetherConfig, togetherBaseURL, "meta-llama/Llama-3.3-70B-Instruct-Turbo", logger)
	}
	if config.GroqConfig != nil {
		return openaiService(*config.GroqConfig, groqBaseURL, "llama-3.3-70b-versatile", logger)
	}
	if config.DeepSeekConfig != nil {
		return openaiService(*config.DeepSeekConfig, deepseekBaseURL, "deepseek-chat", logger)
	}
	if config.OpenRouterConfig != nil {
		return openaiService(*config.OpenRouterConfig, openrouterBaseURL, "openai/gpt-4o", logger)
	}
	if config.MistralConfig != nil {
		return openaiService(*config.MistralConfig, mistralBaseURL, "mistral-large-latest", logger)
	}
	return httpllm.NewClient(httpllm.DefaultConfig(), logger), nil
}

// openaiService applies the default base URL and model when not explicitly
// set. A missing key is reported here rather than on the first turn.
func openaiService(cfg openaillm.Config, defaultBaseURL, defaultModel string, logger *core.Logger) (chat.Completer, error) {
	if cfg.APIKey == "" {
		return nil, openaillm.ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" && defaultModel != "" {
		cfg.Model = defaultModel
	}
	return openaillm.NewOpenAILLMService(cfg, logger), nil
}
