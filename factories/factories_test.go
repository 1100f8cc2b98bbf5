package factories

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"neurotome/core"
	"neurotome/services/httpllm"
	openaillm "neurotome/services/openai/llm"
)

func TestSettingsConfigFromJSON_KeepsDefaults(t *testing.T) {
	cfg, err := SettingsConfigFromJSON([]byte(`{
		"log_level": "DEBUG",
		"completer": {"http": {"endpoint": "http://llm.internal/api/llm"}},
		"session_config": {"chat": {"history_window": 6}}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("unexpected log level %q", cfg.LogLevel)
	}
	if cfg.Completer.HTTPConfig == nil || cfg.Completer.HTTPConfig.Endpoint != "http://llm.internal/api/llm" {
		t.Errorf("unexpected completer %+v", cfg.Completer)
	}
	if cfg.Speech.Disabled || cfg.Speech.ConsoleConfig == nil || cfg.Speech.ConsoleConfig.Speaker != "Neurotome" {
		t.Errorf("speech defaults lost: %+v", cfg.Speech)
	}
	if cfg.Session == nil {
		t.Fatal("expected inline session config")
	}
	if cfg.Session.Chat.HistoryWindow != 6 {
		t.Errorf("unexpected history window %d", cfg.Session.Chat.HistoryWindow)
	}
	if cfg.Session.Chat.AssistantName != "Neurotome" || !cfg.Session.Voice.Recognition.InterimResults {
		t.Errorf("session defaults lost: %+v", cfg.Session)
	}
}

func TestSettingsConfigFromJSON_Invalid(t *testing.T) {
	cfg, err := SettingsConfigFromJSON([]byte(`{"log_level": `))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("expected defaults on error, got %+v", cfg)
	}
}

func TestSettingsConfigFromFile_Missing(t *testing.T) {
	if _, err := SettingsConfigFromFile(t.TempDir() + "/missing.json"); err == nil {
		t.Fatal("expected read error")
	}
}

func TestResolveSession_FromAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("X-Tenant") != "clinic" {
			t.Errorf("unexpected request %s %v", r.Method, r.Header)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"user":"u1"}` {
			t.Errorf("unexpected body %s", body)
		}
		w.Write([]byte(`{"voice": {"rate": 0.8}, "chat": {"assistant_name": "Sage"}}`))
	}))
	defer srv.Close()

	settings := DefaultSettingsConfig()
	settings.SessionAPI = &SessionAPIConfig{
		URL:     srv.URL,
		Headers: map[string]string{"X-Tenant": "clinic"},
		Body:    []byte(`{"user":"u1"}`),
	}

	sc, err := settings.ResolveSession(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sc.Voice.Rate != 0.8 || sc.Chat.AssistantName != "Sage" {
		t.Errorf("unexpected session config %+v", sc)
	}
	if sc.Chat.HistoryWindow != 10 || sc.Voice.Pitch != 1.0 {
		t.Errorf("defaults lost: %+v", sc)
	}
}

func TestResolveSession_APIStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	settings := DefaultSettingsConfig()
	settings.SessionAPI = &SessionAPIConfig{URL: srv.URL}
	if _, err := settings.ResolveSession(context.Background()); err == nil {
		t.Fatal("expected status error")
	}
}

func TestResolveSession_Default(t *testing.T) {
	sc, err := DefaultSettingsConfig().ResolveSession(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sc.Chat.HistoryWindow != 10 || sc.Voice.Rate != 0.9 {
		t.Errorf("unexpected defaults %+v", sc)
	}
	rc := sc.RunnerConfig()
	if rc.Chat.AssistantName != "Neurotome" {
		t.Errorf("unexpected runner config %+v", rc)
	}
}

func TestBuildCompleter_DefaultsToHTTP(t *testing.T) {
	c, err := BuildCompleter(DefaultCompleterFactoryConfig(), core.NopLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := c.(*httpllm.Client); !ok {
		t.Errorf("expected http client, got %T", c)
	}
}

func TestBuildCompleter_OpenAICompatible(t *testing.T) {
	cfg := CompleterFactoryConfig{GroqConfig: &openaillm.Config{}}
	if _, err := BuildCompleter(cfg, core.NopLogger()); !errors.Is(err, openaillm.ErrMissingAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}

	cfg.InjectAPIKeys(APIKeys{Groq: "gsk-test", OpenAI: "unused"})
	if cfg.GroqConfig.APIKey != "gsk-test" {
		t.Errorf("key not injected: %+v", cfg.GroqConfig)
	}
	c, err := BuildCompleter(cfg, core.NopLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := c.(*openaillm.OpenAILLMService); !ok {
		t.Errorf("expected openai service, got %T", c)
	}
}

func TestInjectAPIKeys_KeepsExplicitKey(t *testing.T) {
	cfg := CompleterFactoryConfig{OpenAIConfig: &openaillm.Config{APIKey: "from-file"}}
	cfg.InjectAPIKeys(APIKeys{OpenAI: "from-env"})
	if cfg.OpenAIConfig.APIKey != "from-file" {
		t.Errorf("explicit key overwritten: %q", cfg.OpenAIConfig.APIKey)
	}
}

func TestSetEndpoint(t *testing.T) {
	var cfg CompleterFactoryConfig
	cfg.SetEndpoint("http://example.test/llm")
	if cfg.HTTPConfig == nil || cfg.HTTPConfig.Endpoint != "http://example.test/llm" || cfg.HTTPConfig.Timeout != 30*time.Second {
		t.Errorf("unexpected http config %+v", cfg.HTTPConfig)
	}
}

func TestSetEndpoint_KeepsConfiguredProvider(t *testing.T) {
	cfg := CompleterFactoryConfig{OpenAIConfig: &openaillm.Config{APIKey: "k"}}
	cfg.SetEndpoint("http://example.test/api/llm")

	if cfg.HTTPConfig != nil {
		t.Errorf("expected no http config, got %+v", cfg.HTTPConfig)
	}
	c, err := BuildCompleter(cfg, core.NopLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*openaillm.OpenAILLMService); !ok {
		t.Errorf("expected openai completer, got %T", c)
	}

	// An explicit http config is still retargeted.
	httpCfg := httpllm.DefaultConfig()
	cfg.HTTPConfig = &httpCfg
	cfg.SetEndpoint("http://example.test/other")
	if cfg.HTTPConfig.Endpoint != "http://example.test/other" {
		t.Errorf("unexpected endpoint %q", cfg.HTTPConfig.Endpoint)
	}
}

func TestBuildSpeechEngines(t *testing.T) {
	engines := BuildSpeechEngines(DefaultSpeechFactoryConfig(), io.Discard, core.NopLogger())
	e := engines.Engines()
	if e.Recognizer == nil || e.Synthesizer == nil {
		t.Fatalf("expected both engines, got %+v", e)
	}

	disabled := BuildSpeechEngines(SpeechFactoryConfig{Disabled: true}, io.Discard, core.NopLogger())
	e = disabled.Engines()
	if e.Recognizer != nil || e.Synthesizer != nil {
		t.Errorf("expected nil interfaces when disabled, got %+v", e)
	}
}
