package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newFakeAPI(t *testing.T, status int, body string, gotPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		data, _ := io.ReadAll(r.Body)
		if gotPrompt != nil {
			*gotPrompt = string(data)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_ReturnsFirstChoice(t *testing.T) {
	var sent string
	srv := newFakeAPI(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Let's slow down together."}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`, &sent)

	svc := NewOpenAILLMService(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "test-model"}, nil)
	reply, err := svc.Complete(context.Background(), "User: I can't sleep")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Let's slow down together." {
		t.Errorf("unexpected reply %q", reply)
	}
	if !strings.Contains(sent, "User: I can't sleep") || !strings.Contains(sent, `"model":"test-model"`) {
		t.Errorf("unexpected request body %s", sent)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := newFakeAPI(t, http.StatusOK, `{"id": "x", "object": "chat.completion", "choices": []}`, nil)

	reply, err := NewOpenAILLMService(Config{APIKey: "test-key", BaseURL: srv.URL}, nil).Complete(context.Background(), "hi")
	if err != nil || reply != "" {
		t.Errorf("expected empty reply without error, got %q, %v", reply, err)
	}
}

func TestComplete_APIError(t *testing.T) {
	srv := newFakeAPI(t, http.StatusTooManyRequests, `{"error": {"message": "slow down", "type": "rate_limit"}}`, nil)

	_, err := NewOpenAILLMService(Config{APIKey: "test-key", BaseURL: srv.URL}, nil).Complete(context.Background(), "hi")
	if err == nil || !strings.HasPrefix(err.Error(), "openai:") {
		t.Fatalf("expected wrapped API error, got %v", err)
	}
}

func TestComplete_MissingKey(t *testing.T) {
	_, err := NewOpenAILLMService(Config{}, nil).Complete(context.Background(), "hi")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}
