package chat_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"neurotome/handlers/chat"
	"neurotome/services/httpllm"
)

func newEndpointSession(t *testing.T, handler http.HandlerFunc) *chat.Session {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := httpllm.NewClient(httpllm.Config{Endpoint: srv.URL}, nil)
	return chat.NewSession(client, chat.DefaultConfig(), nil)
}

func TestEndpoint_ServerErrorFallsBack(t *testing.T) {
	s := newEndpointSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	reply := s.SendMessage(context.Background(), "I feel anxious")

	if reply.Text != chat.FallbackReply {
		t.Errorf("expected fallback reply, got %q", reply.Text)
	}
	if s.Error() != "API error: 500" {
		t.Errorf("unexpected error %q", s.Error())
	}
	if s.IsLoading() {
		t.Error("expected loading cleared")
	}
}

func TestEndpoint_ReplyIsReturnedVerbatim(t *testing.T) {
	s := newEndpointSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{ "response": "Take a breath." }`))
	})

	reply := s.SendMessage(context.Background(), "hi")

	if reply.Text != "Take a breath." {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
	msgs := s.Messages()
	if got := msgs[len(msgs)-1].Content; got != "Take a breath." {
		t.Errorf("unexpected assistant message %q", got)
	}
}

func TestEndpoint_MalformedBodyFallsBack(t *testing.T) {
	s := newEndpointSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	reply := s.SendMessage(context.Background(), "hi")

	if !reply.IsFallback() || s.Error() == "" {
		t.Errorf("expected fallback with error, got %+v error=%q", reply, s.Error())
	}
}
