package httpllm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestComplete_PostsPrompt(t *testing.T) {
	var gotBody promptRequest
	var gotContentType, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(data, &gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Write([]byte(`{"response": "Take a breath."}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, Headers: map[string]string{"Authorization": "Bearer t"}}, nil)
	reply, err := c.Complete(context.Background(), "User: hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Take a breath." {
		t.Errorf("unexpected reply %q", reply)
	}
	if gotBody.Prompt != "User: hi" {
		t.Errorf("unexpected prompt %q", gotBody.Prompt)
	}
	if gotContentType != "application/json" || gotAuth != "Bearer t" {
		t.Errorf("unexpected headers: content-type=%q auth=%q", gotContentType, gotAuth)
	}
}

func TestComplete_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(Config{Endpoint: srv.URL}, nil).Complete(context.Background(), "x")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 500 {
		t.Fatalf("expected 500 status error, got %v", err)
	}
	if err.Error() != "API error: 500" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestComplete_PayloadShapes(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "missing field", body: `{"text": "hi"}`, want: ""},
		{name: "non-string field", body: `{"response": 42}`, want: ""},
		{name: "array", body: `["hi"]`, want: ""},
		{name: "not json", body: `<html>oops</html>`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			got, err := NewClient(Config{Endpoint: srv.URL}, nil).Complete(context.Background(), "x")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got reply %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestComplete_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{Endpoint: url}, nil).Complete(context.Background(), "x")
	if err == nil || !strings.HasPrefix(err.Error(), "httpllm:") {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{}, nil)
	if c.config.Endpoint != DefaultEndpoint {
		t.Errorf("expected default endpoint, got %q", c.config.Endpoint)
	}
	if c.httpClient.Timeout != DefaultConfig().Timeout {
		t.Errorf("expected default timeout, got %v", c.httpClient.Timeout)
	}
}
