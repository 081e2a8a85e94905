package generative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionServer(t *testing.T, content *string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if gotBody != nil {
			json.NewDecoder(r.Body).Decode(gotBody)
		}
		choices := []map[string]any{}
		if content != nil {
			choices = append(choices, map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": *content, "refusal": ""},
				"logprobs":      nil,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   DefaultModel,
			"choices": choices,
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteSendsPromptAndSettings(t *testing.T) {
	answer := "  The sensor is failing.  "
	var body map[string]any
	srv := completionServer(t, &answer, &body)

	p := NewOpenAIProvider(WithBaseURL(srv.URL), WithAPIKey("test-key"), WithMaxTokens(250), WithTemperature(0.2))
	got, err := p.Complete(context.Background(), "explain P0171")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "The sensor is failing." {
		t.Errorf("content = %q", got)
	}

	if body["model"] != DefaultModel {
		t.Errorf("model = %v", body["model"])
	}
	if body["max_tokens"] != float64(250) {
		t.Errorf("max_tokens = %v", body["max_tokens"])
	}
	if body["temperature"] != 0.2 {
		t.Errorf("temperature = %v", body["temperature"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v", body["messages"])
	}
	msg, _ := msgs[0].(map[string]any)
	if msg["role"] != "user" || msg["content"] != "explain P0171" {
		t.Errorf("message = %v", msg)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := completionServer(t, nil, nil)
	p := NewOpenAIProvider(WithBaseURL(srv.URL), WithAPIKey("test-key"))
	if _, err := p.Complete(context.Background(), "x"); !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}

func TestCompleteEmptyContent(t *testing.T) {
	empty := "   "
	srv := completionServer(t, &empty, nil)
	p := NewOpenAIProvider(WithBaseURL(srv.URL), WithAPIKey("test-key"))
	if _, err := p.Complete(context.Background(), "x"); !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}

func TestCompleteAPIErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(WithBaseURL(srv.URL), WithAPIKey("wrong"))
	if _, err := p.Complete(context.Background(), "x"); err == nil {
		t.Fatal("expected error for HTTP 401")
	}
	if calls != 1 {
		t.Errorf("server called %d times, want 1", calls)
	}
}

func TestPrompt(t *testing.T) {
	p := Prompt("P0420", "2012 Honda Accord")
	if !strings.HasPrefix(p, "Analyze the following fault code P0420 for 2012 Honda Accord.") {
		t.Errorf("unexpected prompt start: %q", p)
	}
	for _, want := range []string{"step-by-step instructions", "safety precautions", "clear paragraphs"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestDefaults(t *testing.T) {
	p := NewOpenAIProvider()
	if p.Model() != DefaultModel || p.maxTokens != 1000 || p.temperature != 0.7 {
		t.Errorf("defaults = %s %d %v", p.Model(), p.maxTokens, p.temperature)
	}
}
