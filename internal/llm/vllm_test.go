package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func quiet() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func completionReply(text string) string {
	return `{"choices": [{"text": "` + text + `", "finish_reason": "stop"}]}`
}

func TestInvokeDecodesCompletion(t *testing.T) {
	var gotBody completionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(completionReply("  the answer ")))
	}))
	defer server.Close()

	c := NewClient(WithLogger(quiet()))
	out, err := c.Invoke(context.Background(), Request{
		Endpoint: server.URL + "/v1",
		Model:    "test-model",
		Prompt:   "say something",
		Params: GenerationParams{
			MaxTokens:   64,
			Temperature: 0.3,
			GuidedJSON:  map[string]any{"type": "object"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "the answer" {
		t.Errorf("expected trimmed completion text, got %q", out)
	}
	if gotBody.Model != "test-model" || gotBody.MaxTokens != 64 {
		t.Errorf("request payload not carried through: %+v", gotBody)
	}
	if gotBody.GuidedJSON == nil {
		t.Error("guided_json missing from payload")
	}
}

func TestInvokeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(completionReply("recovered")))
	}))
	defer server.Close()

	c := NewClient(WithMaxRetries(2), WithLogger(quiet()))
	out, err := c.Invoke(context.Background(), Request{Endpoint: server.URL, Model: "m", Prompt: "p"})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if out != "recovered" {
		t.Errorf("unexpected output %q", out)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestInvokeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewClient(WithMaxRetries(3), WithLogger(quiet()))
	_, err := c.Invoke(context.Background(), Request{Endpoint: server.URL, Model: "m", Prompt: "p"})
	if err == nil {
		t.Fatal("expected error")
	}

	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("expected *InferenceError, got %T", err)
	}
	if calls.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d calls", calls.Load())
	}
}

func TestInvokeWrapsTransportFailure(t *testing.T) {
	c := NewClient(WithMaxRetries(0), WithLogger(quiet()))
	_, err := c.Invoke(context.Background(), Request{Endpoint: "http://127.0.0.1:1", Model: "m", Prompt: "p"})

	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("expected *InferenceError, got %v", err)
	}
	if infErr.Endpoint != "http://127.0.0.1:1" || infErr.Model != "m" {
		t.Errorf("error should identify endpoint and model: %+v", infErr)
	}
}

func TestInvokeRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	c := NewClient(WithMaxRetries(0), WithLogger(quiet()))
	if _, err := c.Invoke(context.Background(), Request{Endpoint: server.URL, Model: "m", Prompt: "p"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
