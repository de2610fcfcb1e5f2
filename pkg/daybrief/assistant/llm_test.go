package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func completionReply(w http.ResponseWriter, content string) {
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
}

func TestLLMClientOpenAI(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		completionReply(w, "hello there")
	}))
	defer srv.Close()

	c := NewLLMClient(LLMConfig{
		Provider: "openai",
		BaseURL:  srv.URL,
		APIKey:   "sk-test",
		Model:    "gpt-4o-mini",
	}, testLogger())

	got, err := c.Complete(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello there" {
		t.Errorf("reply = %q", got)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if gotReq.MaxTokens != 500 || gotReq.Temperature != 0.7 {
		t.Errorf("params = %d/%v", gotReq.MaxTokens, gotReq.Temperature)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Content != "user text" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestLLMClientAzure(t *testing.T) {
	var gotPath, gotVersion, gotKey string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")
		gotKey = r.Header.Get("api-key")
		json.NewDecoder(r.Body).Decode(&gotReq)
		completionReply(w, "azure reply")
	}))
	defer srv.Close()

	c := NewLLMClient(LLMConfig{
		Provider:   "azure",
		BaseURL:    srv.URL,
		APIKey:     "azkey",
		Model:      "my-deployment",
		APIVersion: "2024-02-15-preview",
	}, testLogger())

	got, err := c.Complete(context.Background(), "sys", "usr")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "azure reply" {
		t.Errorf("reply = %q", got)
	}
	if gotPath != "/openai/deployments/my-deployment/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotVersion != "2024-02-15-preview" {
		t.Errorf("api-version = %q", gotVersion)
	}
	if gotKey != "azkey" {
		t.Errorf("api-key = %q", gotKey)
	}
	// Azure routes by deployment URL; the body carries no model.
	if gotReq.Model != "" {
		t.Errorf("model in body = %q", gotReq.Model)
	}
}

func TestLLMClientFailures(t *testing.T) {
	t.Run("http error wraps ErrAIProcessing", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "rate limited", "type": "rate_limit"},
			})
		}))
		defer srv.Close()

		c := NewLLMClient(LLMConfig{Provider: "openai", BaseURL: srv.URL}, testLogger())
		_, err := c.Complete(context.Background(), "s", "u")
		if !errors.Is(err, ErrAIProcessing) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("empty choices wraps ErrAIProcessing", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": []}`))
		}))
		defer srv.Close()

		c := NewLLMClient(LLMConfig{Provider: "openai", BaseURL: srv.URL}, testLogger())
		_, err := c.Complete(context.Background(), "s", "u")
		if !errors.Is(err, ErrAIProcessing) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("unreachable endpoint wraps ErrAIProcessing", func(t *testing.T) {
		c := NewLLMClient(LLMConfig{Provider: "openai", BaseURL: "http://127.0.0.1:1"}, testLogger())
		_, err := c.Complete(context.Background(), "s", "u")
		if !errors.Is(err, ErrAIProcessing) {
			t.Fatalf("err = %v", err)
		}
	})
}
