package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pavelanni/coursecore/internal/llm/prompts"
	"github.com/pavelanni/coursecore/internal/model"
)

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"json object", `{"summary": "Goroutines are cheap."}`, "Goroutines are cheap.", false},
		{"plain text", "  Goroutines are cheap.  ", "Goroutines are cheap.", false},
		{"empty summary field", `{"summary": ""}`, "", true},
		{"broken json", `{"summary": `, "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSummary(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, model.ErrUpstream) {
					t.Fatalf("expected an upstream error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSummary: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/v1", "test-key", "test-model", prompts.StyleStandard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestSummarize(t *testing.T) {
	var gotPrompt string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Messages) > 0 {
			gotPrompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"model":   req.Model,
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": `{"summary": "short"}`}}},
		})
	})

	got, err := c.Summarize(context.Background(), model.Chapter{Title: "Channels", Content: "Channels connect goroutines."})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "short" {
		t.Errorf("Summarize() = %q, want %q", got, "short")
	}
	if !strings.Contains(gotPrompt, "Channels connect goroutines.") {
		t.Errorf("system prompt should carry the chapter content, got %q", gotPrompt)
	}
}

func TestSummarizeAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	})

	_, err := c.Summarize(context.Background(), model.Chapter{Title: "T", Content: "c"})
	var up *model.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("expected *model.UpstreamError, got %v", err)
	}
	if up.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", up.Status, http.StatusServiceUnavailable)
	}
}

func TestNewRejectsUnknownStyle(t *testing.T) {
	if _, err := New("", "k", "m", "verbose"); err == nil {
		t.Error("expected an error for an unknown style")
	}
}
