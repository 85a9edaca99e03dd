package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pavelanni/coursecore/internal/model"
)

type fakeAssistant struct {
	asrStatus     int
	transcription string
	summary       string
	gotURL        string
	gotContent    string
	delay         time.Duration
}

func (f *fakeAssistant) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /asr", func(w http.ResponseWriter, r *http.Request) {
		var req asrRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.gotURL = req.URL
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-r.Context().Done():
				return
			}
		}
		if f.asrStatus != 0 {
			http.Error(w, "model not loaded", f.asrStatus)
			return
		}
		json.NewEncoder(w).Encode(asrResponse{Transcription: f.transcription})
	})
	mux.HandleFunc("POST /summarize", func(w http.ResponseWriter, r *http.Request) {
		var req summarizeRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.gotContent = req.Content
		json.NewEncoder(w).Encode(summarizeResponse{Summary: f.summary})
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeAssistant, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "https://api.example.com", &http.Client{Timeout: timeout})
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		want    string
	}{
		{"plain summary", "Goroutines are cheap.", "Goroutines are cheap."},
		{"wrapped summary", `{"summary": "Goroutines are cheap."}`, "Goroutines are cheap."},
		{"json without summary", `{"other": 1}`, `{"other": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAssistant{transcription: "today we talk about goroutines", summary: tt.summary}
			c := newTestClient(t, f, time.Second)

			got, err := c.Summarize(context.Background(), model.Chapter{ID: "ch-1"})
			if err != nil {
				t.Fatalf("Summarize: %v", err)
			}
			if got != tt.want {
				t.Errorf("Summarize() = %q, want %q", got, tt.want)
			}
			if f.gotURL != "https://api.example.com/chapter/ch-1/video" {
				t.Errorf("asr got url %q", f.gotURL)
			}
			if f.gotContent != f.transcription {
				t.Errorf("summarize got content %q", f.gotContent)
			}
		})
	}
}

func TestSummarizeFailures(t *testing.T) {
	tests := []struct {
		name       string
		f          *fakeAssistant
		timeout    time.Duration
		wantStatus int
	}{
		{"asr error status", &fakeAssistant{asrStatus: http.StatusInternalServerError}, time.Second, http.StatusInternalServerError},
		{"empty transcription", &fakeAssistant{summary: "s"}, time.Second, 0},
		{"empty summary", &fakeAssistant{transcription: "t"}, time.Second, 0},
		{"timeout", &fakeAssistant{transcription: "t", summary: "s", delay: time.Second}, 20 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.f, tt.timeout)
			_, err := c.Summarize(context.Background(), model.Chapter{ID: "ch-1"})
			var up *model.UpstreamError
			if !errors.As(err, &up) {
				t.Fatalf("expected *model.UpstreamError, got %v", err)
			}
			if !errors.Is(err, model.ErrUpstream) {
				t.Errorf("error should match ErrUpstream: %v", err)
			}
			if up.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", up.Status, tt.wantStatus)
			}
		})
	}
}

func TestErrorPayloadIsKept(t *testing.T) {
	f := &fakeAssistant{asrStatus: http.StatusBadGateway}
	c := newTestClient(t, f, time.Second)
	_, err := c.Transcribe(context.Background(), "ch-1")
	var up *model.UpstreamError
	if !errors.As(err, &up) || up.Payload != "model not loaded" {
		t.Fatalf("expected remote payload to be kept, got %v", err)
	}
}
