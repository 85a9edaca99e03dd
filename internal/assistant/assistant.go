// Package assistant talks to the remote grading assistant that transcribes
// chapter videos and summarizes the transcript.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/coursecore/internal/model"
)

// maxErrorBody caps how much of a failed response is kept as payload.
const maxErrorBody = 4096

// Client calls the assistant's /asr and /summarize endpoints.
type Client struct {
	baseURL string
	apiURL  string
	http    *http.Client
}

// New creates a Client. baseURL is the assistant's address; apiURL is the
// public address of this API, used to build the video links the assistant
// downloads. A nil httpClient means http.DefaultClient.
func New(baseURL, apiURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiURL:  strings.TrimRight(apiURL, "/"),
		http:    httpClient,
	}
}

type asrRequest struct {
	URL string `json:"url"`
}

type asrResponse struct {
	Transcription string `json:"transcription"`
}

type summarizeRequest struct {
	Content string `json:"content"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// VideoURL is the link the assistant fetches a chapter's video from.
func (c *Client) VideoURL(chapterID string) string {
	return c.apiURL + "/chapter/" + chapterID + "/video"
}

// Summarize transcribes the chapter video and summarizes the transcript.
func (c *Client) Summarize(ctx context.Context, ch model.Chapter) (string, error) {
	text, err := c.Transcribe(ctx, ch.ID)
	if err != nil {
		return "", err
	}
	return c.SummarizeText(ctx, text)
}

// Transcribe returns the transcript of a chapter's video.
func (c *Client) Transcribe(ctx context.Context, chapterID string) (string, error) {
	var resp asrResponse
	if err := c.post(ctx, "asr", asrRequest{URL: c.VideoURL(chapterID)}, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Transcription) == "" {
		return "", &model.UpstreamError{Op: "asr", Payload: "invalid transcription response"}
	}
	slog.Debug("chapter transcribed", "chapter_id", chapterID, "length", len(resp.Transcription))
	return resp.Transcription, nil
}

// SummarizeText summarizes content. The assistant sometimes returns the
// summary as a JSON document of its own; that document is unwrapped.
func (c *Client) SummarizeText(ctx context.Context, content string) (string, error) {
	var resp summarizeResponse
	if err := c.post(ctx, "summarize", summarizeRequest{Content: content}, &resp); err != nil {
		return "", err
	}
	summary := unwrapSummary(resp.Summary)
	if summary == "" {
		return "", &model.UpstreamError{Op: "summarize", Payload: "empty summary"}
	}
	return summary, nil
}

func unwrapSummary(s string) string {
	var inner summarizeResponse
	if err := json.Unmarshal([]byte(s), &inner); err == nil && inner.Summary != "" {
		return inner.Summary
	}
	return s
}

func (c *Client) post(ctx context.Context, op string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+op, bytes.NewReader(payload))
	if err != nil {
		return &model.UpstreamError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("assistant request failed", "op", op, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return &model.UpstreamError{Op: op, Payload: "request timed out", Err: err}
		}
		return &model.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.Error("assistant returned an error", "op", op, "status", resp.StatusCode)
		return &model.UpstreamError{Op: op, Status: resp.StatusCode, Payload: strings.TrimSpace(string(data))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &model.UpstreamError{Op: op, Status: resp.StatusCode, Payload: "malformed response", Err: err}
	}
	return nil
}
