// Package llm summarizes chapters with an OpenAI-compatible chat model.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/coursecore/internal/llm/prompts"
	"github.com/pavelanni/coursecore/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// SummaryResult is the JSON object the model is asked to return.
type SummaryResult struct {
	Summary string `json:"summary"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
	style prompts.Style
}

// New creates a new LLM client. It fails if the prompt templates cannot
// be loaded or style is unknown.
func New(baseURL, apiKey, modelName string, style prompts.Style) (*Client, error) {
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, err
	}
	if !prompts.IsValidStyle(string(style)) {
		return nil, fmt.Errorf("unknown summary style %q", style)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
		style: style,
	}, nil
}

// Summarize asks the model for a summary of ch. Failures are reported as
// *model.UpstreamError.
func (c *Client) Summarize(ctx context.Context, ch model.Chapter) (string, error) {
	systemPrompt, err := prompts.BuildSummaryPrompt(c.style, ch)
	if err != nil {
		return "", err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Summarize the lesson."},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", upstream(err)
	}
	if len(resp.Choices) == 0 {
		return "", &model.UpstreamError{Op: "llm", Payload: "LLM returned no choices"}
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return parseSummary(raw)
}

// parseSummary accepts the requested JSON object and falls back to plain
// text for models that ignore the response format.
func parseSummary(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	var result SummaryResult
	if err := json.Unmarshal([]byte(raw), &result); err == nil {
		raw = strings.TrimSpace(result.Summary)
	} else if strings.HasPrefix(raw, "{") {
		return "", &model.UpstreamError{Op: "llm", Payload: "unparseable response: " + raw, Err: err}
	}
	if raw == "" {
		return "", &model.UpstreamError{Op: "llm", Payload: "empty summary"}
	}
	return raw, nil
}

func upstream(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &model.UpstreamError{Op: "llm", Status: apiErr.HTTPStatusCode, Payload: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &model.UpstreamError{Op: "llm", Status: reqErr.HTTPStatusCode, Err: err}
	}
	return &model.UpstreamError{Op: "llm", Err: err}
}
