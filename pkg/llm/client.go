// Package llm contains the editorial judges. Each judge wraps a single
// chat-completion call with its own prompt, parsing and validation rules.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"pressbrief/pkg/config"
)

// maxParseAttempts limits retries on malformed model output
const maxParseAttempts = 3

// Client is the shared chat-completion transport for all judges
type Client struct {
	api *openai.Client
	cfg config.LLMConfig
}

// NewClient creates an LLM client from config, pointing at a custom
// endpoint when one is set
func NewClient(cfg config.LLMConfig) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	return &Client{api: openai.NewClientWithConfig(clientConfig), cfg: cfg}
}

// complete runs a single system+user chat completion and returns the raw text
func (c *Client) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: float32(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	if jsonMode && c.cfg.UseJSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from llm")
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSONArray pulls the first JSON array out of possibly chatty output
func extractJSONArray(content string) (string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || start >= end {
		return "", fmt.Errorf("no json array found in response")
	}
	return content[start : end+1], nil
}

// extractJSONObject pulls the first JSON object out of possibly chatty output
func extractJSONObject(content string) (string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || start >= end {
		return "", fmt.Errorf("no json object found in response")
	}
	return content[start : end+1], nil
}

// isParseError reports whether the model produced malformed output that is
// worth a retry, as opposed to a transport or contract failure
func isParseError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "failed to parse json") || strings.Contains(msg, "no json array found") ||
		strings.Contains(msg, "no json object found")
}
