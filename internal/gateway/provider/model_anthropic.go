package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient 调用 /v1/messages。
type AnthropicClient struct {
	cfg    ClientConfig
	client *resty.Client
}

func NewAnthropicClient(cfg ClientConfig) *AnthropicClient {
	return &AnthropicClient{cfg: cfg, client: newRestyClient(cfg, "https://api.anthropic.com/v1")}
}

func (c *AnthropicClient) ID() string { return c.cfg.ID }

type anthropicRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []openAIMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *AnthropicClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	maxTokens := payload.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	var out anthropicResponse
	var apiErr anthropicError
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.cfg.APIKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetBody(anthropicRequest{
			Model:       c.cfg.Model,
			System:      payload.System,
			MaxTokens:   maxTokens,
			Temperature: payload.Temperature,
			Messages:    []openAIMessage{{Role: "user", Content: payload.User}},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/messages")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", statusError(resp, apiErr.Error.Message)
	}
	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty content")
	}
	return sb.String(), nil
}
