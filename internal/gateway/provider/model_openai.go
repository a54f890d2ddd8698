package provider

import (
	"context"
	"fmt"
	"strings"

	"arena/internal/logger"

	"github.com/go-resty/resty/v2"
)

// OpenAIChatClient 兼容 OpenAI / xAI / DeepSeek 的 /chat/completions 接口。
type OpenAIChatClient struct {
	cfg    ClientConfig
	client *resty.Client
}

func NewOpenAIChatClient(cfg ClientConfig) *OpenAIChatClient {
	// 用户可能把完整的 /chat/completions 写进了配置
	cfg.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/chat/completions")
	return &OpenAIChatClient{cfg: cfg, client: newRestyClient(cfg, "https://api.openai.com/v1")}
}

func (c *OpenAIChatClient) ID() string { return c.cfg.ID }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIChatClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	messages := make([]openAIMessage, 0, 2)
	if payload.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: payload.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: payload.User})
	body := openAIRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   payload.MaxTokens,
		Temperature: payload.Temperature,
	}
	logger.Debugf("[AI] 请求: POST %s/chat/completions model=%s headers=%v", c.client.BaseURL, c.cfg.Model, maskHeaders(c.cfg.Headers))

	var out openAIResponse
	var apiErr openAIError
	req := c.client.R().SetContext(ctx).SetBody(body).SetResult(&out).SetError(&apiErr)
	if c.cfg.APIKey != "" {
		req.SetAuthToken(c.cfg.APIKey)
	}
	resp, err := req.Post("/chat/completions")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", statusError(resp, apiErr.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return out.Choices[0].Message.Content, nil
}
