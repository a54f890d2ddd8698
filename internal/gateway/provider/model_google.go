package provider

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// GoogleClient 调用 Gemini generateContent 接口，密钥通过 query 参数传递。
type GoogleClient struct {
	cfg    ClientConfig
	client *resty.Client
}

func NewGoogleClient(cfg ClientConfig) *GoogleClient {
	return &GoogleClient{cfg: cfg, client: newRestyClient(cfg, "https://generativelanguage.googleapis.com/v1")}
}

func (c *GoogleClient) ID() string { return c.cfg.ID }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *GoogleClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	// v1 接口没有独立的 system 字段，拼在用户消息前面
	text := payload.User
	if payload.System != "" {
		text = payload.System + "\n\n" + payload.User
	}
	body := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: text}}}}}
	body.GenerationConfig.Temperature = payload.Temperature
	body.GenerationConfig.MaxOutputTokens = payload.MaxTokens

	var out geminiResponse
	var apiErr geminiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("key", c.cfg.APIKey).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/models/" + url.PathEscape(c.cfg.Model) + ":generateContent")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", statusError(resp, apiErr.Error.Message)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
