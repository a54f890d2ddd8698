package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ChatPayload 是一次补全请求的内容。
type ChatPayload struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// ModelProvider 把提示词发送给具体的模型后端并返回原始文本。
type ModelProvider interface {
	ID() string
	Call(ctx context.Context, payload ChatPayload) (string, error)
}

// ClientConfig 是各家 HTTP 客户端共用的连接参数。
type ClientConfig struct {
	ID         string
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Headers    map[string]string
}

func newRestyClient(cfg ClientConfig, defaultBase string) *resty.Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(retries).
		SetRetryWaitTime(800 * time.Millisecond).
		SetRetryMaxWaitTime(8 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return false
			}
			switch r.StatusCode() {
			case 429, 500, 502, 503, 504:
				return true
			}
			return false
		})
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}
	return client
}

// statusError 从常见的错误响应体中提取 message。
func statusError(resp *resty.Response, msg string) error {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = strings.TrimSpace(resp.Status())
	}
	return fmt.Errorf("status=%d: %s", resp.StatusCode(), msg)
}

// maskSecret 只保留末 4 位，用于 debug 日志。
func maskSecret(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

func maskHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "key") || strings.Contains(lk, "token") || strings.Contains(lk, "auth") {
			v = maskSecret(v)
		}
		out[k] = v
	}
	return out
}
