package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const telegramBaseURL = "https://api.telegram.org"

// Telegram 把成交与系统消息推送到指定群/频道。
type Telegram struct {
	BotToken string
	ChatID   string
	client   *resty.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return NewTelegramWithBaseURL(botToken, chatID, telegramBaseURL)
}

func NewTelegramWithBaseURL(botToken, chatID, baseURL string) *Telegram {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500 || r.StatusCode() == 429
		})
	return &Telegram{BotToken: botToken, ChatID: chatID, client: client}
}

type telegramReply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendText 发送 Markdown 文本，5xx/429 最多重试 2 次。
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("Telegram 配置不完整")
	}
	var reply telegramReply
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"chat_id":    t.ChatID,
			"text":       text,
			"parse_mode": "Markdown",
		}).
		SetResult(&reply).
		SetError(&reply).
		Post("/bot" + t.BotToken + "/sendMessage")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("telegram status=%d %s", resp.StatusCode(), reply.Description)
	}
	return nil
}
