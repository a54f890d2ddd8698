package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"arena/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSendText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegramWithBaseURL("TOKEN", "42", srv.URL)
	require.NoError(t, tg.SendText(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "Markdown", got["parse_mode"])
}

func TestTelegramReportsClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	err := NewTelegramWithBaseURL("TOKEN", "42", srv.URL).SendText(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx is not retried")

	assert.Error(t, NewTelegram("", "").SendText(context.Background(), "x"))
}

type captured struct {
	mu    sync.Mutex
	texts []string
}

func (c *captured) SendText(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func TestTradeAlertsFormatsTrade(t *testing.T) {
	out := &captured{}
	a := NewTradeAlerts(out)
	a.nowFn = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	a.TradeClosed("GROK", 250, ledger.Trade{Symbol: "BTC-USD", Side: ledger.SideLong, EntryPrice: 100, ExitPrice: 110, Size: 500, Leverage: 10, PnL: 500, PnLPercent: 10, Reasoning: "target"})
	require.Len(t, out.texts, 1)
	text := out.texts[0]
	assert.Contains(t, text, "GROK 平仓 LONG BTC-USD")
	assert.Contains(t, text, "盈亏  +500.00 (+10.00%)")
	assert.Contains(t, text, "target")

	a.System("engine started")
	assert.Contains(t, out.texts[1], "engine started")
}

func TestAlertCardAlignsFields(t *testing.T) {
	card := AlertCard{Header: "GROK_bot", Note: "n"}
	card.Add("a", "1")
	card.Add("long", "2")
	card.Add("empty", "")
	md := card.Markdown()
	assert.Contains(t, md, "*GROK\\_bot*")
	assert.Contains(t, md, "a     1\n")
	assert.Contains(t, md, "long  2\n")
	assert.NotContains(t, md, "empty")
	assert.Contains(t, md, "_n_")
}

func TestAlertCardTruncates(t *testing.T) {
	body := AlertCard{Header: "t", Note: strings.Repeat("a", maxCardLen+100)}.Markdown()
	assert.Len(t, body, maxCardLen+3)
}
