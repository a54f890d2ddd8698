package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"arena/internal/config"
	"arena/internal/decision"
	"arena/internal/ledger"
	"arena/internal/market"
	"arena/internal/profile"
	"arena/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const decisionJSON = "```json\n{\"action\":\"OPEN_LONG\",\"symbol\":\"btc-usd\",\"size\":15,\"leverage\":3,\"reasoning\":\"breakout\",\"strategy\":\"MOMENTUM\",\"confidence\":72}\n```"

func tradingContext() decision.TradingContext {
	return decision.TradingContext{
		Agent:          "GROK",
		CurrentBalance: 200,
		MaxPositions:   3,
		Market: []market.Quote{
			{Symbol: "BTC-USD", Price: 65000, PriceChange24h: 2.5, Volume24h: 1e9},
			{Symbol: "ETH-USD", Price: 3000, PriceChange24h: -0.5, Volume24h: 5e8},
		},
	}
}

func jsonReply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestOpenAIChatClient(t *testing.T) {
	var req openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		_ = json.NewDecoder(r.Body).Decode(&req)
		jsonReply(w, 200, map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": "hello"}}}})
	}))
	defer srv.Close()

	c := NewOpenAIChatClient(ClientConfig{ID: "xai", BaseURL: srv.URL + "/v1/chat/completions", APIKey: "sk-test", Model: "grok-beta", Headers: map[string]string{"X-Extra": "yes"}})
	out, err := c.Call(context.Background(), ChatPayload{System: "sys", User: "usr", MaxTokens: 100, Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "grok-beta", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, 100, req.MaxTokens)
}

func TestOpenAIChatClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			jsonReply(w, 503, map[string]any{"error": map[string]any{"message": "overloaded"}})
			return
		}
		jsonReply(w, 200, map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": "ok"}}}})
	}))
	defer srv.Close()

	c := NewOpenAIChatClient(ClientConfig{ID: "openai", BaseURL: srv.URL, APIKey: "k", MaxRetries: 2})
	out, err := c.Call(context.Background(), ChatPayload{User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAIChatClientErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonReply(w, 401, map[string]any{"error": map[string]any{"message": "invalid api key"}})
	}))
	defer srv.Close()
	_, err := NewOpenAIChatClient(ClientConfig{BaseURL: srv.URL, APIKey: "bad"}).Call(context.Background(), ChatPayload{User: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401: invalid api key")
}

func TestAnthropicClient(t *testing.T) {
	var req anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "ak", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		_ = json.NewDecoder(r.Body).Decode(&req)
		jsonReply(w, 200, map[string]any{"content": []any{map[string]any{"type": "text", "text": "{\"action\":\"HOLD\"}"}}})
	}))
	defer srv.Close()

	out, err := NewAnthropicClient(ClientConfig{BaseURL: srv.URL, APIKey: "ak", Model: "claude"}).Call(context.Background(), ChatPayload{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, `{"action":"HOLD"}`, out)
	assert.Equal(t, "s", req.System)
	assert.Equal(t, 1000, req.MaxTokens)
}

func TestGoogleClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-pro:generateContent", r.URL.Path)
		assert.Equal(t, "gk", r.URL.Query().Get("key"))
		var req geminiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "s\n\nu", req.Contents[0].Parts[0].Text)
		jsonReply(w, 200, map[string]any{"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": "gem"}}}}}})
	}))
	defer srv.Close()

	out, err := NewGoogleClient(ClientConfig{BaseURL: srv.URL, APIKey: "gk", Model: "gemini-pro"}).Call(context.Background(), ChatPayload{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "gem", out)
}

type stubModel struct {
	out string
	err error
	got ChatPayload
}

func (s *stubModel) ID() string { return "stub" }

func (s *stubModel) Call(_ context.Context, p ChatPayload) (string, error) {
	s.got = p
	return s.out, s.err
}

type memJournal struct {
	mu      sync.Mutex
	entries []decision.JournalEntry
}

func (m *memJournal) Record(_ context.Context, e decision.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func TestLLMProviderParsesAndJournals(t *testing.T) {
	model := &stubModel{out: decisionJSON}
	journal := &memJournal{}
	p := NewLLMProvider(model, LLMOptions{
		Persona: "Be bold.",
		Rules:   func() prompt.Rules { return prompt.Rules{MaxRiskPercent: 10, MaxLeverage: 10} },
		Journal: journal,
	})
	d, err := p.Decide(context.Background(), tradingContext())
	require.NoError(t, err)
	assert.Equal(t, decision.ActionOpenLong, d.Action)
	assert.Equal(t, "BTC-USD", d.Symbol)
	assert.Equal(t, 3.0, *d.Leverage)
	assert.Contains(t, model.got.User, "Be bold.")
	assert.Contains(t, model.got.User, "BTC-USD: $65000.00")

	require.Len(t, journal.entries, 1)
	assert.Equal(t, "GROK", journal.entries[0].Agent)
	assert.Equal(t, decision.ActionOpenLong, journal.entries[0].Action)
	assert.Equal(t, decisionJSON, journal.entries[0].RawOutput)
}

func TestLLMProviderUnparseableIsHold(t *testing.T) {
	journal := &memJournal{}
	p := NewLLMProvider(&stubModel{out: "I refuse to answer in JSON"}, LLMOptions{Journal: journal})
	d, err := p.Decide(context.Background(), tradingContext())
	require.NoError(t, err)
	assert.True(t, d.IsSafeHold())
	assert.Contains(t, d.Reasoning, "Failed to parse LLM response")
	require.Len(t, journal.entries, 1)
	assert.NotEmpty(t, journal.entries[0].Error)
}

func TestLLMProviderTransportErrorIsReturned(t *testing.T) {
	p := NewLLMProvider(&stubModel{err: errors.New("connection refused")}, LLMOptions{})
	_, err := p.Decide(context.Background(), tradingContext())
	require.Error(t, err)

	g := decision.Guard(p, decision.GuardOptions{})
	d, err := g.Decide(context.Background(), tradingContext())
	require.NoError(t, err)
	assert.True(t, d.IsSafeHold())
	assert.Contains(t, d.Reasoning, "connection refused")
}

func TestSimulatedProvider(t *testing.T) {
	p := NewSimulatedProvider("sim", 7)
	for i := 0; i < 50; i++ {
		d, err := p.Decide(context.Background(), tradingContext())
		require.NoError(t, err)
		switch d.Action {
		case decision.ActionOpenLong:
			assert.Equal(t, "BTC-USD", d.Symbol)
			assert.Equal(t, 10.0, *d.Size)
		case decision.ActionHold:
		default:
			t.Fatalf("unexpected action %s with no open positions", d.Action)
		}
	}

	full := tradingContext()
	full.OpenPositions = []ledger.Position{{Symbol: "ETH-USD"}, {Symbol: "BTC-USD"}, {Symbol: "SOL-USD"}}
	d, err := p.Decide(context.Background(), full)
	require.NoError(t, err)
	assert.Equal(t, decision.ActionClose, d.Action)
	assert.Equal(t, "ETH-USD", d.Symbol)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Decide(ctx, tradingContext())
	assert.Error(t, err)
}

func TestFactoryBuild(t *testing.T) {
	f := &Factory{
		Providers: map[string]config.ProviderConfig{
			"openai":    {Kind: "openai", APIKey: "k", TimeoutSeconds: 30, BreakerThreshold: 3, BreakerCooldown: 60, RequestsPerMinute: 60},
			"anthropic": {Kind: "anthropic", APIKeyEnv: "ANTHROPIC_API_KEY", TimeoutSeconds: 30},
			"weird":     {Kind: "carrier-pigeon", APIKey: "k"},
			"simulated": {Kind: "simulated"},
		},
		SimulateMissingKeys: true,
		Seed:                1,
	}
	p, err := f.Build(profile.Profile{Name: "CHATGPT", Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.ID())
	_, isGuarded := p.(*decision.Guarded)
	assert.True(t, isGuarded)

	p, err = f.Build(profile.Profile{Name: "CLAUDE", Provider: "anthropic"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic:simulated", p.ID())

	p, err = f.Build(profile.Profile{Name: "SIM", Provider: "simulated"})
	require.NoError(t, err)
	assert.Equal(t, "simulated", p.ID())

	_, err = f.Build(profile.Profile{Name: "X", Provider: "weird"})
	assert.Error(t, err)
	_, err = f.Build(profile.Profile{Name: "X", Provider: "missing"})
	assert.Error(t, err)

	f.SimulateMissingKeys = false
	_, err = f.Build(profile.Profile{Name: "CLAUDE", Provider: "anthropic"})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
	assert.NotEqual(t, f.seedFor("A"), f.seedFor("B"))
}

func TestGuardedProviderTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	llm := NewLLMProvider(NewOpenAIChatClient(ClientConfig{ID: "slow", BaseURL: srv.URL, APIKey: "k"}), LLMOptions{})
	start := time.Now()
	d, err := decision.Guard(llm, decision.GuardOptions{Timeout: 100 * time.Millisecond}).Decide(context.Background(), tradingContext())
	require.NoError(t, err)
	assert.True(t, d.IsSafeHold())
	assert.Less(t, time.Since(start), time.Second)
}
