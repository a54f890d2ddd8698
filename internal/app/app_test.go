package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arena/internal/config"
	"arena/internal/ledger"
	"arena/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T, extra string) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`app:
  log_level: warn
  http_addr: "127.0.0.1:0"
engine:
  sweep_interval_seconds: 3600
  auto_start: false
persistence:
  driver: file
  path: %s
  debounce_millis: 10
decision_log:
  enabled: true
  path: %s
%s`, filepath.Join(dir, "trading-data.json"), filepath.Join(dir, "decisions.db"), extra)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg, dir
}

func TestBuildWiresDefaultRoster(t *testing.T) {
	cfg, _ := loadTestConfig(t, "")
	a, err := NewAppBuilder(cfg, WithoutHTTP()).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(a.shutdown)

	doc := a.Engine().State()
	require.Len(t, doc.AITraders, 5)
	for _, agent := range doc.AITraders {
		assert.Equal(t, 200.0, agent.CurrentBalance, agent.Name)
		assert.Equal(t, ledger.StatusWaiting, agent.Status)
	}
	require.NotNil(t, a.Summary)
	assert.Len(t, a.Summary.Agents, 5)
	assert.Equal(t, "simulated", a.Summary.Market.Source)
	assert.Equal(t, "file", a.Summary.Storage)
	assert.False(t, a.Summary.Restored)
	assert.NotNil(t, a.journal)
}

func TestBuildRestoresSnapshot(t *testing.T) {
	cfg, _ := loadTestConfig(t, "")
	fb, err := store.NewFileBackend(cfg.Persistence.Path)
	require.NoError(t, err)
	grok := ledger.NewAgent(ledger.Spec{Name: "GROK", InitialBalance: 200}, ledger.Limits{}, time.Now())
	grok.CurrentBalance = 321
	require.NoError(t, fb.Save(context.Background(), &store.Document{
		AITraders:   []*ledger.Agent{grok},
		ChartData:   []store.ChartPoint{},
		Messages:    []store.Message{{Trader: "GROK", Message: "hello"}},
		TimeElapsed: 77,
	}))

	a, err := NewAppBuilder(cfg, WithoutHTTP()).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(a.shutdown)

	doc := a.Engine().State()
	restored, ok := doc.Agent("GROK")
	require.True(t, ok)
	assert.Equal(t, 321.0, restored.CurrentBalance)
	assert.Equal(t, int64(77), doc.TimeElapsed)
	assert.Len(t, doc.AITraders, 5)
	assert.True(t, a.Summary.Restored)
}

func TestRunStopsEngineAndFlushesOnCancel(t *testing.T) {
	cfg, _ := loadTestConfig(t, "")
	cfg.Engine.AutoStart = true
	a, err := NewAppBuilder(cfg, WithoutHTTP()).Build(context.Background())
	require.NoError(t, err)
	a.Summary = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, a.Engine().Running, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, a.Engine().Running())

	data, err := os.ReadFile(cfg.Persistence.Path)
	require.NoError(t, err)
	doc, err := store.Decode(data)
	require.NoError(t, err)
	assert.Len(t, doc.AITraders, 5)
	assert.NotEmpty(t, doc.LastUpdate)
}

func TestOpenBackendDrivers(t *testing.T) {
	dir := t.TempDir()

	b, err := OpenBackend(config.PersistenceConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Equal(t, "none", b.Name())

	b, err = OpenBackend(config.PersistenceConfig{Driver: "file", Path: filepath.Join(dir, "snap.json")})
	require.NoError(t, err)
	assert.Equal(t, "file", b.Name())

	b, err = OpenBackend(config.PersistenceConfig{Driver: "sqlite", Path: filepath.Join(dir, "snap.db")})
	if err != nil {
		t.Logf("sqlite unavailable: %v", err)
	} else {
		assert.Equal(t, "gorm/sqlite", b.Name())
		assert.NoError(t, b.Close())
	}

	_, err = OpenBackend(config.PersistenceConfig{Driver: "redis"})
	assert.Error(t, err)

	_, err = OpenBackend(config.PersistenceConfig{Driver: "etcd"})
	assert.ErrorContains(t, err, "unsupported persistence driver")
}

func TestRiskFromConfig(t *testing.T) {
	rc, limits := riskFromConfig(config.RiskConfig{
		MaxPositionsPerAgent:   2,
		MaxLeverage:            5,
		MaxRiskPerTradePercent: 8,
		RecoveryBalance:        40,
		RecoveryMaxLeverage:    1.5,
		RecoverySizeFactor:     0.25,
		DefaultStopLossPercent: 3,
	})
	assert.Equal(t, 5.0, rc.MaxLeverage)
	assert.Equal(t, 8.0, rc.MaxRiskPerTradePercent)
	assert.Equal(t, 1.5, rc.RecoveryMaxLeverage)
	assert.Equal(t, 0.25, rc.RecoverySizeFactor)
	assert.Equal(t, 3.0, rc.DefaultStopLossPercent)
	assert.Equal(t, ledger.Limits{MaxPositions: 2, RecoveryFloor: 40}, limits)
}

func TestSummaryListsAgents(t *testing.T) {
	cfg, _ := loadTestConfig(t, "")
	a, err := NewAppBuilder(cfg, WithoutHTTP()).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(a.shutdown)

	var buf bytes.Buffer
	a.Summary.Fprint(&buf)
	out := buf.String()
	assert.Contains(t, out, "STARTUP SUMMARY")
	assert.Contains(t, out, "GROK")
	assert.Contains(t, out, "BTC-USD")
}

func TestRiskHotReloadReachesEngine(t *testing.T) {
	cfg, _ := loadTestConfig(t, "")
	a, err := NewAppBuilder(cfg, WithoutHTTP()).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(a.shutdown)

	rc := cfg.Risk
	rc.MaxPositionsPerAgent = 1
	a.onConfig(rc)

	doc := a.Engine().State()
	for _, agent := range doc.AITraders {
		assert.Equal(t, 1, agent.MaxPositions(), agent.Name)
	}
}

func TestNewAppResolvesMarketSourceFirst(t *testing.T) {
	cfg, _ := loadTestConfig(t, "")
	a, err := NewApp(cfg)
	require.NoError(t, err)
	t.Cleanup(a.shutdown)
	assert.Len(t, a.Engine().State().AITraders, 5)

	bad, _ := loadTestConfig(t, "")
	bad.Market.Source = "kraken"
	_, err = NewApp(bad)
	assert.ErrorContains(t, err, "unsupported market source")
}
