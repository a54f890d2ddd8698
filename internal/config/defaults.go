package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppLogFormat     = "text"
	defaultAppHTTPAddr      = ":3001"
	defaultSweepInterval    = 45
	defaultRuntimeTick      = 1
	defaultChartSample      = 5
	defaultChartMaxPoints   = 500
	defaultMessageHistory   = 100
	defaultRuntimePersist   = 10
	defaultInitialBalance   = 200
	defaultMaxPositions     = 3
	defaultMaxLeverage      = 10
	defaultMaxRiskPct       = 10
	defaultRecoveryBalance  = 50
	defaultRecoveryLeverage = 2
	defaultRecoveryFactor   = 0.5
	defaultStopLossPct      = 5
	defaultSizePct          = 5
	defaultMarketSource     = "simulated"
	defaultMarketREST       = "https://fapi.binance.com"
	defaultHistorySize      = 200
	defaultVolatility       = 0.01
	defaultMaxTokens        = 1000
	defaultTemperature      = 0.7
	defaultProviderTimeout  = 30
	defaultBreakerThreshold = 3
	defaultBreakerCooldown  = 60
	defaultPersistDriver    = "file"
	defaultPersistPath      = "data/trading-data.json"
	defaultRedisKey         = "arena:snapshot"
	defaultDebounceMillis   = 1000
	defaultDecisionLogPath  = "data/decisions.db"
)

var defaultSymbols = []string{"BTC-USD", "ETH-USD", "SOL-USD", "ARB-USD", "AVAX-USD"}

// providerPresets 为常见模型后端提供连接默认值，按 providers 的 key 匹配。
var providerPresets = map[string]ProviderConfig{
	"openai": {
		Kind:      "openai",
		APIURL:    "https://api.openai.com/v1",
		APIKeyEnv: "OPENAI_API_KEY",
		Model:     "gpt-4-turbo-preview",
	},
	"anthropic": {
		Kind:      "anthropic",
		APIURL:    "https://api.anthropic.com/v1",
		APIKeyEnv: "ANTHROPIC_API_KEY",
		Model:     "claude-3-5-sonnet-20241022",
	},
	"xai": {
		Kind:      "openai",
		APIURL:    "https://api.x.ai/v1",
		APIKeyEnv: "XAI_API_KEY",
		Model:     "grok-beta",
	},
	"deepseek": {
		Kind:      "openai",
		APIURL:    "https://api.deepseek.com/v1",
		APIKeyEnv: "DEEPSEEK_API_KEY",
		Model:     "deepseek-chat",
	},
	"google": {
		Kind:      "google",
		APIURL:    "https://generativelanguage.googleapis.com/v1",
		APIKeyEnv: "GOOGLE_API_KEY",
		Model:     "gemini-pro",
	},
	"simulated": {
		Kind: "simulated",
	},
}

type keySet map[string]struct{}

func (k keySet) mark(key string) {
	k[strings.ToLower(key)] = struct{}{}
}

func (k keySet) isSet(key string) bool {
	if k == nil {
		return false
	}
	_, ok := k[strings.ToLower(key)]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Persistence.applyDefaults(keys)
	c.DecisionLog.applyDefaults(keys)
	c.applyProviderDefaults()
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("engine.sweep_interval_seconds", &e.SweepIntervalSeconds, defaultSweepInterval),
		intFieldDefault("engine.runtime_tick_seconds", &e.RuntimeTickSeconds, defaultRuntimeTick),
		intFieldDefault("engine.chart_sample_seconds", &e.ChartSampleSeconds, defaultChartSample),
		intFieldDefault("engine.chart_max_points", &e.ChartMaxPoints, defaultChartMaxPoints),
		intFieldDefault("engine.message_history", &e.MessageHistory, defaultMessageHistory),
		intFieldDefault("engine.runtime_persist_every", &e.RuntimePersistEvery, defaultRuntimePersist),
		floatFieldDefault("engine.initial_balance", &e.InitialBalance, defaultInitialBalance),
		boolFieldDefault("engine.auto_start", &e.AutoStart, true),
		boolFieldDefault("engine.simulate_missing_keys", &e.SimulateMissingKeys, true),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("risk.max_positions_per_agent", &r.MaxPositionsPerAgent, defaultMaxPositions),
		floatFieldDefault("risk.max_leverage", &r.MaxLeverage, defaultMaxLeverage),
		floatFieldDefault("risk.max_risk_per_trade_percent", &r.MaxRiskPerTradePercent, defaultMaxRiskPct),
		floatFieldDefault("risk.recovery_balance", &r.RecoveryBalance, defaultRecoveryBalance),
		floatFieldDefault("risk.recovery_max_leverage", &r.RecoveryMaxLeverage, defaultRecoveryLeverage),
		floatFieldDefault("risk.recovery_size_factor", &r.RecoverySizeFactor, defaultRecoveryFactor),
		floatFieldDefault("risk.default_stop_loss_percent", &r.DefaultStopLossPercent, defaultStopLossPct),
		floatFieldDefault("risk.default_size_percent", &r.DefaultSizePercent, defaultSizePct),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.source", &m.Source, defaultMarketSource),
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		intFieldDefault("market.history_size", &m.HistorySize, defaultHistorySize),
		floatFieldDefault("market.volatility", &m.Volatility, defaultVolatility),
	)
	m.Source = strings.ToLower(strings.TrimSpace(m.Source))
	m.Symbols = normalizeSymbols(m.Symbols)
	if len(m.Symbols) == 0 {
		m.Symbols = append([]string(nil), defaultSymbols...)
	}
}

func (p *PersistenceConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("persistence.driver", &p.Driver, defaultPersistDriver),
		stringFieldDefault("persistence.path", &p.Path, defaultPersistPath),
		stringFieldDefault("persistence.redis_key", &p.RedisKey, defaultRedisKey),
		intFieldDefault("persistence.debounce_millis", &p.DebounceMillis, defaultDebounceMillis),
	)
	p.Driver = strings.ToLower(strings.TrimSpace(p.Driver))
}

func (d *DecisionLogConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("decision_log.path", &d.Path, defaultDecisionLogPath),
	)
}

// applyProviderDefaults 未配置 providers 时使用全部预设；已配置的条目按同名预设补齐空字段。
func (c *Config) applyProviderDefaults() {
	if len(c.Providers) == 0 {
		c.Providers = make(map[string]ProviderConfig, len(providerPresets))
		for name := range providerPresets {
			c.Providers[name] = ProviderConfig{}
		}
	}
	normalized := make(map[string]ProviderConfig, len(c.Providers))
	for name, p := range c.Providers {
		name = strings.ToLower(strings.TrimSpace(name))
		if preset, ok := providerPresets[name]; ok {
			p = mergePreset(p, preset)
		}
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		if p.Kind == "" {
			p.Kind = "openai"
		}
		if p.MaxTokens <= 0 {
			p.MaxTokens = defaultMaxTokens
		}
		if p.Temperature <= 0 {
			p.Temperature = defaultTemperature
		}
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = defaultProviderTimeout
		}
		if p.BreakerThreshold <= 0 {
			p.BreakerThreshold = defaultBreakerThreshold
		}
		if p.BreakerCooldown <= 0 {
			p.BreakerCooldown = defaultBreakerCooldown
		}
		normalized[name] = p
	}
	c.Providers = normalized
}

func mergePreset(p, preset ProviderConfig) ProviderConfig {
	if strings.TrimSpace(p.Kind) == "" {
		p.Kind = preset.Kind
	}
	if strings.TrimSpace(p.APIURL) == "" {
		p.APIURL = preset.APIURL
	}
	if strings.TrimSpace(p.APIKeyEnv) == "" {
		p.APIKeyEnv = preset.APIKeyEnv
	}
	if strings.TrimSpace(p.Model) == "" {
		p.Model = preset.Model
	}
	return p
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func normalizeSymbols(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, sym := range list {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
