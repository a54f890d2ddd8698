package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Persistence.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	for name, p := range c.Providers {
		if err := p.validate(name); err != nil {
			return err
		}
	}
	for i, a := range c.Agents {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("agents[%d] missing name", i)
		}
		if _, ok := c.Providers[strings.ToLower(strings.TrimSpace(a.Provider))]; !ok {
			return fmt.Errorf("agents.%s references unknown provider %q", a.Name, a.Provider)
		}
	}
	return nil
}

func (e *EngineConfig) validate() error {
	if e.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("engine.sweep_interval_seconds must be > 0")
	}
	if e.RuntimeTickSeconds <= 0 || e.ChartSampleSeconds <= 0 {
		return fmt.Errorf("engine.runtime_tick_seconds and engine.chart_sample_seconds must be > 0")
	}
	if e.ChartMaxPoints <= 0 || e.MessageHistory <= 0 {
		return fmt.Errorf("engine.chart_max_points and engine.message_history must be > 0")
	}
	if e.InitialBalance <= 0 {
		return fmt.Errorf("engine.initial_balance must be > 0")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxPositionsPerAgent <= 0 {
		return fmt.Errorf("risk.max_positions_per_agent must be > 0")
	}
	if r.MaxLeverage < 1 {
		return fmt.Errorf("risk.max_leverage must be >= 1")
	}
	if r.MaxRiskPerTradePercent <= 0 || r.MaxRiskPerTradePercent > 100 {
		return fmt.Errorf("risk.max_risk_per_trade_percent must be in (0,100]")
	}
	if r.RecoverySizeFactor <= 0 || r.RecoverySizeFactor > 1 {
		return fmt.Errorf("risk.recovery_size_factor must be in (0,1]")
	}
	if r.RecoveryMaxLeverage < 1 {
		return fmt.Errorf("risk.recovery_max_leverage must be >= 1")
	}
	if r.DefaultStopLossPercent <= 0 || r.DefaultStopLossPercent >= 100 {
		return fmt.Errorf("risk.default_stop_loss_percent must be in (0,100)")
	}
	if r.DefaultSizePercent <= 0 || r.DefaultSizePercent > 100 {
		return fmt.Errorf("risk.default_size_percent must be in (0,100]")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	switch m.Source {
	case "simulated", "binance":
	default:
		return fmt.Errorf("market.source must be simulated or binance, got %q", m.Source)
	}
	if m.Source == "binance" && strings.TrimSpace(m.RESTBaseURL) == "" {
		return fmt.Errorf("market.rest_base_url cannot be empty for binance source")
	}
	if len(m.Symbols) == 0 {
		return fmt.Errorf("market.symbols requires at least one symbol")
	}
	return nil
}

func (p *PersistenceConfig) validate() error {
	switch p.Driver {
	case "file", "sqlite":
		if strings.TrimSpace(p.Path) == "" {
			return fmt.Errorf("persistence.path cannot be empty for driver %s", p.Driver)
		}
	case "postgres", "mysql":
		if strings.TrimSpace(p.DSN) == "" {
			return fmt.Errorf("persistence.dsn cannot be empty for driver %s", p.Driver)
		}
	case "redis":
		if strings.TrimSpace(p.RedisAddr) == "" {
			return fmt.Errorf("persistence.redis_addr cannot be empty")
		}
	case "none":
	default:
		return fmt.Errorf("unsupported persistence.driver: %s", p.Driver)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}

func (p ProviderConfig) validate(name string) error {
	switch p.Kind {
	case "openai", "anthropic", "google":
		if strings.TrimSpace(p.APIURL) == "" {
			return fmt.Errorf("providers.%s missing api_url", name)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("providers.%s missing model", name)
		}
	case "simulated":
	default:
		return fmt.Errorf("providers.%s has unsupported kind %q", name, p.Kind)
	}
	if p.RequestsPerMinute < 0 {
		return fmt.Errorf("providers.%s requests_per_minute must be >= 0", name)
	}
	return nil
}
