package config

// Config 汇总竞技场运行所需的全部配置。
type Config struct {
	App         AppConfig                 `toml:"app"`
	Engine      EngineConfig              `toml:"engine"`
	Risk        RiskConfig                `toml:"risk"`
	Market      MarketConfig              `toml:"market"`
	Providers   map[string]ProviderConfig `toml:"providers"`
	Agents      []AgentConfig             `toml:"agents"`
	AgentsPath  string                    `toml:"agents_path"`
	Persistence PersistenceConfig         `toml:"persistence"`
	DecisionLog DecisionLogConfig         `toml:"decision_log"`
	Notify      NotifyConfig              `toml:"notify"`

	// 主配置文件绝对路径，热加载时使用。
	Path string `toml:"-"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
	LLMLog    string `toml:"llm_log_path"`
	LLMDump   bool   `toml:"llm_dump_payload"`
	// WatchRisk 开启后监听配置文件变更并热更新风控参数。
	WatchRisk bool `toml:"watch_risk"`
}

// EngineConfig 控制调度节奏与内存中的历史长度。
type EngineConfig struct {
	SweepIntervalSeconds int     `toml:"sweep_interval_seconds"`
	RuntimeTickSeconds   int     `toml:"runtime_tick_seconds"`
	ChartSampleSeconds   int     `toml:"chart_sample_seconds"`
	ChartMaxPoints       int     `toml:"chart_max_points"`
	MessageHistory       int     `toml:"message_history"`
	RuntimePersistEvery  int     `toml:"runtime_persist_every"`
	InitialBalance       float64 `toml:"initial_balance"`
	AutoStart            bool    `toml:"auto_start"`
	RestartOnReset       bool    `toml:"restart_on_reset"`
	// SimulateMissingKeys 为 true 时，缺少 API Key 的模型退化为本地模拟决策。
	SimulateMissingKeys bool `toml:"simulate_missing_keys"`
}

type RiskConfig struct {
	MaxPositionsPerAgent   int     `toml:"max_positions_per_agent"`
	MaxLeverage            float64 `toml:"max_leverage"`
	MaxRiskPerTradePercent float64 `toml:"max_risk_per_trade_percent"`
	RecoveryBalance        float64 `toml:"recovery_balance"`
	RecoveryMaxLeverage    float64 `toml:"recovery_max_leverage"`
	RecoverySizeFactor     float64 `toml:"recovery_size_factor"`
	DefaultStopLossPercent float64 `toml:"default_stop_loss_percent"`
	DefaultSizePercent     float64 `toml:"default_size_percent"`
}

type MarketConfig struct {
	// Source: simulated | binance
	Source      string   `toml:"source"`
	Symbols     []string `toml:"symbols"`
	Seed        int64    `toml:"seed"`
	RESTBaseURL string   `toml:"rest_base_url"`
	HistorySize int      `toml:"history_size"`
	// Volatility 为模拟行情每次采样的最大相对波动。
	Volatility float64 `toml:"volatility"`
}

// ProviderConfig 描述一个模型后端的连接参数。
type ProviderConfig struct {
	Kind              string            `toml:"kind"`
	APIURL            string            `toml:"api_url"`
	APIKey            string            `toml:"api_key"`
	APIKeyEnv         string            `toml:"api_key_env"`
	Model             string            `toml:"model"`
	MaxTokens         int               `toml:"max_tokens"`
	Temperature       float64           `toml:"temperature"`
	TimeoutSeconds    int               `toml:"timeout_seconds"`
	RequestsPerMinute int               `toml:"requests_per_minute"`
	BreakerThreshold  int               `toml:"breaker_threshold"`
	BreakerCooldown   int               `toml:"breaker_cooldown_seconds"`
	Headers           map[string]string `toml:"headers"`
}

// AgentConfig 描述竞技场中的一个参赛模型。
type AgentConfig struct {
	Name           string  `toml:"name" yaml:"name"`
	Provider       string  `toml:"provider" yaml:"provider"`
	Strategy       string  `toml:"strategy" yaml:"strategy"`
	Color          string  `toml:"color" yaml:"color"`
	Persona        string  `toml:"persona" yaml:"persona"`
	InitialBalance float64 `toml:"initial_balance" yaml:"initial_balance"`
}

type PersistenceConfig struct {
	// Driver: file | sqlite | postgres | mysql | redis | none
	Driver         string `toml:"driver"`
	Path           string `toml:"path"`
	DSN            string `toml:"dsn"`
	RedisAddr      string `toml:"redis_addr"`
	RedisPassword  string `toml:"redis_password"`
	RedisDB        int    `toml:"redis_db"`
	RedisKey       string `toml:"redis_key"`
	DebounceMillis int    `toml:"debounce_millis"`
}

type DecisionLogConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}
