package profile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"arena/internal/config"

	"gopkg.in/yaml.v3"
)

// Profile 是一个已解析的参赛交易员：配置加上人设文本。
type Profile struct {
	Name           string
	Provider       string
	Strategy       string
	Color          string
	InitialBalance float64
	Persona        string
}

// DefaultAgents 返回内置的五个交易员。
func DefaultAgents() []config.AgentConfig {
	return []config.AgentConfig{
		{Name: "GROK", Provider: "xai", Strategy: "MOMENTUM_TRADING", Color: "#00ff41"},
		{Name: "CLAUDE", Provider: "anthropic", Strategy: "MEAN_REVERSION", Color: "#00ffff"},
		{Name: "CHATGPT", Provider: "openai", Strategy: "TREND_FOLLOWING", Color: "#ff00ff"},
		{Name: "DEEPSEEK", Provider: "deepseek", Strategy: "STATISTICAL_ARBITRAGE", Color: "#ffff00"},
		{Name: "GEMINI", Provider: "google", Strategy: "BREAKOUT_TRADING", Color: "#ff6600"},
	}
}

var builtinPersonas = map[string]string{
	"MOMENTUM_TRADING":      "You chase momentum. Favor symbols whose 24h change and RSI agree, cut losers quickly and let winners run.",
	"MEAN_REVERSION":        "You trade mean reversion. Fade stretched moves away from the EMA and take profit on the snap back.",
	"TREND_FOLLOWING":       "You follow established trends. Only trade in the direction of the prevailing move and avoid counter-trend entries.",
	"STATISTICAL_ARBITRAGE": "You think in relative value. Compare symbols against each other and trade the ones that diverge from the group.",
	"BREAKOUT_TRADING":      "You trade breakouts. Enter when price escapes its 24h range with volume and keep stops just inside the range.",
}

// BuiltinPersonas 实现 TemplateSource，按策略名返回内置人设。
type BuiltinPersonas struct{}

func (BuiltinPersonas) Get(name string) (string, bool) {
	txt, ok := builtinPersonas[strings.ToUpper(strings.TrimSpace(name))]
	return txt, ok
}

type rosterFile struct {
	Agents []config.AgentConfig `yaml:"agents"`
}

// LoadRoster 读取独立的交易员名单文件，未知字段直接报错。
func LoadRoster(path string) ([]config.AgentConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var roster rosterFile
	if err := dec.Decode(&roster); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	return roster.Agents, nil
}

// Resolve 决定最终的交易员列表：config.agents 优先，其次 agents_path，最后内置默认值。
func Resolve(cfg *config.Config, loader PromptLoader) ([]Profile, error) {
	agents := cfg.Agents
	if len(agents) == 0 && strings.TrimSpace(cfg.AgentsPath) != "" {
		path := cfg.AgentsPath
		if !filepath.IsAbs(path) && cfg.Path != "" {
			path = filepath.Join(filepath.Dir(cfg.Path), path)
		}
		loaded, err := LoadRoster(path)
		if err != nil {
			return nil, err
		}
		agents = loaded
	}
	if len(agents) == 0 {
		agents = DefaultAgents()
	}
	if loader == nil {
		var bases []string
		if cfg.Path != "" {
			bases = append(bases, filepath.Dir(cfg.Path))
		}
		loader = NewPromptLoader(BuiltinPersonas{}, bases...)
	}

	out := make([]Profile, 0, len(agents))
	seen := make(map[string]struct{}, len(agents))
	for i, a := range agents {
		name := strings.ToUpper(strings.TrimSpace(a.Name))
		if name == "" {
			return nil, fmt.Errorf("agents[%d] missing name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate agent %s", name)
		}
		seen[name] = struct{}{}
		provider := strings.ToLower(strings.TrimSpace(a.Provider))
		if _, ok := cfg.Providers[provider]; !ok {
			return nil, fmt.Errorf("agent %s references unknown provider %q", name, a.Provider)
		}
		balance := a.InitialBalance
		if balance <= 0 {
			balance = cfg.Engine.InitialBalance
		}
		persona, _ := BuiltinPersonas{}.Get(a.Strategy)
		if ref := strings.TrimSpace(a.Persona); ref != "" {
			txt, err := loader.Load(ref)
			if err != nil {
				return nil, fmt.Errorf("agent %s persona: %w", name, err)
			}
			persona = txt
		}
		out = append(out, Profile{
			Name:           name,
			Provider:       provider,
			Strategy:       strings.TrimSpace(a.Strategy),
			Color:          strings.TrimSpace(a.Color),
			InitialBalance: balance,
			Persona:        strings.TrimSpace(persona),
		})
	}
	return out, nil
}
