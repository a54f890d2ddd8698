package provider

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"arena/internal/config"
	"arena/internal/decision"
	"arena/internal/logger"
	"arena/internal/pkg/circuit"
	"arena/internal/profile"
	"arena/internal/prompt"

	"golang.org/x/time/rate"
)

// Factory 根据 providers 配置为每个交易员构建带保护的决策源。
type Factory struct {
	Providers           map[string]config.ProviderConfig
	SimulateMissingKeys bool
	Builder             *prompt.Builder
	Rules               RulesFunc
	Journal             decision.Journal
	Seed                int64
}

// Build 返回经过 decision.Guard 包装的 Provider：超时、熔断、限流和 panic 都会变成安全 HOLD。
func (f *Factory) Build(p profile.Profile) (decision.Provider, error) {
	name := strings.ToLower(strings.TrimSpace(p.Provider))
	pc, ok := f.Providers[name]
	if !ok {
		return nil, fmt.Errorf("agent %s: provider %q 未配置", p.Name, p.Provider)
	}
	inner, err := f.buildInner(p, name, pc)
	if err != nil {
		return nil, err
	}
	opts := decision.GuardOptions{
		Timeout: time.Duration(pc.TimeoutSeconds) * time.Second,
	}
	if pc.BreakerThreshold > 0 {
		opts.Breaker = circuit.New(circuit.Config{
			Name:      p.Name + "/" + name,
			Threshold: pc.BreakerThreshold,
			Cooldown:  time.Duration(pc.BreakerCooldown) * time.Second,
			OnChange: func(id string, from, to circuit.State) {
				logger.Warnf("provider breaker %s: %s -> %s", id, from, to)
			},
		})
	}
	if pc.RequestsPerMinute > 0 {
		opts.Limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(pc.RequestsPerMinute)), 1)
	}
	return decision.Guard(inner, opts), nil
}

func (f *Factory) buildInner(p profile.Profile, name string, pc config.ProviderConfig) (decision.Provider, error) {
	kind := strings.ToLower(strings.TrimSpace(pc.Kind))
	if kind == "simulated" {
		return NewSimulatedProvider(name, f.seedFor(p.Name)), nil
	}
	if strings.TrimSpace(pc.APIKey) == "" {
		if !f.SimulateMissingKeys {
			return nil, fmt.Errorf("agent %s: provider %s 缺少 API Key（%s）", p.Name, name, pc.APIKeyEnv)
		}
		logger.Warnf("agent %s: provider %s 未配置 API Key，使用模拟决策", p.Name, name)
		return NewSimulatedProvider(name+":simulated", f.seedFor(p.Name)), nil
	}
	cc := ClientConfig{
		ID:         name,
		BaseURL:    pc.APIURL,
		APIKey:     pc.APIKey,
		Model:      pc.Model,
		Timeout:    time.Duration(pc.TimeoutSeconds) * time.Second,
		MaxRetries: 2,
		Headers:    pc.Headers,
	}
	var model ModelProvider
	switch kind {
	case "openai", "xai", "deepseek":
		model = NewOpenAIChatClient(cc)
	case "anthropic":
		model = NewAnthropicClient(cc)
	case "google", "gemini":
		model = NewGoogleClient(cc)
	default:
		return nil, fmt.Errorf("agent %s: 不支持的 provider kind %q", p.Name, pc.Kind)
	}
	return NewLLMProvider(model, LLMOptions{
		Persona:     p.Persona,
		Builder:     f.Builder,
		Rules:       f.Rules,
		Journal:     f.Journal,
		MaxTokens:   pc.MaxTokens,
		Temperature: pc.Temperature,
	}), nil
}

// seedFor 让不同交易员的模拟决策互不相同，同时在同一 seed 下可复现。
func (f *Factory) seedFor(agent string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(agent))
	return f.Seed ^ int64(h.Sum64()>>1)
}
