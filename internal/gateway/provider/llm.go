package provider

import (
	"context"
	"fmt"
	"time"

	"arena/internal/decision"
	"arena/internal/logger"
	"arena/internal/prompt"
)

// RulesFunc 返回当前生效的提示词约束，风控热更新后立即反映到下一次调用。
type RulesFunc func() prompt.Rules

// LLMProvider 渲染提示词、调用模型并解析结果。
// 传输错误原样返回，由 decision.Guard 统一折算为安全 HOLD；
// 返回内容无法解析时直接给出 HOLD。
type LLMProvider struct {
	id          string
	persona     string
	model       ModelProvider
	builder     *prompt.Builder
	rules       RulesFunc
	journal     decision.Journal
	maxTokens   int
	temperature float64
	nowFn       func() time.Time
}

type LLMOptions struct {
	Persona     string
	Builder     *prompt.Builder
	Rules       RulesFunc
	Journal     decision.Journal
	MaxTokens   int
	Temperature float64
}

func NewLLMProvider(model ModelProvider, opts LLMOptions) *LLMProvider {
	if opts.Builder == nil {
		opts.Builder = prompt.NewBuilder("")
	}
	if opts.Rules == nil {
		opts.Rules = func() prompt.Rules { return prompt.Rules{} }
	}
	return &LLMProvider{
		id:          model.ID(),
		persona:     opts.Persona,
		model:       model,
		builder:     opts.Builder,
		rules:       opts.Rules,
		journal:     opts.Journal,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		nowFn:       time.Now,
	}
}

func (p *LLMProvider) ID() string { return p.id }

func (p *LLMProvider) Decide(ctx context.Context, tc decision.TradingContext) (decision.TradingDecision, error) {
	msgs, err := p.builder.Render(tc, p.rules(), p.persona)
	if err != nil {
		return decision.TradingDecision{}, err
	}
	logger.LogLLMRequest(tc.Agent, p.id, msgs.System, msgs.User, tc)

	start := p.nowFn()
	raw, err := p.model.Call(ctx, ChatPayload{
		System:      msgs.System,
		User:        msgs.User,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	latency := p.nowFn().Sub(start)
	if err != nil {
		p.record(ctx, tc.Agent, decision.SafeHold(err.Error()), "", err, latency)
		return decision.TradingDecision{}, fmt.Errorf("%s: %w", p.id, err)
	}
	logger.LogLLMResponse(tc.Agent, p.id, raw, latency)

	d, perr := decision.Parse(raw)
	if perr != nil {
		logger.Warnf("[AI] %s 返回内容无法解析: %v", p.id, perr)
		d = decision.SafeHold("Failed to parse LLM response: " + perr.Error())
	}
	p.record(ctx, tc.Agent, d, raw, perr, latency)
	return d, nil
}

func (p *LLMProvider) record(ctx context.Context, agent string, d decision.TradingDecision, raw string, err error, latency time.Duration) {
	if p.journal == nil {
		return
	}
	entry := decision.JournalEntry{
		Agent:      agent,
		Provider:   p.id,
		Action:     d.Action,
		Symbol:     d.Symbol,
		Reasoning:  d.Reasoning,
		Strategy:   d.Strategy,
		Confidence: d.Confidence,
		RawOutput:  raw,
		Latency:    latency,
		CreatedAt:  p.nowFn(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	// 审计失败不影响决策；调用方的 ctx 可能已经超时，单独给一个短超时
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if jerr := p.journal.Record(wctx, entry); jerr != nil {
		logger.Warnf("[AI] 写入决策日志失败: %v", jerr)
	}
}
