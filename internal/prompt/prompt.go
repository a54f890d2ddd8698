package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"arena/internal/decision"
	"arena/internal/market"
)

// Rules 是写进提示词的硬性约束，取自当前风控配置。
type Rules struct {
	MaxRiskPercent float64
	MaxPositions   int
	MaxLeverage    float64
	Symbols        []string
}

// Prompt 是一次调用的 system/user 两段文本。
type Prompt struct {
	System string
	User   string
}

const defaultSystem = `You are a professional cryptocurrency trader competing in a live futures arena against other AI models.
Be precise, objective, and always prioritize capital preservation.`

const userTemplate = `{{if .Persona}}{{.Persona}}

{{end}}AGENT: {{.Ctx.Agent}}{{if .Ctx.Strategy}} ({{.Ctx.Strategy}}){{end}}
AVAILABLE CAPITAL: ${{money .Ctx.CurrentBalance}} USD
OPEN POSITIONS: {{len .Ctx.OpenPositions}}/{{.Rules.MaxPositions}}
{{- range .Ctx.OpenPositions}}
- {{.Side}} {{.Symbol}} size ${{money .Size}} @ {{price .EntryPrice}} x{{num .Leverage}} | now {{price .CurrentPrice}} | uPnL ${{money .UnrealizedPnL}}
{{- end}}
{{- if .Ctx.RecoveryMode}}

RECOVERY MODE: balance is below the recovery floor. Leverage is capped at 2x and position sizes are halved.
{{- end}}

MARKET DATA:
{{- range .Ctx.Market}}
{{marketLine .}}
{{- end}}

PERFORMANCE HISTORY:
- Win Rate: {{pct .Ctx.History.WinRate}}%
- Total P&L: ${{money .Ctx.History.TotalPnL}}
- Total Trades: {{.Ctx.History.TotalTrades}}

YOUR MISSION:
1. Analyze the provided market data
2. Identify trading opportunities
3. Decide whether to OPEN_LONG, OPEN_SHORT, CLOSE_POSITION, or HOLD
4. Apply appropriate risk management (stop loss, position size, leverage)
5. Explain your reasoning clearly

MANDATORY RULES:
- Never risk more than {{num .Rules.MaxRiskPercent}}% of capital in a single trade
- Always set stop loss
- Maximum {{.Rules.MaxPositions}} positions open simultaneously
- Maximum leverage: {{num .Rules.MaxLeverage}}x (recommended: 2-5x)
- Consider volatility before entering positions
- CLOSE_POSITION always closes your oldest open position

INSTRUCTIONS:
Return your decision in valid JSON format following this exact structure:
{
  "action": "OPEN_LONG" | "OPEN_SHORT" | "CLOSE_POSITION" | "HOLD",
  "symbol": {{symbolList .Rules.Symbols}},
  "size": <value in USD>,
  "leverage": <1 to {{num .Rules.MaxLeverage}}>,
  "stopLoss": <price>,
  "takeProfit": <price>,
  "reasoning": "<detailed explanation of your decision, including technical indicators analyzed, patterns identified, and risk management justification>",
  "strategy": "<strategy name: Momentum, Mean Reversion, Breakout, etc>",
  "confidence": <0 to 100>
}`

var funcs = template.FuncMap{
	"money":      func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"pct":        func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"num":        formatNumber,
	"price":      formatPrice,
	"marketLine": MarketLine,
	"symbolList": func(symbols []string) string {
		if len(symbols) == 0 {
			return `"BTC-USD" | "ETH-USD" | "SOL-USD" | etc`
		}
		quoted := make([]string, 0, len(symbols))
		for _, s := range symbols {
			quoted = append(quoted, fmt.Sprintf("%q", s))
		}
		return strings.Join(quoted, " | ")
	},
}

// Builder 把决策上下文渲染为提示词。
type Builder struct {
	system string
	user   *template.Template
}

// NewBuilder 使用内置模板；system 为空时使用默认 system prompt。
func NewBuilder(system string) *Builder {
	if strings.TrimSpace(system) == "" {
		system = defaultSystem
	}
	return &Builder{
		system: system,
		user:   template.Must(template.New("user").Funcs(funcs).Parse(userTemplate)),
	}
}

type view struct {
	Ctx     decision.TradingContext
	Rules   Rules
	Persona string
}

// Render 生成 system/user 提示词。persona 为空时省略人设段落。
func (b *Builder) Render(tc decision.TradingContext, rules Rules, persona string) (Prompt, error) {
	if rules.MaxPositions <= 0 {
		rules.MaxPositions = tc.MaxPositions
	}
	var buf bytes.Buffer
	if err := b.user.Execute(&buf, view{Ctx: tc, Rules: rules, Persona: strings.TrimSpace(persona)}); err != nil {
		return Prompt{}, fmt.Errorf("render prompt: %w", err)
	}
	return Prompt{System: b.system, User: buf.String()}, nil
}

// MarketLine 输出单个品种的一行行情，例如
// "BTC-USD: $65000.00 | 24h Change: 1.25% | Volume: $1234.57M"。
func MarketLine(q market.Quote) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: $%.2f | 24h Change: %.2f%% | Volume: $%.2fM", q.Symbol, q.Price, q.PriceChange24h, q.Volume24h/1_000_000)
	if q.RSI14 != nil {
		fmt.Fprintf(&sb, " | RSI14: %.1f", *q.RSI14)
	}
	if q.EMA20 != nil {
		fmt.Fprintf(&sb, " | EMA20: %s", formatPrice(*q.EMA20))
	}
	return sb.String()
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func formatPrice(v float64) string {
	if v >= 1 {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.6f", v)
}
