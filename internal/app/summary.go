package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"arena/internal/config"
	"arena/internal/profile"
)

type StartupSummary struct {
	Agents   []AgentSummary
	Market   MarketSummary
	Engine   EngineSummary
	Risk     config.RiskConfig
	Storage  string
	Restored bool
	HTTPAddr string
}

type AgentSummary struct {
	Name           string
	Provider       string
	Strategy       string
	InitialBalance float64
	Persona        string
}

type MarketSummary struct {
	Source  string
	Symbols []string
	History int
}

type EngineSummary struct {
	SweepSeconds   int
	ChartSeconds   int
	ChartMaxPoints int
	MessageHistory int
	AutoStart      bool
}

func buildSummary(cfg *config.Config, profiles []profile.Profile, source, storage string, restored bool) *StartupSummary {
	s := &StartupSummary{
		Market: MarketSummary{
			Source:  source,
			Symbols: append([]string(nil), cfg.Market.Symbols...),
			History: cfg.Market.HistorySize,
		},
		Engine: EngineSummary{
			SweepSeconds:   cfg.Engine.SweepIntervalSeconds,
			ChartSeconds:   cfg.Engine.ChartSampleSeconds,
			ChartMaxPoints: cfg.Engine.ChartMaxPoints,
			MessageHistory: cfg.Engine.MessageHistory,
			AutoStart:      cfg.Engine.AutoStart,
		},
		Risk:     cfg.Risk,
		Storage:  storage,
		Restored: restored,
		HTTPAddr: cfg.App.HTTPAddr,
	}
	for _, p := range profiles {
		s.Agents = append(s.Agents, AgentSummary{
			Name:           p.Name,
			Provider:       p.Provider,
			Strategy:       p.Strategy,
			InitialBalance: p.InitialBalance,
			Persona:        p.Persona,
		})
	}
	return s
}

func (s *StartupSummary) Print() {
	s.Fprint(os.Stdout)
}

func (s *StartupSummary) Fprint(w io.Writer) {
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[行情 (MARKET)]")
	fmt.Fprintf(w, "  数据源: %s\n", s.Market.Source)
	fmt.Fprintf(w, "  交易对: %s\n", formatList(s.Market.Symbols))
	fmt.Fprintf(w, "  指标历史: %d\n", s.Market.History)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[引擎 (ENGINE)]")
	fmt.Fprintf(w, "  决策间隔: %ds  曲线采样: %ds (最多 %d 点)\n", s.Engine.SweepSeconds, s.Engine.ChartSeconds, s.Engine.ChartMaxPoints)
	fmt.Fprintf(w, "  消息历史: %d  自动启动: %t\n", s.Engine.MessageHistory, s.Engine.AutoStart)
	fmt.Fprintf(w, "  快照存储: %s (已恢复: %t)\n", s.Storage, s.Restored)
	fmt.Fprintf(w, "  HTTP: %s\n", s.HTTPAddr)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[风控 (RISK)]")
	fmt.Fprintf(w, "  最大持仓: %d  最大杠杆: %.0fx  单笔风险: %.1f%%\n", s.Risk.MaxPositionsPerAgent, s.Risk.MaxLeverage, s.Risk.MaxRiskPerTradePercent)
	fmt.Fprintf(w, "  恢复线: $%.2f  恢复杠杆: %.0fx  默认止损: %.1f%%\n", s.Risk.RecoveryBalance, s.Risk.RecoveryMaxLeverage, s.Risk.DefaultStopLossPercent)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[交易员 (AGENTS)]")
	if len(s.Agents) == 0 {
		fmt.Fprintln(w, "  (无配置)")
	}
	for _, a := range s.Agents {
		fmt.Fprintf(w, "  > %s (%s) 策略: %s 初始资金: $%.2f\n", a.Name, a.Provider, a.Strategy, a.InitialBalance)
		if a.Persona != "" {
			preview := a.Persona
			lines := strings.Split(preview, "\n")
			if len(lines) > 2 {
				preview = strings.Join(lines[:2], "\n") + "\n    ... (truncated)"
			}
			preview = strings.ReplaceAll(preview, "\n", "\n    ")
			fmt.Fprintf(w, "    %s\n", preview)
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
