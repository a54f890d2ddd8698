package ledger

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Performance 汇总已实现成交的统计指标。
type Performance struct {
	Agent              string  `json:"agent"`
	TotalTrades        int     `json:"totalTrades"`
	WinRate            float64 `json:"winRate"`
	TotalPnL           float64 `json:"totalPnl"`
	ReturnPercent      float64 `json:"returnPercent"`
	AvgPnL             float64 `json:"avgPnl"`
	StdDevPnL          float64 `json:"stdDevPnl"`
	Sharpe             float64 `json:"sharpe"`
	MaxDrawdownPercent float64 `json:"maxDrawdownPercent"`
	BestTrade          float64 `json:"bestTrade"`
	WorstTrade         float64 `json:"worstTrade"`
}

// Performance 基于成交历史计算收益分布。Sharpe 为单笔收益率均值/标准差，不做年化。
func (a *Agent) Performance() Performance {
	perf := Performance{
		Agent:       a.Name,
		TotalTrades: a.TotalTrades,
		WinRate:     a.WinRate,
		TotalPnL:    a.TotalPnL,
	}
	if a.InitialBalance > 0 {
		perf.ReturnPercent = a.TotalPnL / a.InitialBalance * 100
	}
	if len(a.TradeHistory) == 0 {
		return perf
	}
	pnls := make([]float64, len(a.TradeHistory))
	returns := make([]float64, len(a.TradeHistory))
	perf.BestTrade = math.Inf(-1)
	perf.WorstTrade = math.Inf(1)
	for i, t := range a.TradeHistory {
		pnls[i] = t.PnL
		returns[i] = t.PnLPercent
		perf.BestTrade = math.Max(perf.BestTrade, t.PnL)
		perf.WorstTrade = math.Min(perf.WorstTrade, t.PnL)
	}
	perf.AvgPnL = stat.Mean(pnls, nil)
	if len(pnls) > 1 {
		perf.StdDevPnL = stat.StdDev(pnls, nil)
		mean, std := stat.MeanStdDev(returns, nil)
		if std > 0 {
			perf.Sharpe = mean / std
		}
	}
	perf.MaxDrawdownPercent = maxDrawdown(a.InitialBalance, pnls)
	return perf
}

func maxDrawdown(start float64, pnls []float64) float64 {
	equity := start
	peak := start
	worst := 0.0
	for _, p := range pnls {
		equity += p
		if equity > peak {
			peak = equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - equity) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}
