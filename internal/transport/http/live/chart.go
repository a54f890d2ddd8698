package livehttp

import (
	"bytes"
	"fmt"
	"net/http"

	"arena/internal/logger"
	"arena/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	colorBackground    = "#0f172a"
	colorTextPrimary   = "#e2e8f0"
	colorTextSecondary = "#94a3b8"
)

func (r *Router) handleChart(c *gin.Context) {
	html, err := renderBalanceChart(r.Engine.State())
	if err != nil {
		logger.Errorf("[api] render chart failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// renderBalanceChart 把余额曲线渲染成独立 HTML 页面，每个交易员一条线。
func renderBalanceChart(doc *store.Document) ([]byte, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       "AI Trading Arena",
			Theme:           types.ThemeWesteros,
			Width:           "1200px",
			Height:          "600px",
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         "Account Balance",
			Subtitle:      fmt.Sprintf("%d samples | runtime %ds", len(doc.ChartData), doc.TimeElapsed),
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)

	xAxis := make([]string, 0, len(doc.ChartData))
	for _, p := range doc.ChartData {
		xAxis = append(xAxis, p.Time)
	}
	line.SetXAxis(xAxis)
	for _, a := range doc.AITraders {
		series := make([]opts.LineData, 0, len(doc.ChartData))
		for _, p := range doc.ChartData {
			v, ok := p.Balances[a.Name]
			if !ok {
				series = append(series, opts.LineData{Value: "-"})
				continue
			}
			series = append(series, opts.LineData{Value: v})
		}
		line.AddSeries(a.Name, series, charts.WithLineStyleOpts(opts.LineStyle{Color: a.Color, Width: 2}))
	}
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
