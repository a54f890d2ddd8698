package market

import (
	"context"
	"fmt"
)

// Feed 拉取报价并补充指标，产出每轮扫描使用的 Board。
type Feed struct {
	source  Source
	history *History
}

func NewFeed(source Source, history *History) *Feed {
	if history == nil {
		history = NewHistory(0)
	}
	return &Feed{source: source, history: history}
}

func (f *Feed) Snapshot(ctx context.Context, symbols []string) (Board, error) {
	if f == nil || f.source == nil {
		return Board{}, fmt.Errorf("market feed not configured")
	}
	quotes, err := f.source.Quotes(ctx, symbols)
	if err != nil {
		return Board{}, fmt.Errorf("%s quotes: %w", f.source.Name(), err)
	}
	return NewBoard(f.history.Enrich(quotes)), nil
}
