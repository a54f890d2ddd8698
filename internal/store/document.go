package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"arena/internal/ledger"
)

// Document 是持久化的完整竞技场状态。
type Document struct {
	AITraders   []*ledger.Agent `json:"aiTraders"`
	ChartData   []ChartPoint    `json:"chartData"`
	Messages    []Message       `json:"messages"`
	TimeElapsed int64           `json:"timeElapsed"`
	LastUpdate  string          `json:"lastUpdate,omitempty"`
}

// Message 是一条决策播报，按时间倒序保存。
type Message struct {
	Trader    string `json:"trader"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ChartPoint 是一次余额采样，序列化为 {"time": "...", "<agent>": balance} 的扁平结构。
type ChartPoint struct {
	Time     string
	Balances map[string]float64
}

func (p ChartPoint) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(p.Balances)+1)
	for name, v := range p.Balances {
		flat[name] = v
	}
	flat["time"] = p.Time
	return json.Marshal(flat)
}

func (p *ChartPoint) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	p.Balances = make(map[string]float64, len(flat))
	for key, raw := range flat {
		if key == "time" {
			if err := json.Unmarshal(raw, &p.Time); err != nil {
				return fmt.Errorf("chart point time: %w", err)
			}
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("chart point %s: %w", key, err)
		}
		p.Balances[key] = v
	}
	return nil
}

// Names 返回采样中出现的 agent 名称（排序后）。
func (p ChartPoint) Names() []string {
	out := make([]string, 0, len(p.Balances))
	for name := range p.Balances {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (p ChartPoint) Clone() ChartPoint {
	cp := ChartPoint{Time: p.Time, Balances: make(map[string]float64, len(p.Balances))}
	for k, v := range p.Balances {
		cp.Balances[k] = v
	}
	return cp
}

// Clone 深拷贝，保存与推送都基于拷贝。
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	cp := &Document{
		AITraders:   make([]*ledger.Agent, len(d.AITraders)),
		ChartData:   make([]ChartPoint, len(d.ChartData)),
		Messages:    append(make([]Message, 0, len(d.Messages)), d.Messages...),
		TimeElapsed: d.TimeElapsed,
		LastUpdate:  d.LastUpdate,
	}
	for i, a := range d.AITraders {
		cp.AITraders[i] = a.Clone()
	}
	for i, p := range d.ChartData {
		cp.ChartData[i] = p.Clone()
	}
	return cp
}

// Agent 按名称查找。
func (d *Document) Agent(name string) (*ledger.Agent, bool) {
	for _, a := range d.AITraders {
		if a != nil && a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Encode 以两空格缩进输出，与文件快照格式一致。
func Encode(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &doc, nil
}
