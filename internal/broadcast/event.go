package broadcast

import "time"

// Kind 是推送消息类型。
type Kind string

const (
	KindTraderUpdate  Kind = "TRADER_UPDATE"
	KindTradeMessage  Kind = "TRADE_MESSAGE"
	KindChartUpdate   Kind = "CHART_UPDATE"
	KindRuntimeUpdate Kind = "RUNTIME_UPDATE"
	KindInitialState  Kind = "INITIAL_STATE"
	KindError         Kind = "ERROR"
	KindSystem        Kind = "SYSTEM"
)

// Event 是推送给订阅者的一条消息。Seq 由 Hub 按发布顺序分配。
type Event struct {
	Seq       uint64 `json:"seq"`
	Type      Kind   `json:"type"`
	Trader    string `json:"trader,omitempty"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func NewEvent(kind Kind, data any) Event {
	return Event{Type: kind, Data: data, Timestamp: time.Now().UnixMilli()}
}

func System(message string) Event {
	return Event{Type: KindSystem, Message: message, Timestamp: time.Now().UnixMilli()}
}

func Error(trader, message string) Event {
	return Event{Type: KindError, Trader: trader, Message: message, Timestamp: time.Now().UnixMilli()}
}
