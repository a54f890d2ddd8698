package notifier

import (
	"fmt"
	"strings"
	"time"
)

// Telegram 单条上限 4096，留出 Markdown 包裹的余量。
const maxCardLen = 3800

// CardField 是卡片里的一行 key/value。
type CardField struct {
	Label string
	Value string
}

// AlertCard 是推送给聊天频道的交易卡片：标题、对齐的字段块、备注。
type AlertCard struct {
	Badge  string
	Header string
	Fields []CardField
	Note   string
	At     time.Time
}

func (c *AlertCard) Add(label, format string, args ...any) {
	c.Fields = append(c.Fields, CardField{Label: label, Value: fmt.Sprintf(format, args...)})
}

// Markdown 渲染卡片。字段放进代码块以便等宽对齐，超长时截断。
func (c AlertCard) Markdown() string {
	var parts []string
	if head := strings.TrimSpace(c.Badge + " " + c.Header); head != "" {
		parts = append(parts, "*"+escapeCard(head)+"*")
	}
	if block := c.fieldBlock(); block != "" {
		parts = append(parts, block)
	}
	if note := strings.TrimSpace(c.Note); note != "" {
		parts = append(parts, "_"+escapeCard(note)+"_")
	}
	if !c.At.IsZero() {
		parts = append(parts, c.At.UTC().Format("2006-01-02 15:04:05")+" UTC")
	}
	out := strings.Join(parts, "\n\n")
	if len(out) > maxCardLen {
		out = out[:maxCardLen] + "..."
	}
	return out
}

func (c AlertCard) fieldBlock() string {
	width := 0
	rows := make([]CardField, 0, len(c.Fields))
	for _, f := range c.Fields {
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		rows = append(rows, f)
		if n := len([]rune(f.Label)); n > width {
			width = n
		}
	}
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("```\n")
	for _, f := range rows {
		pad := width - len([]rune(f.Label))
		b.WriteString(f.Label)
		b.WriteString(strings.Repeat(" ", pad+2))
		b.WriteString(strings.ReplaceAll(f.Value, "`", "'"))
		b.WriteByte('\n')
	}
	b.WriteString("```")
	return b.String()
}

var cardEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "'", "[", "\\[")

func escapeCard(s string) string {
	return cardEscaper.Replace(s)
}
