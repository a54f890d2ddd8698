package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"arena/internal/pkg/jsonutil"
)

// 模型交互日志单独落盘，格式面向人工排查而不是机器解析。
var llmSink struct {
	sync.Mutex
	w    io.Writer
	dump bool
}

// SetLLMWriter 设置模型交互日志输出；nil 表示关闭。
func SetLLMWriter(w io.Writer) {
	llmSink.Lock()
	llmSink.w = w
	llmSink.Unlock()
}

// EnableLLMPayloadDump 开启后请求日志附带完整的决策上下文。
func EnableLLMPayloadDump(enabled bool) {
	llmSink.Lock()
	llmSink.dump = enabled
	llmSink.Unlock()
}

type llmEntry struct {
	kind, agent, provider string
	blocks                [][2]string
}

func (e *llmEntry) add(title, body string) {
	e.blocks = append(e.blocks, [2]string{title, body})
}

func (e *llmEntry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [LLM]", time.Now().Format("2006/01/02 15:04:05"))
	for _, tag := range []string{e.kind, e.agent, e.provider} {
		if tag != "" {
			b.WriteString("[" + tag + "]")
		}
	}
	b.WriteByte('\n')
	for _, blk := range e.blocks {
		fmt.Fprintf(&b, "--- %s ---\n%s", blk[0], blk[1])
		if !strings.HasSuffix(blk[1], "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteString("=====\n")
	return b.String()
}

func writeLLM(build func(dump bool) *llmEntry) {
	llmSink.Lock()
	defer llmSink.Unlock()
	if llmSink.w == nil {
		return
	}
	_, _ = io.WriteString(llmSink.w, build(llmSink.dump).String())
}

func LogLLMRequest(agent, provider, systemPrompt, userPrompt string, payload any) {
	writeLLM(func(dump bool) *llmEntry {
		e := &llmEntry{kind: "request", agent: agent, provider: provider}
		e.add("SYSTEM", systemPrompt)
		e.add("USER", userPrompt)
		if dump && payload != nil {
			e.add("PAYLOAD", jsonutil.Dump(payload))
		}
		return e
	})
}

func LogLLMResponse(agent, provider, raw string, latency time.Duration) {
	writeLLM(func(bool) *llmEntry {
		e := &llmEntry{kind: "response", agent: agent, provider: provider}
		e.add("LATENCY", latency.Round(time.Millisecond).String())
		e.add("RAW", raw)
		return e
	})
}
