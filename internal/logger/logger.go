// Package logger 是进程级的 slog 封装：printf 风格的快捷函数加上可切换的输出、格式和级别。
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

type sinkConfig struct {
	w    io.Writer
	json bool
}

var (
	level   = new(slog.LevelVar)
	current atomic.Pointer[slog.Logger]

	sinkMu sync.Mutex
	sink   = sinkConfig{w: os.Stdout}
)

func init() {
	rebuild(sink)
}

func rebuild(s sinkConfig) {
	w := s.w
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if s.json {
		h = slog.NewJSONHandler(w, opts)
	}
	current.Store(slog.New(h))
}

func SetOutput(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink.w = w
	rebuild(sink)
}

// SetFormat 接受 text / json，其它值按 text 处理。
func SetFormat(name string) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink.json = strings.EqualFold(strings.TrimSpace(name), "json")
	rebuild(sink)
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// SetLevel 未识别的级别回落到 info。
func SetLevel(name string) {
	lv, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		lv = slog.LevelInfo
	}
	level.Set(lv)
}

// Component 返回带 component 字段的 logger，用于需要结构化字段的调用方。
func Component(name string) *slog.Logger {
	return current.Load().With("component", name)
}

func logf(lv slog.Level, format string, args []any) {
	l := current.Load()
	if !l.Enabled(context.Background(), lv) {
		return
	}
	l.Log(context.Background(), lv, fmt.Sprintf(format, args...))
}

func Debugf(format string, v ...any) { logf(slog.LevelDebug, format, v) }
func Infof(format string, v ...any)  { logf(slog.LevelInfo, format, v) }
func Warnf(format string, v ...any)  { logf(slog.LevelWarn, format, v) }
func Errorf(format string, v ...any) { logf(slog.LevelError, format, v) }
