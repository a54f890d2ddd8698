// Package circuit 为模型调用提供按连续失败计数的熔断器。
package circuit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"CLOSED", "OPEN", "HALF-OPEN"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

var ErrOpen = errors.New("circuit open")

type Config struct {
	Name      string
	Threshold int
	Cooldown  time.Duration
	// OnChange 在锁外异步调用。
	OnChange func(name string, from, to State)
	Now      func() time.Time
}

// Breaker 连续失败 Threshold 次后打开；Cooldown 过后半开，只放一个探测请求，
// 探测成功关闭，失败重新计时。
type Breaker struct {
	cfg Config

	mu        sync.Mutex
	state     State
	streak    int
	openedAt  time.Time
	probeBusy bool
}

func New(cfg Config) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg}
}

func (b *Breaker) Name() string { return b.cfg.Name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Acquire 返回 nil 表示可以发起调用，调用结束后必须 Report。
// 熔断中返回包装了 ErrOpen 的错误，附带剩余冷却时间。
func (b *Breaker) Acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		left := b.cfg.Cooldown - b.cfg.Now().Sub(b.openedAt)
		if left > 0 {
			return fmt.Errorf("%w: %s retry in %s", ErrOpen, b.cfg.Name, left.Round(time.Second))
		}
		b.moveTo(StateHalfOpen)
		b.probeBusy = true
		return nil
	case StateHalfOpen:
		if b.probeBusy {
			return fmt.Errorf("%w: %s probe in flight", ErrOpen, b.cfg.Name)
		}
		b.probeBusy = true
	}
	return nil
}

func (b *Breaker) Report(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeBusy = false
	if ok {
		b.streak = 0
		if b.state != StateClosed {
			b.moveTo(StateClosed)
		}
		return
	}
	b.streak++
	if b.state == StateHalfOpen || (b.state == StateClosed && b.streak >= b.cfg.Threshold) {
		b.openedAt = b.cfg.Now()
		b.moveTo(StateOpen)
	}
}

func (b *Breaker) moveTo(to State) {
	from := b.state
	b.state = to
	if cb := b.cfg.OnChange; cb != nil && from != to {
		go cb(b.cfg.Name, from, to)
	}
}

// Abandon 放弃已 Acquire 但没有发出的调用，不影响计数。
func (b *Breaker) Abandon() {
	b.mu.Lock()
	b.probeBusy = false
	b.mu.Unlock()
}
