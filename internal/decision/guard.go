package decision

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"arena/internal/logger"
	"arena/internal/pkg/circuit"

	"golang.org/x/time/rate"
)

const DefaultTimeout = 30 * time.Second

type GuardOptions struct {
	Timeout time.Duration
	Breaker *circuit.Breaker
	Limiter *rate.Limiter
}

// Guarded 包装 Provider，保证 Decide 不 panic、不超过超时时间：
// 任何失败都折算成安全 HOLD。唯一返回的错误是调用方 ctx 被取消（引擎停止或重置），
// 此时本轮结果应被丢弃，也不计入熔断。
type Guarded struct {
	inner Provider
	opts  GuardOptions
}

func Guard(inner Provider, opts GuardOptions) *Guarded {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Guarded{inner: inner, opts: opts}
}

func (g *Guarded) ID() string {
	return g.inner.ID()
}

type guardResult struct {
	decision TradingDecision
	err      error
}

func (g *Guarded) Decide(ctx context.Context, tc TradingContext) (TradingDecision, error) {
	id := g.inner.ID()
	if b := g.opts.Breaker; b != nil {
		if err := b.Acquire(); err != nil {
			return SafeHold(fmt.Sprintf("Provider %s is cooling down after repeated failures (%v)", id, err)), nil
		}
	}
	if l := g.opts.Limiter; l != nil {
		if err := l.Wait(ctx); err != nil {
			g.release()
			if ctx.Err() != nil {
				return TradingDecision{}, ctx.Err()
			}
			return SafeHold(fmt.Sprintf("Rate limit wait for %s aborted: %v", id, err)), nil
		}
	}

	cctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()
	ch := make(chan guardResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("provider %s panic: %v\n%s", id, r, debug.Stack())
				ch <- guardResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		d, err := g.inner.Decide(cctx, tc)
		ch <- guardResult{decision: d, err: err}
	}()

	select {
	case <-cctx.Done():
		if ctx.Err() != nil {
			g.release()
			return TradingDecision{}, ctx.Err()
		}
		g.recordFailure()
		return SafeHold(fmt.Sprintf("Error communicating with %s: %v", id, cctx.Err())), nil
	case res := <-ch:
		if res.err != nil {
			if ctx.Err() != nil {
				g.release()
				return TradingDecision{}, ctx.Err()
			}
			g.recordFailure()
			logger.Warnf("provider %s failed for %s: %v", id, tc.Agent, res.err)
			return SafeHold(fmt.Sprintf("Error communicating with %s: %v", id, res.err)), nil
		}
		if g.opts.Breaker != nil {
			g.opts.Breaker.Report(true)
		}
		return res.decision, nil
	}
}

func (g *Guarded) recordFailure() {
	if g.opts.Breaker != nil {
		g.opts.Breaker.Report(false)
	}
}

// release 归还未真正发起的调用名额，不计入失败。
func (g *Guarded) release() {
	if g.opts.Breaker != nil {
		g.opts.Breaker.Abandon()
	}
}
