package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"arena/internal/logger"

	"golang.org/x/sync/errgroup"
)

// Mode 决定两次执行之间的间隔如何计算。
type Mode int

const (
	// FixedDelay 上一次执行结束后再等待 Interval。
	FixedDelay Mode = iota
	// FixedRate 按固定节拍触发，执行过慢时跳过错过的节拍。
	FixedRate
)

type Task struct {
	Name           string
	Interval       time.Duration
	Mode           Mode
	RunImmediately bool
	Run            func(ctx context.Context)
}

// Scheduler 并发驱动多个周期任务，ctx 取消后等待所有任务退出。
type Scheduler struct {
	tasks []Task
}

func New(tasks ...Task) *Scheduler {
	return &Scheduler{tasks: tasks}
}

func (s *Scheduler) Run(ctx context.Context) error {
	for _, t := range s.tasks {
		if t.Run == nil {
			return fmt.Errorf("scheduler: task %s has no Run", t.Name)
		}
		if t.Interval <= 0 {
			return fmt.Errorf("scheduler: task %s has invalid interval %s", t.Name, t.Interval)
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		task := t
		g.Go(func() error {
			loop(gctx, task)
			return nil
		})
	}
	return g.Wait()
}

func loop(ctx context.Context, t Task) {
	logger.Debugf("scheduler: task %s started interval=%s", t.Name, t.Interval)
	defer logger.Debugf("scheduler: task %s stopped", t.Name)
	if t.RunImmediately {
		if ctx.Err() != nil {
			return
		}
		runSafely(ctx, t)
	}
	if t.Mode == FixedRate {
		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runSafely(ctx, t)
			}
		}
	}
	timer := time.NewTimer(t.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		runSafely(ctx, t)
		timer.Reset(t.Interval)
	}
}

func runSafely(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("scheduler: task %s panic: %v\n%s", t.Name, r, debug.Stack())
		}
	}()
	t.Run(ctx)
}
