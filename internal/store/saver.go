package store

import (
	"context"
	"sync"
	"time"

	"arena/internal/logger"
)

const DefaultDebounce = time.Second

// Saver 合并短时间内的多次保存请求：第一次请求后等待 window 再落盘，
// 期间到来的请求只替换待写快照。写失败的快照在没有更新快照时重新排队。
type Saver struct {
	backend Backend
	window  time.Duration
	nowFn   func() time.Time

	mu      sync.Mutex
	pending *Document
	timer   *time.Timer

	writeMu sync.Mutex
	writes  int
}

func NewSaver(backend Backend, window time.Duration) *Saver {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Saver{backend: backend, window: window, nowFn: time.Now}
}

// Save 登记待写快照，调用方交出 doc 的所有权。
func (s *Saver) Save(doc *Document) {
	if doc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = doc
	if s.timer == nil {
		s.timer = time.AfterFunc(s.window, s.fire)
	}
}

func (s *Saver) fire() {
	if err := s.Flush(context.Background()); err != nil {
		logger.Errorf("保存快照失败 (%s): %v", s.backend.Name(), err)
	}
}

// Flush 立即写出待写快照，没有待写内容时直接返回。
func (s *Saver) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	doc := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	if doc == nil {
		return nil
	}

	doc.LastUpdate = s.nowFn().UTC().Format(time.RFC3339Nano)
	if err := s.backend.Save(ctx, doc); err != nil {
		s.mu.Lock()
		if s.pending == nil {
			s.pending = doc
			if s.timer == nil {
				s.timer = time.AfterFunc(s.window, s.fire)
			}
		}
		s.mu.Unlock()
		return err
	}
	s.writes++
	logger.Debugf("快照已保存 (%s) traders=%d chart=%d", s.backend.Name(), len(doc.AITraders), len(doc.ChartData))
	return nil
}

// Pending 是否有尚未写出的快照。
func (s *Saver) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Writes 返回成功写出的次数。
func (s *Saver) Writes() int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writes
}

func (s *Saver) Load(ctx context.Context) (*Document, error) {
	return s.backend.Load(ctx)
}

// Close 先强制写出，再关闭后端。
func (s *Saver) Close(ctx context.Context) error {
	flushErr := s.Flush(ctx)
	closeErr := s.backend.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
