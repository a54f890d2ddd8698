package broadcast

import (
	"encoding/json"
	"sync"

	"arena/internal/logger"
)

const defaultBuffer = 256

// Subscriber 按发布顺序接收已编码的消息。缓冲写满的订阅者会被断开，
// 而不是悄悄丢消息，C 关闭即表示被移除。
type Subscriber struct {
	C    <-chan []byte
	ch   chan []byte
	once sync.Once
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub 把事件扇出给所有订阅者。Publish 不阻塞。
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	buffer int
	seq    uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[*Subscriber]struct{}), buffer: buffer}
}

// Subscribe 注册订阅者，initial 中的事件会先于之后发布的任何事件送达。
func (h *Hub) Subscribe(initial ...Event) *Subscriber {
	ch := make(chan []byte, h.buffer+len(initial))
	s := &Subscriber{C: ch, ch: ch}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, evt := range initial {
		if data, ok := h.encodeLocked(evt); ok {
			ch <- data
		}
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		s.close()
	}
}

func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.encodeLocked(evt)
	if !ok {
		return
	}
	for s := range h.subs {
		select {
		case s.ch <- data:
		default:
			logger.Warnf("broadcast: subscriber too slow, disconnecting (type=%s)", evt.Type)
			delete(h.subs, s)
			s.close()
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close 断开全部订阅者。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		s.close()
	}
}

func (h *Hub) encodeLocked(evt Event) ([]byte, bool) {
	h.seq++
	evt.Seq = h.seq
	data, err := json.Marshal(evt)
	if err != nil {
		logger.Errorf("broadcast: encode %s failed: %v", evt.Type, err)
		return nil, false
	}
	return data, true
}
