package broadcast

import (
	"net/http"
	"time"

	"arena/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS 升级连接并持续推送 sub 中的消息，直到连接断开或 sub 被关闭。
// sub 由调用方在升级前创建，保证初始状态先于增量消息送达。
func ServeWS(h *Hub, sub *Subscriber, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Unsubscribe(sub)
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer func() {
		h.Unsubscribe(sub)
		_ = conn.Close()
	}()

	go readPump(conn, func() { h.Unsubscribe(sub) })

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只负责处理 pong 与关闭帧；客户端消息被忽略。
func readPump(conn *websocket.Conn, onClose func()) {
	defer onClose()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
