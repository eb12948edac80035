package transport

import (
	"context"
	"time"

	"netarena/logger"
	"netarena/protocol"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
)

// WebSocket 设置
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1MB
	sendQueueSize  = 256
)

// wsLink 每个二进制帧承载一个数据报；写操作交给独立的 writePump 协程
type wsLink struct {
	ws     *websocket.Conn
	mu     deadlock.Mutex
	send   chan []byte
	closed bool
}

func newWSLink(ws *websocket.Conn) *wsLink {
	return &wsLink{
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
	}
}

// WritePacket 将数据报压入队列（非阻塞，满则丢弃，避免阻塞 Tick）
func (l *wsLink) WritePacket(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrDisconnected
	}
	select {
	case l.send <- b:
		return nil
	default:
		return ErrLinkSaturated
	}
}

// Close 关闭发送队列，writePump 退出时关闭底层连接
func (l *wsLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.send)
	return nil
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 Ping
func (l *wsLink) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = l.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-l.send:
			_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = l.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := l.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				logger.Log.Debugf("ws write failed: %v", err)
				return
			}
		case <-ticker.C:
			_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.Debugf("ws ping failed: %v", err)
				return
			}
		}
	}
}

// readPump 读取数据报交给 deliver；退出时调用 onClose 通知传输层断开
func (l *wsLink) readPump(deliver func([]byte), onClose func()) {
	defer func() {
		_ = l.Close()
		_ = l.ws.Close()
		onClose()
	}()
	l.ws.SetReadLimit(maxMessageSize)
	_ = l.ws.SetReadDeadline(time.Now().Add(pongWait))
	l.ws.SetPongHandler(func(string) error {
		return l.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, payload, err := l.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Infof("ws read: %v", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		deliver(payload)
	}
}

// ServeWS 将已升级的 WebSocket 连接接入服务端传输层
func ServeWS(srv *Server, ws *websocket.Conn, id protocol.ClientID) {
	link := newWSLink(ws)
	srv.Accept(id, link)
	go link.writePump()
	go link.readPump(
		func(b []byte) { srv.Deliver(id, b) },
		func() { srv.Disconnect(id, "connection closed") },
	)
}

// DialWS 连接服务端，返回客户端传输层
func DialWS(ctx context.Context, url string, cfg ConnectionConfig) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s failed", url)
	}
	link := newWSLink(ws)
	cli, err := NewClient(cfg, link)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	go link.writePump()
	go link.readPump(cli.Deliver, cli.MarkDisconnected)
	return cli, nil
}
