package server

import (
	"net/http"

	"netarena/logger"
	"netarena/protocol"
	"netarena/transport"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：/ws?room=room-1
// ClientID 由服务端在连接时分配，并通过控制通道的 Welcome 告知客户端
func (m *RoomManager) HandleWS(w http.ResponseWriter, r *http.Request) {
	room, ok := m.roomFromQuery(r)
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warnf("upgrade error: %v", err)
		return
	}

	id := protocol.NewClientID()
	logger.Log.Debugf("room %s: accepted websocket %s as %s", room.ID, r.RemoteAddr, id)
	transport.ServeWS(room.Transport(), ws, id)
}
