package protocol

import (
	"github.com/go-gl/mathgl/mgl32"
)

// PlayerState 服务端权威的玩家状态，客户端只持有快照中的只读副本
type PlayerState struct {
	NetworkID NetworkID  `msgpack:"nid"`
	InputDir  mgl32.Vec2 `msgpack:"input_dir"`
	Position  mgl32.Vec3 `msgpack:"position"`
	Angle     float32    `msgpack:"angle"` // 朝向（弧度），取最后一次非零输入方向
}

// Snapshot 某一 Tick 的完整权威状态（全量，不做增量编码）
type Snapshot struct {
	Tick    uint64                   `msgpack:"tick"`
	Players map[ClientID]PlayerState `msgpack:"players"`
}

// Clients 返回快照中的全部 ClientID
func (s Snapshot) Clients() []ClientID {
	ids := make([]ClientID, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	return ids
}

// ServerMessageKind 控制通道消息类型
type ServerMessageKind uint8

const (
	KindWelcome ServerMessageKind = iota + 1
	KindPlayerConnected
	KindPlayerDisconnected
)

func (k ServerMessageKind) String() string {
	switch k {
	case KindWelcome:
		return "welcome"
	case KindPlayerConnected:
		return "player_connected"
	case KindPlayerDisconnected:
		return "player_disconnected"
	default:
		return "unknown"
	}
}

// ServerMessage 控制通道（可靠有序）上的事件
type ServerMessage struct {
	Kind     ServerMessageKind `msgpack:"kind"`
	Tick     uint64            `msgpack:"tick"`
	ClientID ClientID          `msgpack:"client_id"`
	State    *PlayerState      `msgpack:"state,omitempty"`
}

func Welcome(tick uint64, id ClientID) ServerMessage {
	return ServerMessage{Kind: KindWelcome, Tick: tick, ClientID: id}
}

func PlayerConnected(tick uint64, id ClientID, state PlayerState) ServerMessage {
	return ServerMessage{Kind: KindPlayerConnected, Tick: tick, ClientID: id, State: &state}
}

func PlayerDisconnected(tick uint64, id ClientID) ServerMessage {
	return ServerMessage{Kind: KindPlayerDisconnected, Tick: tick, ClientID: id}
}

// ClientInput 客户端每帧发送的输入方向（模长 ≤ 1）
type ClientInput struct {
	Direction mgl32.Vec2 `msgpack:"dir"`
}

// NewClientInput 构造输入，模长超过 1 时归一化
func NewClientInput(dir mgl32.Vec2) ClientInput {
	if dir.Len() > 1 {
		dir = dir.Normalize()
	}
	return ClientInput{Direction: dir}
}
