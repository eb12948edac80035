package server

import (
	"context"
	"net/http"
	"sort"

	"netarena/transport"

	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
)

// DefaultRoom 未指定房间时使用
const DefaultRoom = "room-1"

// RoomManager 管理多个房间的生命周期，每个房间拥有独立的传输层
type RoomManager struct {
	ctx  context.Context
	cfg  Config
	tcfg transport.ConnectionConfig

	mu    deadlock.RWMutex
	rooms map[string]*Room
}

// NewRoomManager 房间的 Tick 循环随 ctx 结束
func NewRoomManager(ctx context.Context, cfg Config, tcfg transport.ConnectionConfig) *RoomManager {
	return &RoomManager{
		ctx:   ctx,
		cfg:   cfg,
		tcfg:  tcfg,
		rooms: make(map[string]*Room),
	}
}

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick
func (m *RoomManager) GetOrCreateRoom(id string) (*Room, error) {
	if id == "" {
		id = DefaultRoom
	}
	m.mu.RLock()
	r, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return r, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[id]; ok {
		return r, nil
	}
	r, err := NewRoom(id, m.cfg, m.tcfg)
	if err != nil {
		return nil, errors.Wrapf(err, "create room %s failed", id)
	}
	m.rooms[id] = r
	r.StartTicker(m.ctx)
	return r, nil
}

// Room 查询已存在的房间
func (m *RoomManager) Room(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// roomFromQuery 按 ?room= 查找已存在的房间，缺省为 DefaultRoom
// HTTP 接口不创建房间，房间只在启动时由 GetOrCreateRoom 预创建
func (m *RoomManager) roomFromQuery(r *http.Request) (*Room, bool) {
	id := r.URL.Query().Get("room")
	if id == "" {
		id = DefaultRoom
	}
	return m.Room(id)
}

// RoomIDs 所有房间（有序）
func (m *RoomManager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
