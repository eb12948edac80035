package protocol

import "github.com/google/uuid"

// ClientID 传输层在连接建立时分配的唯一标识，连接存续期间稳定
type ClientID string

// NewClientID 生成新的 ClientID（UUIDv4）
func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}

func (id ClientID) String() string { return string(id) }

// NetworkID 服务端分配的复制实体句柄，作为快照间 diff 的键
type NetworkID uint32

// NetworkIDAllocator 分配 NetworkID；释放的 ID 按 FIFO 复用，
// 保证同一 ID 在确认销毁前不会被再次分配
type NetworkIDAllocator struct {
	next NetworkID
	free []NetworkID
	live map[NetworkID]struct{}
}

func NewNetworkIDAllocator() *NetworkIDAllocator {
	return &NetworkIDAllocator{
		next: 1,
		live: make(map[NetworkID]struct{}),
	}
}

// Allocate 返回一个当前未被占用的 ID
func (a *NetworkIDAllocator) Allocate() NetworkID {
	var id NetworkID
	if len(a.free) > 0 {
		id = a.free[0]
		a.free = a.free[1:]
	} else {
		id = a.next
		a.next++
	}
	a.live[id] = struct{}{}
	return id
}

// Release 释放 ID；重复释放或未分配的 ID 返回 false
func (a *NetworkIDAllocator) Release(id NetworkID) bool {
	if _, ok := a.live[id]; !ok {
		return false
	}
	delete(a.live, id)
	a.free = append(a.free, id)
	return true
}

// Live 当前占用的 ID 数量
func (a *NetworkIDAllocator) Live() int { return len(a.live) }
