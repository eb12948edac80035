// Package ecs 提供显式的实体竞技场：带代数校验的实体句柄与按类型存储的组件表。
//
// Entity 为 64 位值类型，格式（从高位到低位）：
//
//	[ Generation (32) | Index (32) ]
//
// 槽位被销毁后代数递增，旧句柄因此失效，可以安全地检测悬空引用。
package ecs

import "fmt"

// Entity 实体句柄
type Entity uint64

// Nil 零值句柄，永远不会存活
const Nil Entity = 0

const (
	bitsIndex = 32
	maskIndex = (1 << bitsIndex) - 1
)

func packEntity(gen, index uint32) Entity {
	return Entity(uint64(gen)<<bitsIndex | uint64(index))
}

// Index 槽位下标
func (e Entity) Index() uint32 { return uint32(e & maskIndex) }

// Generation 槽位代数
func (e Entity) Generation() uint32 { return uint32(e >> bitsIndex) }

func (e Entity) IsNil() bool { return e == Nil }

func (e Entity) String() string {
	if e.IsNil() {
		return "<nil>"
	}
	return fmt.Sprintf("%dv%d", e.Index(), e.Generation())
}

// remover 由组件表实现，实体销毁时清理对应组件
type remover interface {
	Remove(e Entity)
}

// World 实体竞技场；非并发安全，由单个 Tick/帧循环独占
type World struct {
	gens   []uint32
	alive  []bool
	free   []uint32
	stores []remover
	live   int
}

func NewWorld() *World {
	return &World{}
}

// Spawn 分配新实体，优先复用已释放的槽位
func (w *World) Spawn() Entity {
	var idx uint32
	if n := len(w.free); n > 0 {
		idx = w.free[n-1]
		w.free = w.free[:n-1]
	} else {
		idx = uint32(len(w.gens))
		w.gens = append(w.gens, 1)
		w.alive = append(w.alive, false)
	}
	w.alive[idx] = true
	w.live++
	return packEntity(w.gens[idx], idx)
}

// Alive 句柄是否指向存活的实体（代数必须一致）
func (w *World) Alive(e Entity) bool {
	idx := e.Index()
	if e.IsNil() || int(idx) >= len(w.gens) {
		return false
	}
	return w.alive[idx] && w.gens[idx] == e.Generation()
}

// Despawn 销毁实体并从所有组件表中移除；过期句柄返回 false
func (w *World) Despawn(e Entity) bool {
	if !w.Alive(e) {
		return false
	}
	for _, s := range w.stores {
		s.Remove(e)
	}
	idx := e.Index()
	w.alive[idx] = false
	w.gens[idx]++
	if w.gens[idx] == 0 {
		w.gens[idx] = 1
	}
	w.free = append(w.free, idx)
	w.live--
	return true
}

// Len 存活实体数
func (w *World) Len() int { return w.live }

func (w *World) register(s remover) {
	w.stores = append(w.stores, s)
}
