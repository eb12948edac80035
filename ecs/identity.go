package ecs

import (
	"cmp"
	"slices"
)

// IdentityMap 网络标识与本地实体的双向映射（ClientMap）
type IdentityMap[K cmp.Ordered] struct {
	byKey    map[K]Entity
	byEntity map[Entity]K
}

func NewIdentityMap[K cmp.Ordered]() *IdentityMap[K] {
	return &IdentityMap[K]{
		byKey:    make(map[K]Entity),
		byEntity: make(map[Entity]K),
	}
}

// Insert 建立映射；键或实体已存在时返回 false
func (m *IdentityMap[K]) Insert(k K, e Entity) bool {
	if _, ok := m.byKey[k]; ok {
		return false
	}
	if _, ok := m.byEntity[e]; ok {
		return false
	}
	m.byKey[k] = e
	m.byEntity[e] = k
	return true
}

func (m *IdentityMap[K]) EntityOf(k K) (Entity, bool) {
	e, ok := m.byKey[k]
	return e, ok
}

func (m *IdentityMap[K]) KeyOf(e Entity) (K, bool) {
	k, ok := m.byEntity[e]
	return k, ok
}

func (m *IdentityMap[K]) Contains(k K) bool {
	_, ok := m.byKey[k]
	return ok
}

func (m *IdentityMap[K]) RemoveKey(k K) (Entity, bool) {
	e, ok := m.byKey[k]
	if !ok {
		return Nil, false
	}
	delete(m.byKey, k)
	delete(m.byEntity, e)
	return e, true
}

func (m *IdentityMap[K]) RemoveEntity(e Entity) (K, bool) {
	k, ok := m.byEntity[e]
	if !ok {
		return k, false
	}
	delete(m.byKey, k)
	delete(m.byEntity, e)
	return k, true
}

// Keys 全部键（有序）
func (m *IdentityMap[K]) Keys() []K {
	keys := make([]K, 0, len(m.byKey))
	for k := range m.byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (m *IdentityMap[K]) Len() int { return len(m.byKey) }
