package ecs

import "sort"

// Store 一种组件类型的表，键为实体句柄
type Store[T any] struct {
	w    *World
	data map[Entity]T
}

// NewStore 创建组件表并注册到 World，实体销毁时自动移除组件
func NewStore[T any](w *World) *Store[T] {
	s := &Store[T]{w: w, data: make(map[Entity]T)}
	w.register(s)
	return s
}

// Set 写入组件；实体不存活时返回 false
func (s *Store[T]) Set(e Entity, v T) bool {
	if !s.w.Alive(e) {
		return false
	}
	s.data[e] = v
	return true
}

func (s *Store[T]) Get(e Entity) (T, bool) {
	v, ok := s.data[e]
	return v, ok
}

func (s *Store[T]) Has(e Entity) bool {
	_, ok := s.data[e]
	return ok
}

// Update 原地修改组件
func (s *Store[T]) Update(e Entity, fn func(*T)) bool {
	v, ok := s.data[e]
	if !ok {
		return false
	}
	fn(&v)
	s.data[e] = v
	return true
}

func (s *Store[T]) Remove(e Entity) {
	delete(s.data, e)
}

// Each 按句柄顺序遍历；fn 中的修改会写回
func (s *Store[T]) Each(fn func(Entity, *T)) {
	for _, e := range s.Entities() {
		v := s.data[e]
		fn(e, &v)
		s.data[e] = v
	}
}

// Entities 拥有该组件的实体（有序）
func (s *Store[T]) Entities() []Entity {
	out := make([]Entity, 0, len(s.data))
	for e := range s.data {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Store[T]) Len() int { return len(s.data) }
