// Package render 渲染解耦层：每个模拟实体可绑定一个只含视觉组件的渲染实体，
// 其变换按帧耗时向模拟实体的权威变换插值，与 Tick 频率和网络抖动无关。
package render

import (
	"netarena/ecs"
	"netarena/logger"
)

// Renderer 渲染实体对其跟随的模拟实体的单向引用
type Renderer struct {
	Target ecs.Entity
}

// Visual 视觉组件（网格/材质由外部创建，这里只记录描述）
type Visual struct {
	Shape string
	Size  float32
	Color uint32
}

// DefaultVisual 与本地玩家相同的方块外观
func DefaultVisual() Visual {
	return Visual{Shape: "quad", Size: 1.2, Color: 0xffff00ff}
}

// Update 将每个渲染实体向其目标插值
// 目标已销毁（代数不匹配）的渲染实体本帧跳过，并返回给调用方清理
func Update(w *ecs.World, transforms *ecs.Store[Transform], renderers *ecs.Store[Renderer], factor float32) []ecs.Entity {
	var dangling []ecs.Entity
	for _, e := range renderers.Entities() {
		r, _ := renderers.Get(e)
		if !w.Alive(r.Target) || renderers.Has(r.Target) {
			logger.Log.Warnf("renderer %s references entity %s that does not exist", e, r.Target)
			dangling = append(dangling, e)
			continue
		}
		target, ok := transforms.Get(r.Target)
		if !ok {
			logger.Log.Warnf("renderer %s target %s has no transform", e, r.Target)
			dangling = append(dangling, e)
			continue
		}
		transforms.Update(e, func(t *Transform) {
			Interpolate(t, target, factor)
		})
	}
	return dangling
}
