package client

import (
	"sort"

	"netarena/logger"
	"netarena/protocol"
	"netarena/render"
)

// Diff 一次快照对齐的结果
type Diff struct {
	Spawned   []protocol.ClientID
	Updated   []protocol.ClientID
	Despawned []protocol.ClientID
}

func (d Diff) Empty() bool {
	return len(d.Spawned) == 0 && len(d.Updated) == 0 && len(d.Despawned) == 0
}

// ApplySnapshot 将本地实体与快照对齐；旧于已应用 Tick 的快照被丢弃并返回 false
//   - 快照中有、本地没有：生成
//   - 两边都有：覆盖权威字段
//   - 本地有、快照中没有：按 DespawnByAbsence 销毁
func (c *Client) ApplySnapshot(snap protocol.Snapshot) (Diff, bool) {
	if snap.Tick < c.lastTick {
		c.metrics.inc(&c.metrics.SnapshotsStale)
		logger.Log.Debugf("stale snapshot tick %d < %d dropped", snap.Tick, c.lastTick)
		return Diff{}, false
	}
	c.lastTick = snap.Tick

	var d Diff
	for _, id := range c.players.Keys() {
		state, ok := snap.Players[id]
		if ok {
			c.update(id, state)
			d.Updated = append(d.Updated, id)
			continue
		}
		if c.cfg.Strategy == DespawnByAbsence {
			c.despawn(id)
			d.Despawned = append(d.Despawned, id)
		}
	}
	ids := snap.Clients()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if c.players.Contains(id) {
			continue
		}
		c.spawn(id, snap.Players[id])
		d.Spawned = append(d.Spawned, id)
	}
	c.metrics.inc(&c.metrics.SnapshotsApplied)
	return d, true
}

// ApplyControl 处理控制通道事件，两种策略都响应连接与断开
func (c *Client) ApplyControl(msg protocol.ServerMessage) {
	c.metrics.inc(&c.metrics.ControlEvents)
	// 重传晚到的连接事件比已应用的快照旧，快照已包含该玩家的更新状态
	stale := msg.Tick < c.lastTick
	if !stale {
		c.lastTick = msg.Tick
	}
	switch msg.Kind {
	case protocol.KindWelcome:
		c.self = msg.ClientID
		logger.Log.Infof("joined as %s", msg.ClientID)
	case protocol.KindPlayerConnected:
		if stale || msg.State == nil {
			return
		}
		if c.players.Contains(msg.ClientID) {
			c.update(msg.ClientID, *msg.State)
			return
		}
		c.spawn(msg.ClientID, *msg.State)
	case protocol.KindPlayerDisconnected:
		if !c.players.Contains(msg.ClientID) {
			return
		}
		c.despawn(msg.ClientID)
	}
}

func targetTransform(s protocol.PlayerState) render.Transform {
	t := render.NewTransform(s.Position)
	t.Rotation = render.RotationZ(s.Angle)
	return t
}

// spawn 模拟实体 + 跟随它的渲染实体，渲染实体从目标位置开始
func (c *Client) spawn(id protocol.ClientID, s protocol.PlayerState) {
	target := targetTransform(s)

	e := c.world.Spawn()
	c.transforms.Set(e, target)
	c.replicated.Set(e, Replicated{ClientID: id, State: s})
	c.players.Insert(id, e)

	r := c.world.Spawn()
	c.transforms.Set(r, target)
	c.renderers.Set(r, render.Renderer{Target: e})
	c.visuals.Set(r, render.DefaultVisual())
	c.bound.Insert(e, r)

	c.metrics.inc(&c.metrics.Spawns)
	logger.Log.Debugf("spawned %s as %s (renderer %s)", id, e, r)
}

// update 只覆盖权威字段，渲染实体的变换由插值推进
func (c *Client) update(id protocol.ClientID, s protocol.PlayerState) {
	e, _ := c.players.EntityOf(id)
	c.replicated.Set(e, Replicated{ClientID: id, State: s})
	c.transforms.Update(e, func(t *render.Transform) {
		t.Translation = s.Position
		t.Rotation = render.RotationZ(s.Angle)
	})
}

func (c *Client) despawn(id protocol.ClientID) {
	e, ok := c.players.RemoveKey(id)
	if !ok {
		return
	}
	if r, ok := c.bound.RemoveKey(e); ok {
		c.world.Despawn(r)
	}
	c.world.Despawn(e)
	c.metrics.inc(&c.metrics.Despawns)
	logger.Log.Debugf("despawned %s", id)
}
