// Package client 客户端同步：把服务端快照与控制事件对齐到本地实体，
// 并通过渲染实体平滑显示。所有状态只在帧循环所在的 goroutine 中读写。
package client

import (
	"context"
	"time"

	"netarena/ecs"
	"netarena/logger"
	"netarena/protocol"
	"netarena/render"
	"netarena/transport"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Transport 客户端依赖的传输层，*transport.Client 即满足
type Transport interface {
	Update(now time.Time) error
	SendMessage(ch transport.ChannelID, payload []byte) error
	ReceiveMessage(ch transport.ChannelID) ([]byte, bool)
	SendPackets(now time.Time) error
}

// Replicated 模拟实体上的服务端状态副本
type Replicated struct {
	ClientID protocol.ClientID
	State    protocol.PlayerState
}

type Client struct {
	cfg       Config
	transport Transport
	input     InputSource

	world      *ecs.World
	transforms *ecs.Store[render.Transform]
	replicated *ecs.Store[Replicated]
	renderers  *ecs.Store[render.Renderer]
	visuals    *ecs.Store[render.Visual]
	players    *ecs.IdentityMap[protocol.ClientID]
	// 模拟实体 → 绑定的渲染实体（每个模拟实体至多一个）
	bound *ecs.IdentityMap[ecs.Entity]

	self     protocol.ClientID
	lastTick uint64
	metrics  *Metrics
}

// New 创建客户端；input 为 nil 时不发送输入
func New(cfg Config, t Transport, input InputSource) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate client config failed")
	}
	w := ecs.NewWorld()
	return &Client{
		cfg:        cfg,
		transport:  t,
		input:      input,
		world:      w,
		transforms: ecs.NewStore[render.Transform](w),
		replicated: ecs.NewStore[Replicated](w),
		renderers:  ecs.NewStore[render.Renderer](w),
		visuals:    ecs.NewStore[render.Visual](w),
		players:    ecs.NewIdentityMap[protocol.ClientID](),
		bound:      ecs.NewIdentityMap[ecs.Entity](),
		metrics:    &Metrics{},
	}, nil
}

// Frame 一帧：收包 → 发送输入 → 控制事件 → 快照 → 渲染插值 → 清理 → 发包
func (c *Client) Frame(now time.Time, dt time.Duration) error {
	c.metrics.inc(&c.metrics.Frames)
	updErr := c.transport.Update(now)
	if updErr == nil {
		c.sendInput(now)
	}
	c.drainControl()
	c.drainSnapshots()

	dangling := render.Update(c.world, c.transforms, c.renderers, render.Factor(dt, c.cfg.InterpolationRate))
	for _, e := range dangling {
		c.bound.RemoveEntity(e)
		c.world.Despawn(e)
		c.metrics.inc(&c.metrics.DanglingRenderers)
	}

	if updErr != nil {
		return updErr
	}
	return c.transport.SendPackets(now)
}

func (c *Client) sendInput(now time.Time) {
	if c.input == nil {
		return
	}
	b, err := protocol.EncodeClientInput(protocol.NewClientInput(c.input.Direction(now)))
	if err != nil {
		logger.Log.Errorf("encode input: %v", err)
		return
	}
	if err := c.transport.SendMessage(transport.ChannelInput, b); err != nil {
		logger.Log.Debugf("send input: %v", err)
	}
}

func (c *Client) drainControl() {
	for {
		b, ok := c.transport.ReceiveMessage(transport.ChannelControl)
		if !ok {
			return
		}
		msg, err := protocol.DecodeServerMessage(b)
		if err != nil {
			c.metrics.inc(&c.metrics.DecodeErrors)
			logger.Log.Warnf("dropping control message: %v", err)
			continue
		}
		c.ApplyControl(msg)
	}
}

func (c *Client) drainSnapshots() {
	for {
		b, ok := c.transport.ReceiveMessage(transport.ChannelSnapshot)
		if !ok {
			return
		}
		snap, err := protocol.DecodeSnapshot(b)
		if err != nil {
			c.metrics.inc(&c.metrics.DecodeErrors)
			logger.Log.Warnf("dropping snapshot: %v", err)
			continue
		}
		c.ApplySnapshot(snap)
	}
}

// Run 以固定帧率循环，直到 ctx 结束（返回 nil）或连接断开
func (c *Client) Run(ctx context.Context) error {
	interval := c.cfg.FrameInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if err := c.Frame(now, dt); err != nil {
				return errors.Wrap(err, "client frame failed")
			}
		}
	}
}

func (c *Client) Self() protocol.ClientID { return c.self }

func (c *Client) Metrics() *Metrics { return c.metrics }

// LastTick 已应用的最新服务端 Tick
func (c *Client) LastTick() uint64 { return c.lastTick }

// KnownClients 本地已有实体的玩家（有序）
func (c *Client) KnownClients() []protocol.ClientID { return c.players.Keys() }

// EntityCount 本地存活实体数（模拟实体 + 渲染实体）
func (c *Client) EntityCount() int { return c.world.Len() }

// State 某玩家最近一次收到的权威状态
func (c *Client) State(id protocol.ClientID) (protocol.PlayerState, bool) {
	e, ok := c.players.EntityOf(id)
	if !ok {
		return protocol.PlayerState{}, false
	}
	r, ok := c.replicated.Get(e)
	return r.State, ok
}

// Position 模拟实体的位置（即最近一次权威位置）
func (c *Client) Position(id protocol.ClientID) (mgl32.Vec3, bool) {
	e, ok := c.players.EntityOf(id)
	if !ok {
		return mgl32.Vec3{}, false
	}
	t, ok := c.transforms.Get(e)
	return t.Translation, ok
}

// RendererTransform 绑定到某玩家的渲染实体当前的变换
func (c *Client) RendererTransform(id protocol.ClientID) (render.Transform, bool) {
	e, ok := c.players.EntityOf(id)
	if !ok {
		return render.Transform{}, false
	}
	r, ok := c.bound.EntityOf(e)
	if !ok {
		return render.Transform{}, false
	}
	return c.transforms.Get(r)
}
