package server

import (
	"math/rand"
	"sync/atomic"
	"time"

	"netarena/ecs"
	"netarena/logger"
	"netarena/protocol"
	"netarena/transport"

	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
)

type outboundKind int

const (
	toClient outboundKind = iota
	toAll
	toAllExcept
)

// outbound 本 Tick 待发送的消息，在 Tick 末尾按入队顺序交给传输层
type outbound struct {
	kind    outboundKind
	client  protocol.ClientID
	channel transport.ChannelID
	payload []byte
}

// Room 房间世界：权威状态维护在内存，单线程 Tick 推进
// 所有状态只在 Tick 所在的 goroutine 中读写；cfg / tickSeq / metrics 可被管理接口并发读取
type Room struct {
	ID string

	transport *transport.Server
	world     *ecs.World
	players   *ecs.Store[protocol.PlayerState]
	clients   *ecs.IdentityMap[protocol.ClientID]
	netIDs    *protocol.NetworkIDAllocator
	outbox    []outbound
	rng       *rand.Rand

	cfg     atomic.Pointer[Config]
	cfgMu   deadlock.Mutex
	tickSeq atomic.Uint64
	metrics *RoomMetrics

	tickerStarted atomic.Bool
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string, cfg Config, tcfg transport.ConnectionConfig) (*Room, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate room config failed")
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ts, err := transport.NewServer(tcfg,
		transport.WithMaxClients(cfg.MaxClients),
		transport.WithRandSeed(seed),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create transport server failed")
	}
	w := ecs.NewWorld()
	r := &Room{
		ID:        id,
		transport: ts,
		world:     w,
		players:   ecs.NewStore[protocol.PlayerState](w),
		clients:   ecs.NewIdentityMap[protocol.ClientID](),
		netIDs:    protocol.NewNetworkIDAllocator(),
		rng:       rand.New(rand.NewSource(seed)),
		metrics:   &RoomMetrics{},
	}
	r.cfg.Store(&cfg)
	return r, nil
}

func (r *Room) Transport() *transport.Server { return r.transport }

func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// TickSeq 已执行的 Tick 数
func (r *Room) TickSeq() uint64 { return r.tickSeq.Load() }

func (r *Room) config() Config { return *r.cfg.Load() }

// Config 当前配置副本
func (r *Room) Config() Config { return r.config() }

// UpdateConfig 热更新，下一次 Tick 开始时生效
func (r *Room) UpdateConfig(p ConfigPatch) (Config, error) {
	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	next, err := p.apply(r.config())
	if err != nil {
		return r.config(), err
	}
	r.cfg.Store(&next)
	return next, nil
}

// Tick 核心循环：处理连接事件 → 处理输入 → 更新世界 → 广播结果
func (r *Room) Tick(now time.Time, dt time.Duration) {
	start := time.Now()
	r.tickSeq.Add(1)
	cfg := r.config()
	r.transport.SetDropProbability(cfg.SimulateDropProb)

	r.transport.Update(now)
	r.ProcessEvents()
	r.ProcessInputs()
	r.UpdateWorld(dt)
	r.Broadcast()
	r.flush(now)

	r.metrics.AddTick(time.Since(start).Nanoseconds())
}

// ProcessEvents 处理传输层的连接/断开事件
func (r *Room) ProcessEvents() {
	for _, ev := range r.transport.Events() {
		switch ev.Kind {
		case transport.ClientConnected:
			r.onConnected(ev.ClientID)
		case transport.ClientDisconnected:
			r.onDisconnected(ev.ClientID, ev.Reason)
		}
	}
}

func (r *Room) onConnected(id protocol.ClientID) {
	if r.clients.Contains(id) {
		logger.Log.Warnf("room %s: client %s connected twice", r.ID, id)
		return
	}
	e := r.world.Spawn()
	state := r.spawnState()
	r.players.Set(e, state)
	r.clients.Insert(id, e)
	r.metrics.IncConnects()
	logger.Log.Infof("room %s: player %s connected (network id %d)", r.ID, id, state.NetworkID)

	tick := r.TickSeq()
	r.queueControl(toClient, id, protocol.Welcome(tick, id))

	// 只发给新玩家：当前完整快照
	snap, err := protocol.EncodeSnapshot(r.Snapshot())
	if err != nil {
		logger.Log.Errorf("room %s: %v", r.ID, err)
	} else {
		r.outbox = append(r.outbox, outbound{kind: toClient, client: id, channel: transport.ChannelSnapshot, payload: snap})
	}

	// 通知其他玩家，无需等待下一次周期快照
	r.queueControl(toAllExcept, id, protocol.PlayerConnected(tick, id, state))
}

func (r *Room) onDisconnected(id protocol.ClientID, reason string) {
	e, ok := r.clients.RemoveKey(id)
	if !ok {
		logger.Log.Warnf("room %s: disconnect for unknown client %s", r.ID, id)
		return
	}
	if state, ok := r.players.Get(e); ok {
		r.netIDs.Release(state.NetworkID)
	}
	r.world.Despawn(e)
	r.metrics.IncDisconnects()
	logger.Log.Infof("room %s: player %s disconnected: %s", r.ID, id, reason)

	r.queueControl(toAll, "", protocol.PlayerDisconnected(r.TickSeq(), id))
}

func (r *Room) queueControl(kind outboundKind, id protocol.ClientID, msg protocol.ServerMessage) {
	b, err := protocol.EncodeServerMessage(msg)
	if err != nil {
		logger.Log.Errorf("room %s: %v", r.ID, err)
		return
	}
	r.outbox = append(r.outbox, outbound{kind: kind, client: id, channel: transport.ChannelControl, payload: b})
}

// ProcessInputs 非阻塞 drain 每个连接的输入；同一 Tick 内只应用最后一个
func (r *Room) ProcessInputs() {
	for _, id := range r.transport.ClientIDs() {
		var latest *protocol.ClientInput
		var n int64
		for {
			b, ok := r.transport.ReceiveMessage(id, transport.ChannelInput)
			if !ok {
				break
			}
			in, err := protocol.DecodeClientInput(b)
			if err != nil {
				r.metrics.IncDecodeErrors()
				logger.Log.Warnf("room %s: dropping input from %s: %v", r.ID, id, err)
				continue
			}
			latest = &in
			n++
		}
		if latest == nil {
			continue
		}
		if n > 1 {
			r.metrics.AddSuperseded(n - 1)
		}
		e, ok := r.clients.EntityOf(id)
		if !ok {
			r.metrics.IncUnknownClientInput()
			logger.Log.Warnf("room %s: input for unknown client %s ignored", r.ID, id)
			continue
		}
		r.players.Update(e, func(s *protocol.PlayerState) { applyInput(s, *latest) })
		r.metrics.IncAccepted()
	}
}

// UpdateWorld 按输入方向推进所有玩家的位置
func (r *Room) UpdateWorld(dt time.Duration) {
	speed := r.config().Speed
	step := float32(dt.Seconds())
	r.players.Each(func(_ ecs.Entity, s *protocol.PlayerState) {
		integrate(s, speed, step)
	})
}

// Snapshot 当前完整权威状态
func (r *Room) Snapshot() protocol.Snapshot {
	snap := protocol.Snapshot{
		Tick:    r.TickSeq(),
		Players: make(map[protocol.ClientID]protocol.PlayerState, r.clients.Len()),
	}
	for _, id := range r.clients.Keys() {
		e, _ := r.clients.EntityOf(id)
		if s, ok := r.players.Get(e); ok {
			snap.Players[id] = s
		}
	}
	return snap
}

// Broadcast 将当前世界状态通过快照通道广播给所有玩家
func (r *Room) Broadcast() {
	b, err := protocol.EncodeSnapshot(r.Snapshot())
	if err != nil {
		logger.Log.Errorf("room %s: %v", r.ID, err)
		return
	}
	r.outbox = append(r.outbox, outbound{kind: toAll, channel: transport.ChannelSnapshot, payload: b})
	r.metrics.IncSnapshotsSent()
}

// flush 按入队顺序把消息交给传输层，然后写出数据报
func (r *Room) flush(now time.Time) {
	for _, m := range r.outbox {
		switch m.kind {
		case toClient:
			if err := r.transport.SendMessage(m.client, m.channel, m.payload); err != nil {
				logger.Log.Warnf("room %s: send to %s: %v", r.ID, m.client, err)
			}
		case toAll:
			r.transport.BroadcastMessage(m.channel, m.payload)
		case toAllExcept:
			r.transport.BroadcastMessageExcept(m.client, m.channel, m.payload)
		}
	}
	r.outbox = r.outbox[:0]
	r.transport.SendPackets(now)
}

// PlayerState 查询某玩家的权威状态
func (r *Room) PlayerState(id protocol.ClientID) (protocol.PlayerState, bool) {
	e, ok := r.clients.EntityOf(id)
	if !ok {
		return protocol.PlayerState{}, false
	}
	return r.players.Get(e)
}

// Players 当前在房间内的玩家
func (r *Room) Players() []protocol.ClientID {
	return r.clients.Keys()
}
