package transport

import (
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"netarena/logger"
	"netarena/protocol"

	"github.com/pkg/errors"
)

// Link 一个对端的出站数据报通道（WebSocket 帧或进程内管道）
type Link interface {
	WritePacket(b []byte) error
	Close() error
}

// EventKind 连接事件类型
type EventKind int

const (
	ClientConnected EventKind = iota + 1
	ClientDisconnected
)

func (k EventKind) String() string {
	switch k {
	case ClientConnected:
		return "connected"
	case ClientDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ServerEvent 由传输层产生的连接/断开通知
type ServerEvent struct {
	Kind     EventKind
	ClientID protocol.ClientID
	Reason   string
}

// DefaultMaxClients 单个服务端允许的最大连接数
const DefaultMaxClients = 64

type joinRequest struct {
	id   protocol.ClientID
	link Link
}

type inboundPacket struct {
	id   protocol.ClientID
	data []byte
}

type leaveRequest struct {
	id     protocol.ClientID
	reason string
}

type serverConn struct {
	*Connection
	link Link
}

// ServerStats 传输层统计（原子计数，可被 HTTP 协程读取）
type ServerStats struct {
	PacketsSent       atomic.Int64
	PacketsDropped    atomic.Int64 // 模拟丢包
	InboundDiscarded  atomic.Int64 // 入站队列满被丢弃
	MalformedPackets  atomic.Int64
	RejectedClients   atomic.Int64
	LinkWriteFailures atomic.Int64
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (s *ServerStats) Snapshot() map[string]any {
	return map[string]any{
		"packets_sent":        s.PacketsSent.Load(),
		"packets_dropped":     s.PacketsDropped.Load(),
		"inbound_discarded":   s.InboundDiscarded.Load(),
		"malformed_packets":   s.MalformedPackets.Load(),
		"rejected_clients":    s.RejectedClients.Load(),
		"link_write_failures": s.LinkWriteFailures.Load(),
	}
}

// Server 服务端传输层
// Accept / Deliver / Disconnect 可在任意 goroutine 调用（通过通道交给 Tick）；
// 其余方法只能在 Tick 所在的 goroutine 调用
type Server struct {
	cfg        ConnectionConfig
	maxClients int

	conns  map[protocol.ClientID]*serverConn
	events []ServerEvent

	joins   chan joinRequest
	inbound chan inboundPacket
	leaves  chan leaveRequest

	dropProb float64
	rng      *rand.Rand

	Stats ServerStats
}

// ServerCfg Server 的可选配置
type ServerCfg func(*Server) error

// WithMaxClients 限制同时连接数
func WithMaxClients(n int) ServerCfg {
	return func(s *Server) error {
		if n <= 0 {
			return errors.Errorf("max clients must be positive, got %d", n)
		}
		s.maxClients = n
		return nil
	}
}

// WithRandSeed 模拟丢包的随机种子
func WithRandSeed(seed int64) ServerCfg {
	return func(s *Server) error {
		s.rng = rand.New(rand.NewSource(seed))
		return nil
	}
}

// NewServer 按通道配置创建服务端传输层
func NewServer(cfg ConnectionConfig, cfgs ...ServerCfg) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate connection config failed")
	}
	s := &Server{
		cfg:        cfg,
		maxClients: DefaultMaxClients,
		conns:      make(map[protocol.ClientID]*serverConn),
		joins:      make(chan joinRequest, 64),
		inbound:    make(chan inboundPacket, 4096), // 足够缓冲，避免网络读阻塞影响 Tick
		leaves:     make(chan leaveRequest, 64),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, c := range cfgs {
		if err := c(s); err != nil {
			return nil, errors.Wrap(err, "apply Server cfg failed")
		}
	}
	return s, nil
}

// Accept 登记新连接，下一次 Update 时产生 ClientConnected 事件
func (s *Server) Accept(id protocol.ClientID, link Link) {
	s.joins <- joinRequest{id: id, link: link}
}

// Deliver 入站数据报（非阻塞，队列满则丢弃）
func (s *Server) Deliver(id protocol.ClientID, data []byte) {
	select {
	case s.inbound <- inboundPacket{id: id, data: data}:
	default:
		s.Stats.InboundDiscarded.Add(1)
	}
}

// Disconnect 请求在 Tick 线程中移除连接
func (s *Server) Disconnect(id protocol.ClientID, reason string) {
	// 阻塞写入以保证移除一定生效（通道有容量）
	s.leaves <- leaveRequest{id: id, reason: reason}
}

// Update 依次处理新连接、入站数据报与断开请求
func (s *Server) Update(_ time.Time) {
	s.drainJoins()
	s.drainInbound()
	s.drainLeaves()
}

func (s *Server) drainJoins() {
	for {
		select {
		case j := <-s.joins:
			s.addConn(j)
		default:
			return
		}
	}
}

func (s *Server) drainInbound() {
	for {
		select {
		case in := <-s.inbound:
			c, ok := s.conns[in.id]
			if !ok {
				logger.Log.Debugf("packet from unknown client %s dropped", in.id)
				continue
			}
			if err := c.ProcessPacket(in.data); err != nil {
				s.Stats.MalformedPackets.Add(1)
				logger.Log.Warnf("client %s: %v", in.id, err)
			}
		default:
			return
		}
	}
}

func (s *Server) drainLeaves() {
	for {
		select {
		case l := <-s.leaves:
			s.removeConn(l.id, l.reason)
		default:
			return
		}
	}
}

func (s *Server) addConn(j joinRequest) {
	if _, exists := s.conns[j.id]; exists {
		logger.Log.Warnf("duplicate client id %s, closing new link", j.id)
		_ = j.link.Close()
		return
	}
	if len(s.conns) >= s.maxClients {
		s.Stats.RejectedClients.Add(1)
		logger.Log.Warnf("server full (%d clients), rejecting %s", s.maxClients, j.id)
		_ = j.link.Close()
		return
	}
	s.conns[j.id] = &serverConn{
		Connection: newConnection(s.cfg.ServerChannels, s.cfg.ClientChannels, s.cfg.AvailableBytesPerTick),
		link:       j.link,
	}
	s.events = append(s.events, ServerEvent{Kind: ClientConnected, ClientID: j.id})
}

func (s *Server) removeConn(id protocol.ClientID, reason string) {
	c, ok := s.conns[id]
	if !ok {
		return
	}
	delete(s.conns, id)
	_ = c.link.Close()
	s.events = append(s.events, ServerEvent{Kind: ClientDisconnected, ClientID: id, Reason: reason})
}

// Events 取出并清空自上次调用以来的连接事件
func (s *Server) Events() []ServerEvent {
	ev := s.events
	s.events = nil
	return ev
}

// ClientIDs 当前连接（有序，保证遍历顺序确定）
func (s *Server) ClientIDs() []protocol.ClientID {
	ids := make([]protocol.ClientID, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Server) IsConnected(id protocol.ClientID) bool {
	_, ok := s.conns[id]
	return ok
}

func (s *Server) SendMessage(id protocol.ClientID, ch ChannelID, payload []byte) error {
	c, ok := s.conns[id]
	if !ok {
		return errors.Wrapf(ErrUnknownClient, "send to %s", id)
	}
	return c.SendMessage(ch, payload)
}

// BroadcastMessage 发送给所有连接
func (s *Server) BroadcastMessage(ch ChannelID, payload []byte) {
	s.BroadcastMessageExcept("", ch, payload)
}

// BroadcastMessageExcept 发送给除 except 外的所有连接
func (s *Server) BroadcastMessageExcept(except protocol.ClientID, ch ChannelID, payload []byte) {
	for _, id := range s.ClientIDs() {
		if id == except {
			continue
		}
		if err := s.conns[id].SendMessage(ch, payload); err != nil {
			logger.Log.Warnf("broadcast to %s on channel %d: %v", id, ch, err)
		}
	}
}

func (s *Server) ReceiveMessage(id protocol.ClientID, ch ChannelID) ([]byte, bool) {
	c, ok := s.conns[id]
	if !ok {
		return nil, false
	}
	return c.ReceiveMessage(ch)
}

// Unacked 某连接在可靠通道上尚未确认的消息数
func (s *Server) Unacked(id protocol.ClientID, ch ChannelID) int {
	c, ok := s.conns[id]
	if !ok {
		return 0
	}
	return c.Unacked(ch)
}

// SetDropProbability 模拟出站丢包，p ∈ [0,1]
func (s *Server) SetDropProbability(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	s.dropProb = p
}

// SendPackets 将所有连接的待发数据写入链路
func (s *Server) SendPackets(now time.Time) {
	for _, id := range s.ClientIDs() {
		c := s.conns[id]
		packets, err := c.Packets(now)
		if err != nil {
			logger.Log.Errorf("client %s: build packets: %v", id, err)
			continue
		}
		for _, b := range packets {
			if s.dropProb > 0 && s.rng.Float64() < s.dropProb {
				s.Stats.PacketsDropped.Add(1)
				continue
			}
			err := c.link.WritePacket(b)
			if err == nil {
				s.Stats.PacketsSent.Add(1)
				continue
			}
			s.Stats.LinkWriteFailures.Add(1)
			if errors.Is(err, ErrLinkSaturated) {
				logger.Log.Debugf("client %s: %v", id, err)
				continue
			}
			logger.Log.Warnf("client %s: write failed: %v", id, err)
			s.removeConn(id, "write failed")
			break
		}
	}
}

// Close 关闭所有链路
func (s *Server) Close() {
	for _, id := range s.ClientIDs() {
		s.removeConn(id, "server shutdown")
	}
}
