package client

import (
	"fmt"
	"testing"
	"time"

	"netarena/protocol"
	"netarena/transport"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeTransport 按通道排队的消息，记录发出的输入
type fakeTransport struct {
	inbox   map[transport.ChannelID][][]byte
	sent    [][]byte
	updErr  error
	flushed int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbox: make(map[transport.ChannelID][][]byte)}
}

func (f *fakeTransport) Update(time.Time) error { return f.updErr }

func (f *fakeTransport) SendMessage(ch transport.ChannelID, payload []byte) error {
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeTransport) ReceiveMessage(ch transport.ChannelID) ([]byte, bool) {
	q := f.inbox[ch]
	if len(q) == 0 {
		return nil, false
	}
	f.inbox[ch] = q[1:]
	return q[0], true
}

func (f *fakeTransport) SendPackets(time.Time) error {
	f.flushed++
	return nil
}

func (f *fakeTransport) pushSnapshot(t *testing.T, s protocol.Snapshot) {
	t.Helper()
	b, err := protocol.EncodeSnapshot(s)
	require.NoError(t, err)
	f.inbox[transport.ChannelSnapshot] = append(f.inbox[transport.ChannelSnapshot], b)
}

func (f *fakeTransport) pushControl(t *testing.T, m protocol.ServerMessage) {
	t.Helper()
	b, err := protocol.EncodeServerMessage(m)
	require.NoError(t, err)
	f.inbox[transport.ChannelControl] = append(f.inbox[transport.ChannelControl], b)
}

func newTestClient(t *testing.T, strategy Strategy) (*Client, *fakeTransport) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Strategy = strategy
	ft := newFakeTransport()
	c, err := New(cfg, ft, StaticInput{1, 0})
	require.NoError(t, err)
	return c, ft
}

func state(nid protocol.NetworkID, x, y float32) protocol.PlayerState {
	return protocol.PlayerState{NetworkID: nid, Position: mgl32.Vec3{x, y, 0}}
}

func snapshot(tick uint64, players map[protocol.ClientID]protocol.PlayerState) protocol.Snapshot {
	return protocol.Snapshot{Tick: tick, Players: players}
}

func TestApplySnapshotDiff(t *testing.T) {
	c, _ := newTestClient(t, DespawnByAbsence)

	d, ok := c.ApplySnapshot(snapshot(1, map[protocol.ClientID]protocol.PlayerState{
		"a": state(1, 0, 0),
		"b": state(2, 1, 1),
	}))
	require.True(t, ok)
	require.Equal(t, []protocol.ClientID{"a", "b"}, d.Spawned)
	require.Empty(t, d.Updated)
	require.Empty(t, d.Despawned)
	require.Equal(t, 4, c.EntityCount())

	d, ok = c.ApplySnapshot(snapshot(2, map[protocol.ClientID]protocol.PlayerState{
		"b": state(2, 5, 5),
		"c": state(3, 2, 2),
	}))
	require.True(t, ok)
	require.Equal(t, []protocol.ClientID{"c"}, d.Spawned)
	require.Equal(t, []protocol.ClientID{"b"}, d.Updated)
	require.Equal(t, []protocol.ClientID{"a"}, d.Despawned)
	require.Equal(t, []protocol.ClientID{"b", "c"}, c.KnownClients())
	require.Equal(t, 4, c.EntityCount())
	require.Equal(t, 2, c.bound.Len())

	pos, ok := c.Position("b")
	require.True(t, ok)
	require.Equal(t, mgl32.Vec3{5, 5, 0}, pos)

	// 渲染实体不被快照直接改写
	rt, ok := c.RendererTransform("b")
	require.True(t, ok)
	require.Equal(t, mgl32.Vec3{1, 1, 0}, rt.Translation)

	// 新生成的渲染实体从目标位置开始
	rt, ok = c.RendererTransform("c")
	require.True(t, ok)
	require.Equal(t, mgl32.Vec3{2, 2, 0}, rt.Translation)

	_, ok = c.Position("a")
	require.False(t, ok)
	_, ok = c.RendererTransform("a")
	require.False(t, ok)
}

func TestApplySnapshotIdempotent(t *testing.T) {
	c, _ := newTestClient(t, DespawnByAbsence)
	s := snapshot(3, map[protocol.ClientID]protocol.PlayerState{
		"a": state(1, 1, 2),
		"b": state(2, 3, 4),
	})
	_, ok := c.ApplySnapshot(s)
	require.True(t, ok)
	count := c.EntityCount()

	d, ok := c.ApplySnapshot(s)
	require.True(t, ok)
	require.Empty(t, d.Spawned)
	require.Empty(t, d.Despawned)
	require.Equal(t, []protocol.ClientID{"a", "b"}, d.Updated)
	require.Equal(t, count, c.EntityCount())

	got, ok := c.State("b")
	require.True(t, ok)
	require.Equal(t, s.Players["b"], got)
}

func TestEmptySnapshotDespawnsEverything(t *testing.T) {
	c, _ := newTestClient(t, DespawnByAbsence)
	c.ApplySnapshot(snapshot(1, map[protocol.ClientID]protocol.PlayerState{"a": state(1, 0, 0)}))
	d, ok := c.ApplySnapshot(snapshot(2, nil))
	require.True(t, ok)
	require.Equal(t, []protocol.ClientID{"a"}, d.Despawned)
	require.Zero(t, c.EntityCount())
	require.EqualValues(t, 1, c.Metrics().Despawns)
}

func TestMassDespawnRemovesBoundRenderers(t *testing.T) {
	c, _ := newTestClient(t, DespawnByAbsence)
	players := make(map[protocol.ClientID]protocol.PlayerState)
	for i := 0; i < 200; i++ {
		id := protocol.ClientID(fmt.Sprintf("p%03d", i))
		players[id] = state(protocol.NetworkID(i+1), float32(i), 0)
	}
	c.ApplySnapshot(snapshot(1, players))
	require.Equal(t, 400, c.EntityCount())
	require.Equal(t, 200, c.bound.Len())

	rt, ok := c.RendererTransform("p042")
	require.True(t, ok)
	require.Equal(t, mgl32.Vec3{42, 0, 0}, rt.Translation)

	d, ok := c.ApplySnapshot(snapshot(2, map[protocol.ClientID]protocol.PlayerState{"p007": players["p007"]}))
	require.True(t, ok)
	require.Len(t, d.Despawned, 199)
	require.Equal(t, 2, c.EntityCount())
	require.Equal(t, 1, c.bound.Len())
	require.Equal(t, 1, c.renderers.Len())
}

func TestDespawnByEventKeepsAbsentPlayers(t *testing.T) {
	c, _ := newTestClient(t, DespawnByEvent)
	c.ApplySnapshot(snapshot(1, map[protocol.ClientID]protocol.PlayerState{
		"a": state(1, 0, 0),
		"b": state(2, 1, 1),
	}))
	d, _ := c.ApplySnapshot(snapshot(2, map[protocol.ClientID]protocol.PlayerState{
		"b": state(2, 1, 1),
		"c": state(3, 2, 2),
	}))
	require.Empty(t, d.Despawned)
	require.Equal(t, []protocol.ClientID{"a", "b", "c"}, c.KnownClients())

	c.ApplyControl(protocol.PlayerDisconnected(3, "a"))
	require.Equal(t, []protocol.ClientID{"b", "c"}, c.KnownClients())
	require.Equal(t, 4, c.EntityCount())
	require.Equal(t, 2, c.bound.Len())

	// 未知玩家的断开事件被忽略
	c.ApplyControl(protocol.PlayerDisconnected(3, "zzz"))
	require.Equal(t, 4, c.EntityCount())
}

func TestControlEvents(t *testing.T) {
	c, _ := newTestClient(t, DespawnByAbsence)

	c.ApplyControl(protocol.Welcome(1, "me"))
	require.Equal(t, protocol.ClientID("me"), c.Self())

	c.ApplyControl(protocol.PlayerConnected(2, "other", state(7, 3, 3)))
	require.Equal(t, []protocol.ClientID{"other"}, c.KnownClients())
	got, ok := c.State("other")
	require.True(t, ok)
	require.Equal(t, protocol.NetworkID(7), got.NetworkID)

	c.ApplyControl(protocol.PlayerDisconnected(3, "other"))
	require.Empty(t, c.KnownClients())
	require.Zero(t, c.EntityCount())
	require.EqualValues(t, 3, c.LastTick())
}

func TestStaleSnapshotDropped(t *testing.T) {
	c, _ := newTestClient(t, DespawnByAbsence)
	_, ok := c.ApplySnapshot(snapshot(5, map[protocol.ClientID]protocol.PlayerState{"a": state(1, 5, 0)}))
	require.True(t, ok)

	_, ok = c.ApplySnapshot(snapshot(3, map[protocol.ClientID]protocol.PlayerState{"a": state(1, 3, 0)}))
	require.False(t, ok)
	pos, _ := c.Position("a")
	require.Equal(t, mgl32.Vec3{5, 0, 0}, pos)
	require.EqualValues(t, 1, c.Metrics().SnapshotsStale)

	// 断开事件之后到达的旧快照不能让玩家复活
	c.ApplyControl(protocol.PlayerDisconnected(7, "a"))
	_, ok = c.ApplySnapshot(snapshot(6, map[protocol.ClientID]protocol.PlayerState{"a": state(1, 6, 0)}))
	require.False(t, ok)
	require.Empty(t, c.KnownClients())

	// 同一 Tick 可以重复应用
	_, ok = c.ApplySnapshot(snapshot(7, nil))
	require.True(t, ok)
}

func TestLateConnectEventIgnored(t *testing.T) {
	c, _ := newTestClient(t, DespawnByAbsence)
	c.ApplySnapshot(snapshot(10, map[protocol.ClientID]protocol.PlayerState{"b": state(2, 9, 9)}))

	c.ApplyControl(protocol.PlayerConnected(4, "b", state(2, 0, 0)))
	pos, _ := c.Position("b")
	require.Equal(t, mgl32.Vec3{9, 9, 0}, pos)

	c.ApplyControl(protocol.PlayerConnected(5, "gone", state(3, 0, 0)))
	require.Equal(t, []protocol.ClientID{"b"}, c.KnownClients())
}

func TestFrameInterpolatesRenderer(t *testing.T) {
	c, ft := newTestClient(t, DespawnByAbsence)
	ft.pushSnapshot(t, snapshot(1, map[protocol.ClientID]protocol.PlayerState{"a": state(1, 0, 0)}))
	require.NoError(t, c.Frame(t0, 16*time.Millisecond))

	ft.pushSnapshot(t, snapshot(2, map[protocol.ClientID]protocol.PlayerState{"a": state(1, 10, 0)}))
	require.NoError(t, c.Frame(t0, 16*time.Millisecond))

	rt, _ := c.RendererTransform("a")
	x := rt.Translation.X()
	require.Greater(t, x, float32(0))
	require.Less(t, x, float32(10))

	for i := 0; i < 300; i++ {
		require.NoError(t, c.Frame(t0, 16*time.Millisecond))
	}
	rt, _ = c.RendererTransform("a")
	require.True(t, rt.Translation.ApproxEqualThreshold(mgl32.Vec3{10, 0, 0}, 1e-3), "renderer at %v", rt.Translation)

	// 每帧发送一次输入并刷新传输层
	require.Len(t, ft.sent, 302)
	require.Equal(t, 302, ft.flushed)
	in, err := protocol.DecodeClientInput(ft.sent[0])
	require.NoError(t, err)
	require.Equal(t, mgl32.Vec2{1, 0}, in.Direction)
}

func TestFrameCleansDanglingRenderers(t *testing.T) {
	c, ft := newTestClient(t, DespawnByAbsence)
	c.ApplySnapshot(snapshot(1, map[protocol.ClientID]protocol.PlayerState{"a": state(1, 0, 0)}))
	e, ok := c.players.EntityOf("a")
	require.True(t, ok)

	// 绕过 despawn 直接销毁模拟实体，留下悬空的渲染实体
	c.players.RemoveKey("a")
	c.world.Despawn(e)
	require.Equal(t, 1, c.renderers.Len())

	require.NoError(t, c.Frame(t0, 16*time.Millisecond))
	require.Zero(t, c.renderers.Len())
	require.Zero(t, c.bound.Len())
	require.Zero(t, c.EntityCount())
	require.EqualValues(t, 1, c.Metrics().DanglingRenderers)
	require.Equal(t, 1, ft.flushed)
}

func TestFrameDisconnectedStillDrains(t *testing.T) {
	c, ft := newTestClient(t, DespawnByAbsence)
	ft.updErr = transport.ErrDisconnected
	ft.pushControl(t, protocol.PlayerDisconnected(1, "x"))
	ft.pushSnapshot(t, snapshot(1, map[protocol.ClientID]protocol.PlayerState{"a": state(1, 0, 0)}))

	err := c.Frame(t0, 16*time.Millisecond)
	require.ErrorIs(t, err, transport.ErrDisconnected)
	require.Equal(t, []protocol.ClientID{"a"}, c.KnownClients())
	require.Empty(t, ft.sent)
	require.Zero(t, ft.flushed)
}

func TestMalformedMessagesCounted(t *testing.T) {
	c, ft := newTestClient(t, DespawnByAbsence)
	ft.inbox[transport.ChannelSnapshot] = [][]byte{{0xc1}}
	ft.inbox[transport.ChannelControl] = [][]byte{{0xc1}}
	require.NoError(t, c.Frame(t0, 16*time.Millisecond))
	require.EqualValues(t, 2, c.Metrics().DecodeErrors)
	require.Zero(t, c.EntityCount())
}

func TestConfig(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	require.Equal(t, time.Second/60, DefaultConfig().FrameInterval())

	s, err := ParseStrategy("event")
	require.NoError(t, err)
	require.Equal(t, DespawnByEvent, s)
	_, err = ParseStrategy("bogus")
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.FrameRate = 0
	_, err = New(cfg, newFakeTransport(), nil)
	require.Error(t, err)
}

func TestWanderInput(t *testing.T) {
	w := NewWanderInput(3, time.Second)
	first := w.Direction(t0)
	require.LessOrEqual(t, first.Len(), float32(1.0001))
	require.Equal(t, first, w.Direction(t0.Add(500*time.Millisecond)))
	for i := 1; i < 20; i++ {
		d := w.Direction(t0.Add(time.Duration(i) * time.Second))
		require.LessOrEqual(t, d.Len(), float32(1.0001))
	}
	require.Equal(t, mgl32.Vec2{0, 1}, StaticInput{0, 1}.Direction(t0))
}
