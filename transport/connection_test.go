package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// pair 返回服务端侧与客户端侧的 Connection
func pair(cfg ConnectionConfig) (*Connection, *Connection) {
	srv := newConnection(cfg.ServerChannels, cfg.ClientChannels, cfg.AvailableBytesPerTick)
	cli := newConnection(cfg.ClientChannels, cfg.ServerChannels, cfg.AvailableBytesPerTick)
	return srv, cli
}

func deliverAll(t *testing.T, to *Connection, packets [][]byte) {
	t.Helper()
	for _, p := range packets {
		require.NoError(t, to.ProcessPacket(p))
	}
}

func drain(c *Connection, ch ChannelID) []string {
	var out []string
	for {
		b, ok := c.ReceiveMessage(ch)
		if !ok {
			return out
		}
		out = append(out, string(b))
	}
}

func TestReliableOrderedSurvivesLossAndReordering(t *testing.T) {
	srv, cli := pair(DefaultConnectionConfig())
	for _, m := range []string{"m0", "m1", "m2", "m3", "m4"} {
		require.NoError(t, srv.SendMessage(ChannelControl, []byte(m)))
	}
	packets, err := srv.Packets(t0)
	require.NoError(t, err)
	require.Len(t, packets, 5)

	// 丢掉 m1，其余逆序到达
	deliverAll(t, cli, [][]byte{packets[4], packets[3], packets[2], packets[0]})
	require.Equal(t, []string{"m0"}, drain(cli, ChannelControl))

	acks, err := cli.Packets(t0)
	require.NoError(t, err)
	deliverAll(t, srv, acks)
	require.Equal(t, 1, srv.Unacked(ChannelControl))

	// 未到重传时间：不重发
	packets, err = srv.Packets(t0.Add(100 * time.Millisecond))
	require.NoError(t, err)
	require.Empty(t, packets)

	packets, err = srv.Packets(t0.Add(250 * time.Millisecond))
	require.NoError(t, err)
	require.Len(t, packets, 1)
	deliverAll(t, cli, packets)
	require.Equal(t, []string{"m1", "m2", "m3", "m4"}, drain(cli, ChannelControl))

	acks, err = cli.Packets(t0.Add(250 * time.Millisecond))
	require.NoError(t, err)
	deliverAll(t, srv, acks)
	require.Zero(t, srv.Unacked(ChannelControl))
}

func TestReliableDuplicateDeliveredOnce(t *testing.T) {
	srv, cli := pair(DefaultConnectionConfig())
	require.NoError(t, srv.SendMessage(ChannelControl, []byte("once")))
	packets, err := srv.Packets(t0)
	require.NoError(t, err)

	deliverAll(t, cli, packets)
	deliverAll(t, cli, packets)
	require.Equal(t, []string{"once"}, drain(cli, ChannelControl))

	// 重复包同样被确认
	acks, err := cli.Packets(t0)
	require.NoError(t, err)
	require.Len(t, acks, 2)
}

func TestUnreliableIsNotResent(t *testing.T) {
	srv, cli := pair(DefaultConnectionConfig())
	require.NoError(t, srv.SendMessage(ChannelSnapshot, []byte("s1")))
	packets, err := srv.Packets(t0)
	require.NoError(t, err)
	require.Len(t, packets, 1)

	// 丢失后不会重传
	packets, err = srv.Packets(t0.Add(time.Second))
	require.NoError(t, err)
	require.Empty(t, packets)

	require.NoError(t, srv.SendMessage(ChannelSnapshot, []byte("s2")))
	packets, err = srv.Packets(t0.Add(time.Second))
	require.NoError(t, err)
	deliverAll(t, cli, packets)
	require.Equal(t, []string{"s2"}, drain(cli, ChannelSnapshot))

	// 不可靠消息不产生确认
	acks, err := cli.Packets(t0)
	require.NoError(t, err)
	require.Empty(t, acks)
}

func TestChannelMemoryBudget(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.ServerChannels[0].MaxMemoryUsageBytes = 8
	cfg.ServerChannels[1].MaxMemoryUsageBytes = 8
	srv, _ := pair(cfg)

	require.NoError(t, srv.SendMessage(ChannelControl, []byte("12345")))
	require.ErrorIs(t, srv.SendMessage(ChannelControl, []byte("6789")), ErrChannelFull)

	require.NoError(t, srv.SendMessage(ChannelSnapshot, []byte("12345678")))
	require.ErrorIs(t, srv.SendMessage(ChannelSnapshot, []byte("9")), ErrChannelFull)

	// flush 之后不可靠通道的预算被释放，可靠通道要等确认
	_, err := srv.Packets(t0)
	require.NoError(t, err)
	require.NoError(t, srv.SendMessage(ChannelSnapshot, []byte("9")))
	require.ErrorIs(t, srv.SendMessage(ChannelControl, []byte("6789")), ErrChannelFull)
}

func TestBytesPerTickPrefersReliable(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.AvailableBytesPerTick = 2*packetOverhead + 10
	srv, cli := pair(cfg)

	require.NoError(t, srv.SendMessage(ChannelSnapshot, []byte("snap-1")))
	require.NoError(t, srv.SendMessage(ChannelControl, []byte("ctl-1")))
	require.NoError(t, srv.SendMessage(ChannelControl, []byte("ctl-2")))

	packets, err := srv.Packets(t0)
	require.NoError(t, err)
	deliverAll(t, cli, packets)
	require.Equal(t, []string{"ctl-1", "ctl-2"}, drain(cli, ChannelControl))
	require.Empty(t, drain(cli, ChannelSnapshot))
}

func TestUnknownChannel(t *testing.T) {
	srv, _ := pair(DefaultConnectionConfig())
	require.ErrorIs(t, srv.SendMessage(9, []byte("x")), ErrUnknownChannel)

	_, ok := srv.ReceiveMessage(9)
	require.False(t, ok)
}

func TestMalformedPacket(t *testing.T) {
	_, cli := pair(DefaultConnectionConfig())
	require.ErrorIs(t, cli.ProcessPacket([]byte{0xc1}), ErrMalformedPacket)

	b, err := encodePacket(packet{Kind: 7, Channel: ChannelControl})
	require.NoError(t, err)
	require.ErrorIs(t, cli.ProcessPacket(b), ErrMalformedPacket)
}

func TestValidateConnectionConfig(t *testing.T) {
	require.NoError(t, DefaultConnectionConfig().Validate())

	dup := DefaultConnectionConfig()
	dup.ServerChannels[1].ID = ChannelControl
	require.Error(t, dup.Validate())

	budget := DefaultConnectionConfig()
	budget.ClientChannels[0].MaxMemoryUsageBytes = 0
	require.Error(t, budget.Validate())

	perTick := DefaultConnectionConfig()
	perTick.AvailableBytesPerTick = 0
	require.Error(t, perTick.Validate())
}
