package transport

import (
	"time"

	"github.com/pkg/errors"
)

type sendChannel interface {
	send(payload []byte) error
	collect(now time.Time, budget *int) []packet
	ack(seq uint64)
	unacked() int
}

type receiveChannel interface {
	process(p packet) bool
	receive() ([]byte, bool)
}

// Connection 一个对端的通道状态：发送通道、接收通道与待发确认
// 非并发安全，由 Tick 所在的 goroutine 独占
type Connection struct {
	bytesPerTick int
	senders      map[ChannelID]sendChannel
	sendOrder    []ChannelID
	receivers    map[ChannelID]receiveChannel
	acks         []packet
}

func newConnection(send, recv []ChannelConfig, bytesPerTick int) *Connection {
	c := &Connection{
		bytesPerTick: bytesPerTick,
		senders:      make(map[ChannelID]sendChannel, len(send)),
		receivers:    make(map[ChannelID]receiveChannel, len(recv)),
	}
	// 可靠通道优先占用带宽预算
	for _, want := range []SendType{ReliableOrdered, Unreliable} {
		for _, cfg := range send {
			if cfg.SendType != want {
				continue
			}
			if cfg.SendType == ReliableOrdered {
				c.senders[cfg.ID] = newReliableSender(cfg)
			} else {
				c.senders[cfg.ID] = newUnreliableSender(cfg)
			}
			c.sendOrder = append(c.sendOrder, cfg.ID)
		}
	}
	for _, cfg := range recv {
		if cfg.SendType == ReliableOrdered {
			c.receivers[cfg.ID] = newReliableReceiver(cfg)
		} else {
			c.receivers[cfg.ID] = newUnreliableReceiver(cfg)
		}
	}
	return c
}

// SendMessage 将消息放入通道发送队列，下一次 Packets 时发出
func (c *Connection) SendMessage(ch ChannelID, payload []byte) error {
	s, ok := c.senders[ch]
	if !ok {
		return errors.Wrapf(ErrUnknownChannel, "send on channel %d", ch)
	}
	return s.send(payload)
}

// ReceiveMessage 非阻塞地取出一条已交付的消息
func (c *Connection) ReceiveMessage(ch ChannelID) ([]byte, bool) {
	r, ok := c.receivers[ch]
	if !ok {
		return nil, false
	}
	return r.receive()
}

// ProcessPacket 处理一个入站数据报
func (c *Connection) ProcessPacket(data []byte) error {
	p, err := decodePacket(data)
	if err != nil {
		return err
	}
	switch p.Kind {
	case packetAck:
		s, ok := c.senders[p.Channel]
		if !ok {
			return errors.Wrapf(ErrUnknownChannel, "ack on channel %d", p.Channel)
		}
		s.ack(p.Seq)
	case packetMessage:
		r, ok := c.receivers[p.Channel]
		if !ok {
			return errors.Wrapf(ErrUnknownChannel, "message on channel %d", p.Channel)
		}
		if r.process(p) {
			c.acks = append(c.acks, packet{Kind: packetAck, Channel: p.Channel, Seq: p.Seq})
		}
	}
	return nil
}

// Packets 编码本次需要发出的数据报：先确认，再按通道顺序发送消息
func (c *Connection) Packets(now time.Time) ([][]byte, error) {
	budget := c.bytesPerTick
	out := make([][]byte, 0, len(c.acks))
	for _, ack := range c.acks {
		b, err := encodePacket(ack)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	c.acks = c.acks[:0]
	for _, id := range c.sendOrder {
		for _, p := range c.senders[id].collect(now, &budget) {
			b, err := encodePacket(p)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
	}
	return out, nil
}

// Unacked 可靠通道上尚未被确认的消息数
func (c *Connection) Unacked(ch ChannelID) int {
	s, ok := c.senders[ch]
	if !ok {
		return 0
	}
	return s.unacked()
}
