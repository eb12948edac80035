package transport

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

type packetKind uint8

const (
	packetMessage packetKind = iota + 1
	packetAck
)

// packetOverhead 估算的包头字节数，用于每 Tick 带宽预算
const packetOverhead = 16

// packet 链路层的一个数据报：一条消息或一个确认
type packet struct {
	Kind    packetKind `msgpack:"k"`
	Channel ChannelID  `msgpack:"c"`
	Seq     uint64     `msgpack:"s,omitempty"`
	Payload []byte     `msgpack:"p,omitempty"`
}

func (p packet) size() int { return len(p.Payload) + packetOverhead }

func encodePacket(p packet) ([]byte, error) {
	b, err := msgpack.Marshal(&p)
	if err != nil {
		return nil, errors.Wrap(err, "encode packet failed")
	}
	return b, nil
}

func decodePacket(b []byte) (packet, error) {
	var p packet
	if err := msgpack.Unmarshal(b, &p); err != nil {
		return packet{}, errors.Wrapf(ErrMalformedPacket, "%v", err)
	}
	if p.Kind != packetMessage && p.Kind != packetAck {
		return packet{}, errors.Wrapf(ErrMalformedPacket, "unknown packet kind %d", p.Kind)
	}
	return p, nil
}
