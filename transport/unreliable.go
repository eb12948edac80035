package transport

import (
	"time"

	"github.com/pkg/errors"
)

// unreliableSender 消息在下一次 flush 时只发送一次；超出带宽预算的直接丢弃
type unreliableSender struct {
	cfg     ChannelConfig
	queue   [][]byte
	memory  int
	dropped int
}

func newUnreliableSender(cfg ChannelConfig) *unreliableSender {
	return &unreliableSender{cfg: cfg}
}

func (s *unreliableSender) send(payload []byte) error {
	if s.memory+len(payload) > s.cfg.MaxMemoryUsageBytes {
		return errors.Wrapf(ErrChannelFull, "channel %s", s.cfg.Name)
	}
	s.queue = append(s.queue, payload)
	s.memory += len(payload)
	return nil
}

func (s *unreliableSender) collect(_ time.Time, budget *int) []packet {
	out := make([]packet, 0, len(s.queue))
	for _, payload := range s.queue {
		p := packet{Kind: packetMessage, Channel: s.cfg.ID, Payload: payload}
		if p.size() > *budget {
			s.dropped++
			continue
		}
		*budget -= p.size()
		out = append(out, p)
	}
	s.queue = s.queue[:0]
	s.memory = 0
	return out
}

func (s *unreliableSender) ack(uint64) {}

func (s *unreliableSender) unacked() int { return 0 }

// unreliableReceiver 接收队列满时丢弃新消息
type unreliableReceiver struct {
	cfg     ChannelConfig
	queue   [][]byte
	memory  int
	dropped int
}

func newUnreliableReceiver(cfg ChannelConfig) *unreliableReceiver {
	return &unreliableReceiver{cfg: cfg}
}

func (r *unreliableReceiver) process(p packet) bool {
	if r.memory+len(p.Payload) > r.cfg.MaxMemoryUsageBytes {
		r.dropped++
		return false
	}
	r.queue = append(r.queue, p.Payload)
	r.memory += len(p.Payload)
	return false
}

func (r *unreliableReceiver) receive() ([]byte, bool) {
	if len(r.queue) == 0 {
		return nil, false
	}
	payload := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	r.memory -= len(payload)
	return payload, true
}
