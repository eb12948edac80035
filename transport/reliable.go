package transport

import (
	"time"

	"github.com/pkg/errors"
)

type pendingMessage struct {
	payload  []byte
	sent     bool
	lastSent time.Time
}

// reliableSender 按序号保存未确认消息，超过 ResendTime 未确认则重发
type reliableSender struct {
	cfg     ChannelConfig
	nextSeq uint64
	pending map[uint64]*pendingMessage
	queue   []uint64 // 递增序号，确认后惰性清理
	memory  int
}

func newReliableSender(cfg ChannelConfig) *reliableSender {
	return &reliableSender{
		cfg:     cfg,
		pending: make(map[uint64]*pendingMessage),
	}
}

func (s *reliableSender) send(payload []byte) error {
	if s.memory+len(payload) > s.cfg.MaxMemoryUsageBytes {
		return errors.Wrapf(ErrChannelFull, "channel %s", s.cfg.Name)
	}
	seq := s.nextSeq
	s.nextSeq++
	s.pending[seq] = &pendingMessage{payload: payload}
	s.queue = append(s.queue, seq)
	s.memory += len(payload)
	return nil
}

// collect 返回本次需要（重）发送的消息，按序号从小到大，受 budget 约束
func (s *reliableSender) collect(now time.Time, budget *int) []packet {
	var out []packet
	live := s.queue[:0]
	for _, seq := range s.queue {
		m, ok := s.pending[seq]
		if !ok {
			continue
		}
		live = append(live, seq)
		if m.sent && now.Sub(m.lastSent) < s.cfg.ResendTime {
			continue
		}
		p := packet{Kind: packetMessage, Channel: s.cfg.ID, Seq: seq, Payload: m.payload}
		if p.size() > *budget {
			continue
		}
		*budget -= p.size()
		m.sent = true
		m.lastSent = now
		out = append(out, p)
	}
	s.queue = live
	return out
}

func (s *reliableSender) ack(seq uint64) {
	m, ok := s.pending[seq]
	if !ok {
		return
	}
	s.memory -= len(m.payload)
	delete(s.pending, seq)
}

func (s *reliableSender) unacked() int { return len(s.pending) }

// reliableReceiver 缓存乱序到达的消息，严格按序号交付
type reliableReceiver struct {
	cfg      ChannelConfig
	next     uint64
	buffered map[uint64][]byte
	ready    [][]byte
	memory   int
}

func newReliableReceiver(cfg ChannelConfig) *reliableReceiver {
	return &reliableReceiver{
		cfg:      cfg,
		buffered: make(map[uint64][]byte),
	}
}

// process 返回是否需要回复确认；超出内存预算时不确认，由发送端重传
func (r *reliableReceiver) process(p packet) bool {
	if p.Seq < r.next {
		return true
	}
	if _, dup := r.buffered[p.Seq]; dup {
		return true
	}
	if r.memory+len(p.Payload) > r.cfg.MaxMemoryUsageBytes {
		return false
	}
	r.buffered[p.Seq] = p.Payload
	r.memory += len(p.Payload)
	for {
		payload, ok := r.buffered[r.next]
		if !ok {
			break
		}
		delete(r.buffered, r.next)
		r.ready = append(r.ready, payload)
		r.next++
	}
	return true
}

func (r *reliableReceiver) receive() ([]byte, bool) {
	if len(r.ready) == 0 {
		return nil, false
	}
	payload := r.ready[0]
	r.ready[0] = nil
	r.ready = r.ready[1:]
	r.memory -= len(payload)
	return payload, true
}
