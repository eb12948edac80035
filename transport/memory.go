package transport

import (
	"sync/atomic"

	"netarena/protocol"

	"github.com/pkg/errors"
)

// memoryLink 进程内链路：WritePacket 直接投递给对端
type memoryLink struct {
	deliver func([]byte)
	onClose func()
	closed  atomic.Bool
}

func (l *memoryLink) WritePacket(b []byte) error {
	if l.closed.Load() {
		return ErrDisconnected
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	l.deliver(cp)
	return nil
}

func (l *memoryLink) Close() error {
	if l.closed.CompareAndSwap(false, true) && l.onClose != nil {
		l.onClose()
	}
	return nil
}

// ConnectInMemory 在进程内把一个客户端接到 srv 上，用于测试与本地联机
func ConnectInMemory(srv *Server, id protocol.ClientID, cfg ConnectionConfig) (*Client, error) {
	toServer := &memoryLink{
		deliver: func(b []byte) { srv.Deliver(id, b) },
		onClose: func() { srv.Disconnect(id, "client closed") },
	}
	cli, err := NewClient(cfg, toServer)
	if err != nil {
		return nil, errors.Wrap(err, "create in-memory client failed")
	}
	srv.Accept(id, &memoryLink{deliver: cli.Deliver, onClose: cli.MarkDisconnected})
	return cli, nil
}
