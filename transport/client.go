package transport

import (
	"sync"
	"time"

	"netarena/logger"

	"github.com/pkg/errors"
)

// Client 客户端传输层；Deliver / MarkDisconnected 可在读协程中调用
type Client struct {
	conn *Connection
	link Link

	inbound      chan []byte
	disconnected chan struct{}
	once         sync.Once
}

// NewClient 创建客户端传输层：在客户端通道上发送，在服务端通道上接收
func NewClient(cfg ConnectionConfig, link Link) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate connection config failed")
	}
	return &Client{
		conn:         newConnection(cfg.ClientChannels, cfg.ServerChannels, cfg.AvailableBytesPerTick),
		link:         link,
		inbound:      make(chan []byte, 4096),
		disconnected: make(chan struct{}),
	}, nil
}

// Deliver 入站数据报（非阻塞，队列满则丢弃）
func (c *Client) Deliver(data []byte) {
	select {
	case c.inbound <- data:
	default:
		logger.Log.Debug("client inbound queue full, packet dropped")
	}
}

// MarkDisconnected 由链路在断开时调用，可重复调用
func (c *Client) MarkDisconnected() {
	c.once.Do(func() { close(c.disconnected) })
}

func (c *Client) IsConnected() bool {
	select {
	case <-c.disconnected:
		return false
	default:
		return true
	}
}

// Update 处理所有已到达的数据报；连接断开后返回 ErrDisconnected
func (c *Client) Update(_ time.Time) error {
	for {
		select {
		case data := <-c.inbound:
			if err := c.conn.ProcessPacket(data); err != nil {
				logger.Log.Warnf("server packet: %v", err)
			}
		default:
			if !c.IsConnected() {
				return ErrDisconnected
			}
			return nil
		}
	}
}

func (c *Client) SendMessage(ch ChannelID, payload []byte) error {
	if !c.IsConnected() {
		return ErrDisconnected
	}
	return c.conn.SendMessage(ch, payload)
}

func (c *Client) ReceiveMessage(ch ChannelID) ([]byte, bool) {
	return c.conn.ReceiveMessage(ch)
}

// SendPackets 将待发数据写入链路
func (c *Client) SendPackets(now time.Time) error {
	if !c.IsConnected() {
		return ErrDisconnected
	}
	packets, err := c.conn.Packets(now)
	if err != nil {
		return errors.Wrap(err, "build packets failed")
	}
	for _, b := range packets {
		err := c.link.WritePacket(b)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrLinkSaturated) {
			logger.Log.Debugf("client link: %v", err)
			continue
		}
		c.MarkDisconnected()
		return errors.Wrap(err, "write packet failed")
	}
	return nil
}

// Close 主动断开
func (c *Client) Close() error {
	c.MarkDisconnected()
	return c.link.Close()
}
