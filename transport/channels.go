package transport

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ChannelID 逻辑通道编号，客户端与服务端一致
type ChannelID uint8

// SendType 通道的投递语义
type SendType int

const (
	// Unreliable 不重传、不保序，下一 Tick 的快照会覆盖丢失的数据
	Unreliable SendType = iota
	// ReliableOrdered 按序号重传并按序交付
	ReliableOrdered
)

func (t SendType) String() string {
	switch t {
	case Unreliable:
		return "unreliable"
	case ReliableOrdered:
		return "reliable_ordered"
	default:
		return fmt.Sprintf("send_type(%d)", int(t))
	}
}

// 服务端 → 客户端
const (
	ChannelControl  ChannelID = 0 // 连接/断开等控制事件
	ChannelSnapshot ChannelID = 1 // 全量世界快照
)

// 客户端 → 服务端
const (
	ChannelInput ChannelID = 0
)

const (
	defaultResendTime    = 200 * time.Millisecond
	defaultBytesPerTick  = 1024 * 1024
	controlMemoryBudget  = 10 * 1024 * 1024
	snapshotMemoryBudget = 10 * 1024 * 1024
	inputMemoryBudget    = 5 * 1024 * 1024
)

// ChannelConfig 单个通道的配置
type ChannelConfig struct {
	ID                  ChannelID
	Name                string
	MaxMemoryUsageBytes int
	SendType            SendType
	ResendTime          time.Duration // 仅对 ReliableOrdered 有效
}

// ConnectionConfig 会话开始时固定，两端必须相同
type ConnectionConfig struct {
	AvailableBytesPerTick int
	ServerChannels        []ChannelConfig
	ClientChannels        []ChannelConfig
}

// DefaultConnectionConfig 控制通道可靠有序，快照与输入通道不可靠
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		AvailableBytesPerTick: defaultBytesPerTick,
		ServerChannels: []ChannelConfig{
			{
				ID:                  ChannelControl,
				Name:                "control",
				MaxMemoryUsageBytes: controlMemoryBudget,
				SendType:            ReliableOrdered,
				ResendTime:          defaultResendTime,
			},
			{
				ID:                  ChannelSnapshot,
				Name:                "snapshot",
				MaxMemoryUsageBytes: snapshotMemoryBudget,
				SendType:            Unreliable,
			},
		},
		ClientChannels: []ChannelConfig{
			{
				ID:                  ChannelInput,
				Name:                "input",
				MaxMemoryUsageBytes: inputMemoryBudget,
				SendType:            Unreliable,
			},
		},
	}
}

// Validate 校验通道配置
func (c ConnectionConfig) Validate() error {
	if c.AvailableBytesPerTick <= 0 {
		return errors.New("available bytes per tick must be positive")
	}
	if err := validateChannels(c.ServerChannels); err != nil {
		return errors.Wrap(err, "invalid server channels")
	}
	if err := validateChannels(c.ClientChannels); err != nil {
		return errors.Wrap(err, "invalid client channels")
	}
	return nil
}

func validateChannels(cfgs []ChannelConfig) error {
	seen := make(map[ChannelID]bool, len(cfgs))
	for _, cfg := range cfgs {
		if seen[cfg.ID] {
			return errors.Errorf("duplicate channel id %d", cfg.ID)
		}
		seen[cfg.ID] = true
		if cfg.MaxMemoryUsageBytes <= 0 {
			return errors.Errorf("channel %d: memory budget must be positive", cfg.ID)
		}
		if cfg.ResendTime < 0 {
			return errors.Errorf("channel %d: negative resend time", cfg.ID)
		}
		if cfg.SendType != Unreliable && cfg.SendType != ReliableOrdered {
			return errors.Errorf("channel %d: unsupported %s", cfg.ID, cfg.SendType)
		}
	}
	return nil
}
