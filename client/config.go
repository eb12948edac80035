package client

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Strategy 本地实体何时被销毁
type Strategy int

const (
	// DespawnByAbsence 快照中缺席即销毁（服务端权威差分）
	DespawnByAbsence Strategy = iota
	// DespawnByEvent 只在收到 PlayerDisconnected 时销毁
	DespawnByEvent
)

func (s Strategy) String() string {
	switch s {
	case DespawnByAbsence:
		return "absence"
	case DespawnByEvent:
		return "event"
	default:
		return "unknown"
	}
}

// ParseStrategy 命令行参数解析
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "absence", "":
		return DespawnByAbsence, nil
	case "event":
		return DespawnByEvent, nil
	}
	return 0, errors.Errorf("unknown reconciliation strategy %q", s)
}

// Config 客户端参数
type Config struct {
	Strategy          Strategy
	InterpolationRate float64 // 渲染插值速率（1/秒）
	FrameRate         int     // 每秒帧数
}

func DefaultConfig() Config {
	return Config{
		Strategy:          DespawnByAbsence,
		InterpolationRate: 10,
		FrameRate:         60,
	}
}

func (c Config) Validate() error {
	if c.FrameRate <= 0 {
		return errors.Errorf("frame rate must be positive, got %d", c.FrameRate)
	}
	if c.InterpolationRate <= 0 {
		return errors.Errorf("interpolation rate must be positive, got %v", c.InterpolationRate)
	}
	if c.Strategy != DespawnByAbsence && c.Strategy != DespawnByEvent {
		return errors.Errorf("unknown strategy %d", c.Strategy)
	}
	return nil
}

// FrameInterval 每帧间隔
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}
