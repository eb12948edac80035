package server

import (
	"time"

	"github.com/pkg/errors"
)

// Config 房间运行参数
type Config struct {
	TickRate         int     // 每秒 Tick 数
	Speed            float32 // 移动速度（单位/秒）
	MaxClients       int
	SpawnArea        float32 // 出生点在 [0, SpawnArea) 范围内随机
	SimulateDropProb float64 // 模拟出站丢包概率
	Seed             int64   // 0 表示使用当前时间
}

// DefaultConfig 20 TPS，速度 50
func DefaultConfig() Config {
	return Config{
		TickRate:   20,
		Speed:      50,
		MaxClients: 64,
		SpawnArea:  10,
	}
}

func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return errors.Errorf("tick rate must be positive, got %d", c.TickRate)
	}
	if c.MaxClients <= 0 {
		return errors.Errorf("max clients must be positive, got %d", c.MaxClients)
	}
	if c.SimulateDropProb < 0 || c.SimulateDropProb > 1 {
		return errors.Errorf("drop probability must be within [0,1], got %v", c.SimulateDropProb)
	}
	if c.SpawnArea < 0 {
		return errors.New("spawn area must not be negative")
	}
	return nil
}

// TickInterval 固定 Tick 间隔
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// ConfigPatch 运行时热更新的字段（管理接口 JSON 载荷）
type ConfigPatch struct {
	Speed            *float32 `json:"speed,omitempty" jsonschema:"minimum=0"`
	SimulateDropProb *float64 `json:"simulateDropProb,omitempty" jsonschema:"minimum=0,maximum=1"`
}

func (p ConfigPatch) apply(c Config) (Config, error) {
	if p.Speed != nil {
		if *p.Speed < 0 {
			return c, errors.New("speed must not be negative")
		}
		c.Speed = *p.Speed
	}
	if p.SimulateDropProb != nil {
		c.SimulateDropProb = *p.SimulateDropProb
	}
	return c, c.Validate()
}
