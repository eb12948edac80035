package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount           int64 // 统计的 Tick 次数
	InputsAccepted      int64 // 被应用的输入数（每连接每 Tick 至多一个）
	InputsSuperseded    int64 // 同一 Tick 内被后到输入覆盖的输入数
	DecodeErrors        int64 // 无法解码的输入
	UnknownClientInputs int64 // 找不到玩家状态的输入
	Connects            int64
	Disconnects         int64
	SnapshotsSent       int64
	TotalTickNs         int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncAccepted()           { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *RoomMetrics) AddSuperseded(n int64)  { atomic.AddInt64(&m.InputsSuperseded, n) }
func (m *RoomMetrics) IncDecodeErrors()       { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *RoomMetrics) IncUnknownClientInput() { atomic.AddInt64(&m.UnknownClientInputs, 1) }
func (m *RoomMetrics) IncConnects()           { atomic.AddInt64(&m.Connects, 1) }
func (m *RoomMetrics) IncDisconnects()        { atomic.AddInt64(&m.Disconnects, 1) }
func (m *RoomMetrics) IncSnapshotsSent()      { atomic.AddInt64(&m.SnapshotsSent, 1) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":            tick,
		"inputs_accepted":       atomic.LoadInt64(&m.InputsAccepted),
		"inputs_superseded":     atomic.LoadInt64(&m.InputsSuperseded),
		"decode_errors":         atomic.LoadInt64(&m.DecodeErrors),
		"unknown_client_inputs": atomic.LoadInt64(&m.UnknownClientInputs),
		"connects":              atomic.LoadInt64(&m.Connects),
		"disconnects":           atomic.LoadInt64(&m.Disconnects),
		"snapshots_sent":        atomic.LoadInt64(&m.SnapshotsSent),
		"avg_tick_ms":           avgMs,
	}
}
