package client

import "sync/atomic"

// Metrics 客户端运行指标，可在其他 goroutine 中读取
type Metrics struct {
	Frames            int64
	SnapshotsApplied  int64
	SnapshotsStale    int64 // 比已应用的 Tick 更旧而被丢弃
	ControlEvents     int64
	Spawns            int64
	Despawns          int64
	DecodeErrors      int64
	DanglingRenderers int64 // 目标已销毁而被清理的渲染实体
}

func (m *Metrics) inc(p *int64) { atomic.AddInt64(p, 1) }

// Snapshot 返回只读副本
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"frames":             atomic.LoadInt64(&m.Frames),
		"snapshots_applied":  atomic.LoadInt64(&m.SnapshotsApplied),
		"snapshots_stale":    atomic.LoadInt64(&m.SnapshotsStale),
		"control_events":     atomic.LoadInt64(&m.ControlEvents),
		"spawns":             atomic.LoadInt64(&m.Spawns),
		"despawns":           atomic.LoadInt64(&m.Despawns),
		"decode_errors":      atomic.LoadInt64(&m.DecodeErrors),
		"dangling_renderers": atomic.LoadInt64(&m.DanglingRenderers),
	}
}
