package server

import (
	"encoding/json"
	"net/http"

	"netarena/logger"

	"github.com/invopop/jsonschema"
)

// HandleAdminConfig 提供房间配置的读取与更新（热更新基本规则）
// GET /admin/config?room=room-1  返回当前配置
// POST /admin/config?room=room-1 以 JSON 载荷更新部分字段
func (m *RoomManager) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	room, ok := m.roomFromQuery(r)
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, configView(room.Config()))
	case http.MethodPost:
		var patch ConfigPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		cfg, err := room.UpdateConfig(patch)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.Infof("config updated: room=%s speed=%.2f drop=%.2f", room.ID, cfg.Speed, cfg.SimulateDropProb)
		writeJSON(w, configView(cfg))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleAdminSchema 输出热更新载荷的 JSON Schema
func (m *RoomManager) HandleAdminSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, jsonschema.Reflect(&ConfigPatch{}))
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=room-1
func (m *RoomManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	room, ok := m.roomFromQuery(r)
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"room":      room.ID,
		"tick":      room.TickSeq(),
		"metrics":   room.Metrics().Snapshot(),
		"transport": room.Transport().Stats.Snapshot(),
	})
}

func configView(c Config) map[string]any {
	return map[string]any{
		"tickRate":         c.TickRate,
		"speed":            c.Speed,
		"maxClients":       c.MaxClients,
		"spawnArea":        c.SpawnArea,
		"simulateDropProb": c.SimulateDropProb,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
