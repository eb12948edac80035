package server

import (
	"math"

	"netarena/protocol"

	"github.com/go-gl/mathgl/mgl32"
)

// spawnState 新玩家的初始权威状态
func (r *Room) spawnState() protocol.PlayerState {
	area := r.config().SpawnArea
	return protocol.PlayerState{
		NetworkID: r.netIDs.Allocate(),
		Position:  mgl32.Vec3{r.rng.Float32() * area, r.rng.Float32() * area, 0},
	}
}

// applyInput 记录意图方向，朝向跟随最后一次非零输入
func applyInput(s *protocol.PlayerState, in protocol.ClientInput) {
	s.InputDir = in.Direction
	if in.Direction.Len() > 0 {
		s.Angle = float32(math.Atan2(float64(in.Direction[1]), float64(in.Direction[0])))
	}
}

// integrate 简单运动学：position += dir * speed * dt
func integrate(s *protocol.PlayerState, speed, dt float32) {
	s.Position = s.Position.Add(s.InputDir.Vec3(0).Mul(speed * dt))
}
