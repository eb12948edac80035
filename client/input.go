package client

import (
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// InputSource 每帧提供本地玩家的移动意图
type InputSource interface {
	Direction(now time.Time) mgl32.Vec2
}

// StaticInput 恒定方向
type StaticInput mgl32.Vec2

func (s StaticInput) Direction(time.Time) mgl32.Vec2 { return mgl32.Vec2(s) }

// WanderInput 无头机器人：每隔一段时间随机换一个方向，偶尔停下
type WanderInput struct {
	rng   *rand.Rand
	every time.Duration
	next  time.Time
	dir   mgl32.Vec2
}

func NewWanderInput(seed int64, every time.Duration) *WanderInput {
	return &WanderInput{rng: rand.New(rand.NewSource(seed)), every: every}
}

func (w *WanderInput) Direction(now time.Time) mgl32.Vec2 {
	if !now.Before(w.next) {
		w.next = now.Add(w.every)
		if w.rng.Intn(4) == 0 {
			w.dir = mgl32.Vec2{}
		} else {
			a := w.rng.Float64() * 2 * math.Pi
			w.dir = mgl32.Vec2{float32(math.Cos(a)), float32(math.Sin(a))}
		}
	}
	return w.dir
}
