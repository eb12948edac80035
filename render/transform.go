package render

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Transform 渲染与模拟共用的变换
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

func NewTransform(translation mgl32.Vec3) Transform {
	return Transform{
		Translation: translation,
		Rotation:    mgl32.QuatIdent(),
		Scale:       mgl32.Vec3{1, 1, 1},
	}
}

// RotationZ 俯视角下绕 Z 轴的朝向
func RotationZ(angle float32) mgl32.Quat {
	return mgl32.QuatRotate(angle, mgl32.Vec3{0, 0, 1})
}

// Interpolate 位置/缩放线性插值，旋转球面插值
// factor ≥ 1 时直接等于目标，factor ≤ 0 不变
func Interpolate(t *Transform, target Transform, factor float32) {
	if factor <= 0 {
		return
	}
	if factor >= 1 {
		*t = target
		return
	}
	t.Translation = lerp(t.Translation, target.Translation, factor)
	t.Scale = lerp(t.Scale, target.Scale, factor)

	to := target.Rotation
	// 走最短弧
	if t.Rotation.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	t.Rotation = mgl32.QuatSlerp(t.Rotation, to, factor)
}

func lerp(a, b mgl32.Vec3, f float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(f))
}

// Factor 根据帧耗时计算插值系数：1 - e^(-rate*dt)，与帧率无关
func Factor(dt time.Duration, rate float64) float32 {
	if dt <= 0 || rate <= 0 {
		return 0
	}
	f := 1 - math.Exp(-rate*dt.Seconds())
	if f > 1 {
		f = 1
	}
	return float32(f)
}
