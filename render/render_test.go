package render

import (
	"math"
	"testing"
	"time"

	"netarena/ecs"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func TestInterpolateFactorOneIsExact(t *testing.T) {
	tr := NewTransform(mgl32.Vec3{0, 0, 1})
	target := Transform{
		Translation: mgl32.Vec3{3, -4, 1},
		Rotation:    RotationZ(math.Pi / 3),
		Scale:       mgl32.Vec3{2, 2, 2},
	}
	Interpolate(&tr, target, 1)
	require.Equal(t, target, tr)
}

func TestInterpolateZeroIsNoop(t *testing.T) {
	tr := NewTransform(mgl32.Vec3{1, 1, 0})
	before := tr
	Interpolate(&tr, NewTransform(mgl32.Vec3{5, 5, 0}), 0)
	require.Equal(t, before, tr)
}

func TestInterpolateStaysOnPath(t *testing.T) {
	start := NewTransform(mgl32.Vec3{0, 0, 0})
	target := Transform{
		Translation: mgl32.Vec3{10, 4, 0},
		Rotation:    RotationZ(math.Pi / 2),
		Scale:       mgl32.Vec3{1, 1, 1},
	}
	for _, f := range []float32{0.1, 0.25, 0.5, 0.9} {
		tr := start
		Interpolate(&tr, target, f)

		// 位置在线段上：p = a + s(b-a)，s ∈ [0,1]
		d := target.Translation.Sub(start.Translation)
		s := tr.Translation.Sub(start.Translation).Dot(d) / d.Dot(d)
		require.GreaterOrEqual(t, s, float32(0))
		require.LessOrEqual(t, s, float32(1))
		require.True(t, start.Translation.Add(d.Mul(s)).ApproxEqualThreshold(tr.Translation, 1e-4))

		// 旋转角度介于起点与目标之间
		angle := 2 * float32(math.Atan2(float64(tr.Rotation.V[2]), float64(tr.Rotation.W)))
		require.InDelta(t, float64(f)*math.Pi/2, float64(angle), 1e-3)
	}
}

func TestInterpolateTakesShortestArc(t *testing.T) {
	tr := NewTransform(mgl32.Vec3{})
	target := NewTransform(mgl32.Vec3{})
	// 同一朝向的两种四元数表示
	target.Rotation = RotationZ(0.2).Scale(-1)
	Interpolate(&tr, target, 0.5)
	require.Greater(t, tr.Rotation.W, float32(0.99))
}

func TestFactor(t *testing.T) {
	require.Zero(t, Factor(0, 10))
	require.Zero(t, Factor(time.Second, 0))

	short := Factor(10*time.Millisecond, 10)
	long := Factor(100*time.Millisecond, 10)
	require.Greater(t, short, float32(0))
	require.Greater(t, long, short)
	require.LessOrEqual(t, Factor(time.Hour, 10), float32(1))

	// 两个半帧与一个整帧的累计效果一致
	half := Factor(50*time.Millisecond, 10)
	require.InDelta(t, float64(long), float64(1-(1-half)*(1-half)), 1e-5)
}

func TestUpdateInterpolatesAndReportsDangling(t *testing.T) {
	w := ecs.NewWorld()
	transforms := ecs.NewStore[Transform](w)
	renderers := ecs.NewStore[Renderer](w)

	player := w.Spawn()
	transforms.Set(player, NewTransform(mgl32.Vec3{4, 0, 0}))
	r := w.Spawn()
	transforms.Set(r, NewTransform(mgl32.Vec3{}))
	renderers.Set(r, Renderer{Target: player})

	gone := w.Spawn()
	transforms.Set(gone, NewTransform(mgl32.Vec3{}))
	orphan := w.Spawn()
	orphan0 := NewTransform(mgl32.Vec3{7, 7, 0})
	transforms.Set(orphan, orphan0)
	renderers.Set(orphan, Renderer{Target: gone})
	w.Despawn(gone)
	// 槽位被复用后，旧引用依然被识别为悬空
	w.Spawn()

	dangling := Update(w, transforms, renderers, 0.5)
	require.Equal(t, []ecs.Entity{orphan}, dangling)

	got, _ := transforms.Get(r)
	require.Equal(t, mgl32.Vec3{2, 0, 0}, got.Translation)
	stale, _ := transforms.Get(orphan)
	require.Equal(t, orphan0, stale)

	got, _ = transforms.Get(player)
	require.Equal(t, mgl32.Vec3{4, 0, 0}, got.Translation)
}
