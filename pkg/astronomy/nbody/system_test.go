package nbody

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	astromath "github.com/oxygene76/hpgravity/pkg/astronomy/math"
)

func testContext() *astromath.Context {
	return astromath.MustContext(astromath.DefaultPrecision)
}

func body(ctx *astromath.Context, id string, mass float64, pos, vel [3]float64) BodySpec {
	return BodySpec{
		ID:              id,
		Mass:            ctx.Scalar(mass),
		EstimatedRadius: ctx.Scalar(0.01),
		Position:        ctx.Vector(pos[0], pos[1], pos[2]),
		Velocity:        ctx.Vector(vel[0], vel[1], vel[2]),
	}
}

func unitG(ctx *astromath.Context) Option {
	return WithGravitationalConstant(ctx.Scalar(1))
}

func toFloat(f *big.Float) float64 {
	v, _ := f.Float64()
	return v
}

// relDiff returns |a-b|/|a| computed at full precision
func relDiff(a, b *big.Float) float64 {
	d := new(big.Float).SetPrec(a.Prec()).Sub(a, b)
	d.Quo(d, a)
	return math.Abs(toFloat(d))
}

func TestTwoBodyFirstStep(t *testing.T) {
	ctx := testContext()
	sys, err := Configure(ctx, []BodySpec{
		body(ctx, "a", 1, [3]float64{0, 0, 0}, [3]float64{}),
		body(ctx, "b", 1, [3]float64{1, 0, 0}, [3]float64{}),
	}, "", unitG(ctx))
	require.NoError(t, err)

	require.NoError(t, sys.Step())

	a, err := sys.Body("a")
	require.NoError(t, err)
	b, err := sys.Body("b")
	require.NoError(t, err)

	assert.True(t, a.Acceleration.Equal(ctx.Vector(1, 0, 0)), "a: %s", a.Acceleration)
	assert.True(t, b.Acceleration.Equal(ctx.Vector(-1, 0, 0)), "b: %s", b.Acceleration)
	assert.True(t, a.Position.Equal(ctx.Vector(0, 0, 0)), "positions hold on the first step")
	assert.True(t, b.Position.Equal(ctx.Vector(1, 0, 0)), "positions hold on the first step")

	require.NoError(t, sys.Step())
	a, _ = sys.Body("a")
	b, _ = sys.Body("b")
	assert.True(t, a.Position.Equal(ctx.Vector(1, 0, 0)), "a: %s", a.Position)
	assert.True(t, b.Position.Equal(ctx.Vector(0, 0, 0)), "b: %s", b.Position)
	assert.Equal(t, uint64(2), sys.Steps())
}

func TestSemiImplicitEulerMovesInSameStep(t *testing.T) {
	ctx := testContext()
	sys, err := Configure(ctx, []BodySpec{
		body(ctx, "a", 1, [3]float64{0, 0, 0}, [3]float64{}),
		body(ctx, "b", 1, [3]float64{3, 0, 0}, [3]float64{}),
	}, "", unitG(ctx), WithIntegrator(SemiImplicitEuler{}))
	require.NoError(t, err)
	require.NoError(t, sys.Step())

	a, _ := sys.Body("a")
	assert.False(t, a.Position.IsZero())
	assert.True(t, a.Position.Equal(a.Acceleration), "moved by the fresh field")
}

func TestPairInteractionSymmetry(t *testing.T) {
	ctx := testContext()
	g, err := ctx.ParseScalar(G)
	require.NoError(t, err)
	mA, _ := ctx.ParseScalar("5.972e24")
	mB, _ := ctx.ParseScalar("7.342e22")
	pA := ctx.Vector(1.496e11, -2.5e7, 3e3)
	pB := ctx.Vector(1.496e11+3.844e8, 1.1e6, -4.2e4)

	in, err := PairInteraction(g, mA, pA, mB, pB)
	require.NoError(t, err)
	swapped, err := PairInteraction(g, mB, pB, mA, pA)
	require.NoError(t, err)

	assert.True(t, in.UnitAB.Equal(in.UnitBA.Neg()), "directions are exact opposites")
	assert.Equal(t, 0, in.Distance.Cmp(swapped.Distance))

	// F from both sides: |accA|·mA and |accB|·mB
	fromA := new(big.Float).SetPrec(ctx.Precision()).Mul(in.AccA.Magnitude(), mA)
	fromB := new(big.Float).SetPrec(ctx.Precision()).Mul(in.AccB.Magnitude(), mB)
	assert.Less(t, relDiff(in.Force, fromA), 1e-30)
	assert.Less(t, relDiff(in.Force, fromB), 1e-30)
	assert.Less(t, relDiff(in.Force, swapped.Force), 1e-30)

	// accelerations point at each other
	assert.Equal(t, 1, in.AccA.Dot(in.UnitAB).Sign())
	assert.Equal(t, 1, in.AccB.Dot(in.UnitBA).Sign())
}

func TestPairInteractionZeroSeparation(t *testing.T) {
	ctx := testContext()
	p := ctx.Vector(1, 2, 3)
	_, err := PairInteraction(ctx.Scalar(1), ctx.Scalar(1), p, ctx.Scalar(1), p.Copy())
	assert.ErrorIs(t, err, ErrSingularity)
}

func TestAllPairsCoversEachPairOnce(t *testing.T) {
	for n := 0; n <= 7; n++ {
		pairs := allPairs(n)
		assert.Len(t, pairs, n*(n-1)/2)
		seen := map[Pair]bool{}
		for _, p := range pairs {
			assert.Less(t, p.I, p.J)
			assert.False(t, seen[p], "pair %v repeated", p)
			seen[p] = true
		}
	}
}

func fiveBodies(ctx *astromath.Context) []BodySpec {
	return []BodySpec{
		body(ctx, "sun", 1000, [3]float64{0, 0, 0}, [3]float64{0, 0, 0}),
		body(ctx, "p1", 1, [3]float64{100, 0, 0}, [3]float64{0, 3.1, 0}),
		body(ctx, "p2", 2, [3]float64{0, 150, 5}, [3]float64{-2.5, 0, 0}),
		body(ctx, "p3", 0.5, [3]float64{-220, 10, 0}, [3]float64{0, -2.1, 0.1}),
		body(ctx, "p4", 3, [3]float64{0, -300, -7}, [3]float64{1.8, 0, 0}),
	}
}

func TestPairOrderDoesNotChangeResult(t *testing.T) {
	ctx := testContext()
	ordered, err := Configure(ctx, fiveBodies(ctx), "", unitG(ctx))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	shuffled, err := Configure(ctx, fiveBodies(ctx), "", unitG(ctx), WithPairOrder(func(pairs []Pair) {
		rng.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
	}))
	require.NoError(t, err)

	reversed, err := Configure(ctx, fiveBodies(ctx), "", unitG(ctx), WithPairOrder(func(pairs []Pair) {
		for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
			pairs[i], pairs[j] = pairs[j], pairs[i]
		}
	}))
	require.NoError(t, err)

	for step := 0; step < 25; step++ {
		require.NoError(t, ordered.Step())
		require.NoError(t, shuffled.Step())
		require.NoError(t, reversed.Step())
	}

	want := ordered.Bodies()
	for _, other := range []*System{shuffled, reversed} {
		for i, b := range other.Bodies() {
			assert.True(t, want[i].Position.Equal(b.Position), "%s position", b.ID)
			assert.True(t, want[i].Acceleration.Equal(b.Acceleration), "%s acceleration", b.ID)
		}
	}
}

func TestPairOrderDroppingPairPanics(t *testing.T) {
	ctx := testContext()
	sys, err := Configure(ctx, fiveBodies(ctx), "", unitG(ctx), WithPairOrder(func(pairs []Pair) {
		pairs[1] = pairs[0]
	}))
	require.NoError(t, err)
	assert.Panics(t, func() { _ = sys.Step() })
}

func massMoment(bodies []Body) astromath.Vector3 {
	sum := bodies[0].Position.Scale(bodies[0].Mass)
	for _, b := range bodies[1:] {
		sum.AddInPlace(b.Position.Scale(b.Mass))
	}
	return sum
}

func TestMassMomentIsConserved(t *testing.T) {
	ctx := testContext()
	sys, err := Configure(ctx, []BodySpec{
		body(ctx, "a", 1, [3]float64{0, 0, 0}, [3]float64{0, -0.375, 0}),
		body(ctx, "b", 3, [3]float64{20, 0, 0}, [3]float64{0, 0.125, 0}),
	}, "", unitG(ctx))
	require.NoError(t, err)

	start := massMoment(sys.Bodies())
	for i := 0; i < 300; i++ {
		require.NoError(t, sys.Step())
	}
	drift := start.Distance(massMoment(sys.Bodies()))
	assert.True(t, drift.Cmp(big.NewFloat(1e-20)) < 0, "drift %s", drift.Text('g', 5))

	a, _ := sys.Body("a")
	assert.False(t, a.Position.Equal(ctx.Vector(0, 0, 0)), "bodies actually moved")
}

func threeBodies(ctx *astromath.Context) []BodySpec {
	return []BodySpec{
		body(ctx, "star", 1, [3]float64{0, 0, 0}, [3]float64{0, 0, 0}),
		body(ctx, "inner", 0.01, [3]float64{10, 0, 0}, [3]float64{0, 0.31, 0}),
		body(ctx, "outer", 0.02, [3]float64{0, 15, 0.5}, [3]float64{-0.26, 0, 0}),
	}
}

func TestReferenceFrameHeldFixed(t *testing.T) {
	ctx := testContext()
	specs := threeBodies(ctx)
	specs[0].ReferenceFrame = true
	sys, err := Configure(ctx, specs, "", unitG(ctx))
	require.NoError(t, err)

	name, ok := sys.ReferenceFrame()
	require.True(t, ok)
	assert.Equal(t, "star", name)
	assert.True(t, sys.IsReferenceFrame("star"))
	assert.False(t, sys.IsReferenceFrame("inner"))

	initial := specs[0].Position.Copy()
	for i := 0; i < 40; i++ {
		require.NoError(t, sys.Step())
		star, err := sys.Body("star")
		require.NoError(t, err)
		require.True(t, star.Position.Equal(initial), "step %d", i+1)
	}

	star, _ := sys.Body("star")
	assert.False(t, star.Acceleration.IsZero(), "frame body still accumulates")

	pos := sys.Positions()
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, pos["star"])
	assert.NotEqual(t, mgl32.Vec3{0, 0, 0}, pos["inner"])
}

func separations(bodies []Body) []*big.Float {
	var out []*big.Float
	for i := 0; i < len(bodies)-1; i++ {
		for j := i + 1; j < len(bodies); j++ {
			out = append(out, bodies[i].Position.Distance(bodies[j].Position))
		}
	}
	return out
}

func TestReferenceFrameInvariance(t *testing.T) {
	ctx := testContext()
	free, err := Configure(ctx, threeBodies(ctx), "", unitG(ctx))
	require.NoError(t, err)
	fixed, err := Configure(ctx, threeBodies(ctx), "star", unitG(ctx))
	require.NoError(t, err)
	assert.Equal(t, FrameRelative, fixed.FrameMode())

	for step := 1; step <= 60; step++ {
		require.NoError(t, free.Step())
		require.NoError(t, fixed.Step())

		fb, xb := free.Bodies(), fixed.Bodies()
		fs, xs := separations(fb), separations(xb)
		for k := range fs {
			require.Less(t, relDiff(fs[k], xs[k]), 1e-25, "step %d pair %d", step, k)
		}
		for i := range fb {
			require.InDelta(t, 0, toFloat(fb[i].Acceleration.Distance(xb[i].Acceleration)), 1e-25,
				"step %d body %s", step, fb[i].ID)
		}
	}

	star, _ := fixed.Body("star")
	assert.True(t, star.Position.IsZero())
	freeStar, _ := free.Body("star")
	assert.False(t, freeStar.Position.IsZero(), "unfixed star drifts")
}

func TestFrameHoldPinsOnlyTheFrameBody(t *testing.T) {
	ctx := testContext()
	sys, err := Configure(ctx, threeBodies(ctx), "star", unitG(ctx), WithFrameMode(FrameHold))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, sys.Step())
	}
	star, _ := sys.Body("star")
	inner, _ := sys.Body("inner")
	assert.True(t, star.Position.IsZero())
	assert.False(t, inner.Position.Equal(ctx.Vector(10, 0, 0)))
}

func TestConfigureRejectsInvalidSetups(t *testing.T) {
	ctx := testContext()
	two := func() []BodySpec {
		return []BodySpec{
			body(ctx, "a", 1, [3]float64{0, 0, 0}, [3]float64{}),
			body(ctx, "b", 1, [3]float64{1, 0, 0}, [3]float64{}),
		}
	}

	tests := []struct {
		name    string
		specs   func() []BodySpec
		frameID string
		want    error
	}{
		{"no bodies", func() []BodySpec { return nil }, "", ErrNoBodies},
		{"two frames", func() []BodySpec {
			s := two()
			s[0].ReferenceFrame = true
			s[1].ReferenceFrame = true
			return s
		}, "", ErrMultipleReferenceFrames},
		{"frame id disagrees with flag", func() []BodySpec {
			s := two()
			s[0].ReferenceFrame = true
			return s
		}, "b", ErrMultipleReferenceFrames},
		{"unknown frame id", two, "c", ErrUnknownBody},
		{"duplicate id", func() []BodySpec {
			s := two()
			s[1].ID = "a"
			return s
		}, "", ErrDuplicateBody},
		{"zero mass", func() []BodySpec {
			s := two()
			s[0].Mass = ctx.Scalar(0)
			return s
		}, "", ErrNonPositiveMass},
		{"negative mass", func() []BodySpec {
			s := two()
			s[1].Mass = ctx.Scalar(-5)
			return s
		}, "", ErrNonPositiveMass},
		{"missing radius", func() []BodySpec {
			s := two()
			s[1].EstimatedRadius = nil
			return s
		}, "", ErrNonPositiveRadius},
		{"coincident", func() []BodySpec {
			s := two()
			s[1].Position = ctx.Vector(0, 0, 0)
			return s
		}, "", ErrCoincidentBodies},
		{"empty id", func() []BodySpec {
			s := two()
			s[0].ID = ""
			return s
		}, "", ErrInvalidBody},
		{"infinite mass", func() []BodySpec {
			s := two()
			s[0].Mass = new(big.Float).SetPrec(ctx.Precision()).SetInf(false)
			return s
		}, "", ErrInvalidBody},
		{"infinite radius", func() []BodySpec {
			s := two()
			s[1].EstimatedRadius = new(big.Float).SetPrec(ctx.Precision()).SetInf(false)
			return s
		}, "", ErrInvalidBody},
		{"infinite position", func() []BodySpec {
			s := two()
			s[1].Position.Y.SetInf(true)
			return s
		}, "", ErrInvalidBody},
		{"infinite velocity", func() []BodySpec {
			s := two()
			s[1].Velocity.Z.SetInf(false)
			return s
		}, "", ErrInvalidBody},
		{"mixed precision", func() []BodySpec {
			s := two()
			s[0].Position = astromath.MustContext(64).Vector(5, 5, 5)
			return s
		}, "", ErrInvalidPrecision},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sys, err := Configure(ctx, tc.specs(), tc.frameID)
			assert.Nil(t, sys)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := Configure(nil, two(), "")
	assert.ErrorIs(t, err, ErrInvalidPrecision)
}

func TestStepSingularityLeavesStateUntouched(t *testing.T) {
	ctx := testContext()
	sys, err := Configure(ctx, []BodySpec{
		body(ctx, "a", 1, [3]float64{0, 0, 0}, [3]float64{1, 0, 0}),
		body(ctx, "b", 1, [3]float64{2, 0, 0}, [3]float64{-1, 0, 0}),
	}, "", unitG(ctx))
	require.NoError(t, err)

	err = sys.Step()
	require.ErrorIs(t, err, ErrSingularity)
	assert.Equal(t, uint64(0), sys.Steps())

	a, _ := sys.Body("a")
	assert.True(t, a.Position.Equal(ctx.Vector(0, 0, 0)))
	assert.True(t, a.Acceleration.Equal(ctx.Vector(1, 0, 0)))
}

func TestQueriesReturnCopies(t *testing.T) {
	ctx := testContext()
	specs := threeBodies(ctx)
	specs[0].EstimatedRadius = ctx.Scalar(6.96e8)
	sys, err := Configure(ctx, specs, "")
	require.NoError(t, err)

	sum, err := sys.PhysicalSummary("star")
	require.NoError(t, err)
	assert.Equal(t, float32(6.96e8*4), sum.OrbitRadius())
	sum.Mass.SetFloat64(99)

	again, _ := sys.PhysicalSummary("star")
	assert.Equal(t, 1.0, toFloat(again.Mass))

	b, _ := sys.Body("inner")
	b.Position.AddInPlace(ctx.Vector(1, 1, 1))
	fresh, _ := sys.Body("inner")
	assert.True(t, fresh.Position.Equal(ctx.Vector(10, 0, 0)))

	clone := sys.Copy()
	require.NoError(t, clone.Step())
	assert.Equal(t, uint64(0), sys.Steps())
	assert.Equal(t, uint64(1), clone.Steps())

	_, err = sys.PhysicalSummary("nope")
	assert.ErrorIs(t, err, ErrUnknownBody)
	_, err = sys.Body("nope")
	assert.ErrorIs(t, err, ErrUnknownBody)

	assert.Equal(t, []string{"star", "inner", "outer"}, sys.IDs())
	assert.Equal(t, []string{"inner", "outer", "star"}, sys.SortedIDs())
	assert.Equal(t, mgl32.Vec3{0, 0.31, 0}, sys.Velocities()["inner"])
}

func TestRotateIsIndependentOfGravity(t *testing.T) {
	ctx := testContext()
	specs := threeBodies(ctx)
	specs[1].Spin = Spin{Axis: mgl32.Vec3{0, 0, 2}, Rate: math.Pi / 2}
	sys, err := Configure(ctx, specs, "")
	require.NoError(t, err)

	before := sys.Bodies()
	sys.Rotate()
	after := sys.Bodies()
	for i := range before {
		assert.True(t, before[i].Position.Equal(after[i].Position))
	}
	assert.Equal(t, uint64(0), sys.Steps())

	q, err := sys.Orientation("inner")
	require.NoError(t, err)
	assert.True(t, q.Rotate(mgl32.Vec3{1, 0, 0}).ApproxEqualThreshold(mgl32.Vec3{0, 1, 0}, 1e-6))

	for i := 0; i < 3; i++ {
		sys.Rotate()
	}
	inner, _ := sys.Body("inner")
	assert.InDelta(t, 0, math.Min(inner.Spin.Angle, 2*math.Pi-inner.Spin.Angle), 1e-12)

	q, _ = sys.Orientation("star")
	assert.Equal(t, mgl32.QuatIdent(), q)
}

func TestSpinNegativeRateWraps(t *testing.T) {
	s := Spin{Axis: mgl32.Vec3{0, 1, 0}, Rate: -1}
	s.Advance()
	assert.InDelta(t, 2*math.Pi-1, s.Angle, 1e-12)
}

func TestParsePolicies(t *testing.T) {
	i, err := ParseIntegrator("")
	require.NoError(t, err)
	assert.Equal(t, "lagged-euler", i.Name())
	i, err = ParseIntegrator("Semi-Implicit-Euler")
	require.NoError(t, err)
	assert.Equal(t, "semi-implicit-euler", i.Name())
	_, err = ParseIntegrator("verlet")
	assert.ErrorIs(t, err, ErrUnknownIntegrator)

	m, err := ParseFrameMode("hold")
	require.NoError(t, err)
	assert.Equal(t, FrameHold, m)
	_, err = ParseFrameMode("spin")
	assert.ErrorIs(t, err, ErrUnknownFrameMode)
}

func TestJSONLSnapshotStream(t *testing.T) {
	ctx := testContext()
	sys, err := Configure(ctx, threeBodies(ctx), "", unitG(ctx))
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewJSONLSnapshotStream(&buf, 30)
	require.NoError(t, w.OnStart(2, 1))
	for i := 0; i < 2; i++ {
		require.NoError(t, sys.Step())
		require.NoError(t, w.OnSnapshot(sys.Steps(), sys.Bodies()))
	}
	require.NoError(t, w.OnEnd(sys.Steps()))
	require.NoError(t, w.Close())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var rec jsonlSnapshot
	require.NoError(t, json.Unmarshal(lines[1], &rec))
	assert.Equal(t, uint64(2), rec.Step)
	require.Len(t, rec.Bodies, 3)
	assert.Equal(t, "inner", rec.Bodies[1].ID)

	p, err := ctx.ParseVector(rec.Bodies[1].Position)
	require.NoError(t, err)
	inner, _ := sys.Body("inner")
	assert.InDelta(t, 0, toFloat(p.Distance(inner.Position)), 1e-25)
}
