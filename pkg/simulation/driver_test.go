package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	astromath "github.com/oxygene76/hpgravity/pkg/astronomy/math"
	"github.com/oxygene76/hpgravity/pkg/astronomy/nbody"
)

type countingStepper struct {
	steps   uint64
	rotates int
	failAt  uint64
}

func (c *countingStepper) Step() error {
	if c.failAt != 0 && c.steps+1 == c.failAt {
		return errors.New("boom")
	}
	c.steps++
	return nil
}

func (c *countingStepper) Rotate()              { c.rotates++ }
func (c *countingStepper) Steps() uint64        { return c.steps }
func (c *countingStepper) Bodies() []nbody.Body { return nil }

type recordingSink struct {
	started   bool
	snapshots []uint64
	ended     uint64
}

func (r *recordingSink) OnStart(int, int) error { r.started = true; return nil }
func (r *recordingSink) OnSnapshot(step uint64, _ []nbody.Body) error {
	r.snapshots = append(r.snapshots, step)
	return nil
}
func (r *recordingSink) OnEnd(step uint64) error { r.ended = step; return nil }
func (r *recordingSink) Close() error            { return nil }

func TestParseCadence(t *testing.T) {
	c, err := ParseCadence("fixed", 30, 0)
	require.NoError(t, err)
	assert.Equal(t, FixedRate, c.Mode)
	assert.Equal(t, time.Second/30, c.Interval)
	assert.Equal(t, 8, c.MaxStepsPerTick)

	c, err = ParseCadence("per-frame", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, PerFrame, c.Mode)

	_, err = ParseCadence("fixed", 0, 4)
	assert.Error(t, err)
	_, err = ParseCadence("sometimes", 30, 4)
	assert.Error(t, err)
}

func TestPerFrameTick(t *testing.T) {
	s := &countingStepper{}
	d := NewDriver(s, Cadence{Mode: PerFrame}, nil)

	for _, elapsed := range []time.Duration{0, time.Millisecond, time.Second} {
		n, err := d.Tick(elapsed)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
	assert.Equal(t, uint64(3), s.steps)
	assert.Equal(t, 3, s.rotates)
}

func TestFixedRateTickAccumulates(t *testing.T) {
	s := &countingStepper{}
	d := NewDriver(s, Cadence{Mode: FixedRate, Interval: 10 * time.Millisecond, MaxStepsPerTick: 3}, nil)

	n, err := d.Tick(4 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "not enough time for a step")
	assert.Equal(t, 1, s.rotates, "rotation runs on every tick")

	n, _ = d.Tick(7 * time.Millisecond)
	assert.Equal(t, 1, n)
	n, _ = d.Tick(19 * time.Millisecond)
	assert.Equal(t, 2, n)

	n, _ = d.Tick(time.Second)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(97), d.Dropped())
	assert.Equal(t, uint64(6), s.steps)
}

func TestTickStopsOnError(t *testing.T) {
	s := &countingStepper{failAt: 2}
	d := NewDriver(s, Cadence{Mode: FixedRate, Interval: time.Millisecond, MaxStepsPerTick: 5}, nil)

	n, err := d.Tick(5 * time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestRunSnapshotsAndCancellation(t *testing.T) {
	s := &countingStepper{}
	sink := &recordingSink{}
	d := NewDriver(s, Cadence{Mode: PerFrame}, nil)

	require.NoError(t, d.Run(context.Background(), 10, sink, 4))
	assert.True(t, sink.started)
	assert.Equal(t, []uint64{0, 4, 8}, sink.snapshots)
	assert.Equal(t, uint64(10), sink.ended)
	assert.Equal(t, 10, s.rotates)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Run(ctx, 5, nil, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(10), s.steps)
}

func TestRunWithRealSystem(t *testing.T) {
	ctx := astromath.MustContext(astromath.DefaultPrecision)
	sys, err := nbody.Configure(ctx, []nbody.BodySpec{
		{ID: "a", Mass: ctx.Scalar(1), EstimatedRadius: ctx.Scalar(1), Position: ctx.Vector(0, 0, 0)},
		{ID: "b", Mass: ctx.Scalar(1), EstimatedRadius: ctx.Scalar(1), Position: ctx.Vector(50, 0, 0),
			Velocity: ctx.Vector(0, 0.1, 0)},
	}, "a", nbody.WithGravitationalConstant(ctx.Scalar(1)))
	require.NoError(t, err)

	d := NewDriver(sys, Cadence{Mode: PerFrame}, nil)
	require.NoError(t, d.Run(context.Background(), 20, nil, 0))
	assert.Equal(t, uint64(20), sys.Steps())

	a, _ := sys.Body("a")
	assert.True(t, a.Position.IsZero())
}

func TestTeeForwardsToAllSinks(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	s := &countingStepper{}
	d := NewDriver(s, Cadence{Mode: PerFrame}, nil)

	sink := Tee(a, nil, b)
	require.NoError(t, d.Run(context.Background(), 4, sink, 2))
	require.NoError(t, sink.Close())

	for _, r := range []*recordingSink{a, b} {
		assert.True(t, r.started)
		assert.Equal(t, []uint64{0, 2, 4}, r.snapshots)
		assert.Equal(t, uint64(4), r.ended)
	}
}
