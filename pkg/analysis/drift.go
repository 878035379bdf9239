package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/oxygene76/hpgravity/internal/types"
	astromath "github.com/oxygene76/hpgravity/pkg/astronomy/math"
	"github.com/oxygene76/hpgravity/pkg/astronomy/nbody"
)

var (
	ErrNoSamples      = errors.New("analysis: no snapshots recorded")
	ErrBodySetChanged = errors.New("analysis: body set changed between snapshots")
)

// Tracker samples drift diagnostics from snapshots. It implements
// nbody.SnapshotSink so it can be handed straight to a run.
//
// The mass moment Σ m·x is constant for an isolated system in an inertial
// frame, so its drift is only meaningful when no reference frame is pinned.
type Tracker struct {
	ids   []string
	pairs [][2]int

	initial astromath.Vector3
	steps   []uint64
	moment  []float64
	seps    [][]float64
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) OnStart(totalSteps int, snapEvery int) error { return nil }

func (t *Tracker) OnSnapshot(step uint64, bodies []nbody.Body) error {
	if len(bodies) == 0 {
		return nil
	}
	if t.ids == nil {
		t.init(bodies)
	} else if !t.sameBodies(bodies) {
		return fmt.Errorf("%w at step %d", ErrBodySetChanged, step)
	}

	m := MassMoment(bodies)
	if len(t.steps) == 0 {
		t.initial = m
	}
	drift, _ := m.Sub(t.initial).Magnitude().Float64()

	t.steps = append(t.steps, step)
	t.moment = append(t.moment, drift)
	for k, p := range t.pairs {
		d, _ := bodies[p[0]].Position.Distance(bodies[p[1]].Position).Float64()
		t.seps[k] = append(t.seps[k], d)
	}
	return nil
}

func (t *Tracker) OnEnd(finalStep uint64) error { return nil }

func (t *Tracker) Close() error { return nil }

func (t *Tracker) init(bodies []nbody.Body) {
	t.ids = make([]string, len(bodies))
	for i, b := range bodies {
		t.ids[i] = b.ID
	}
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			t.pairs = append(t.pairs, [2]int{i, j})
		}
	}
	t.seps = make([][]float64, len(t.pairs))
}

func (t *Tracker) sameBodies(bodies []nbody.Body) bool {
	if len(bodies) != len(t.ids) {
		return false
	}
	for i, b := range bodies {
		if b.ID != t.ids[i] {
			return false
		}
	}
	return true
}

// Samples returns the number of snapshots recorded
func (t *Tracker) Samples() int {
	return len(t.steps)
}

// Report summarizes the recorded series
func (t *Tracker) Report() (types.DriftReport, error) {
	if len(t.steps) == 0 {
		return types.DriftReport{}, ErrNoSamples
	}

	report := types.DriftReport{
		Samples:    len(t.steps),
		FirstStep:  t.steps[0],
		LastStep:   t.steps[len(t.steps)-1],
		MassMoment: summarize(t.moment),
	}
	for k, p := range t.pairs {
		report.Separation = append(report.Separation, types.PairStats{
			A:       t.ids[p[0]],
			B:       t.ids[p[1]],
			Initial: t.seps[k][0],
			Stats:   summarize(t.seps[k]),
		})
	}
	return report, nil
}

// WriteCSV writes one row per snapshot: step, mass-moment drift, then each
// pair separation.
func (t *Tracker) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"step", "mass_moment_drift"}
	for _, p := range t.pairs {
		header = append(header, t.ids[p[0]]+"-"+t.ids[p[1]])
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for s, step := range t.steps {
		row := []string{strconv.FormatUint(step, 10), strconv.FormatFloat(t.moment[s], 'g', -1, 64)}
		for k := range t.pairs {
			row = append(row, strconv.FormatFloat(t.seps[k][s], 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// MassMoment returns Σ m·x over the bodies at full precision
func MassMoment(bodies []nbody.Body) astromath.Vector3 {
	sum := bodies[0].Position.Scale(bodies[0].Mass)
	for _, b := range bodies[1:] {
		sum.AddInPlace(b.Position.Scale(b.Mass))
	}
	return sum
}

// TotalMass returns Σ m at the bodies' precision
func TotalMass(bodies []nbody.Body) *big.Float {
	total := new(big.Float).SetPrec(bodies[0].Mass.Prec()).Set(bodies[0].Mass)
	for _, b := range bodies[1:] {
		total.Add(total, b.Mass)
	}
	return total
}

func summarize(xs []float64) types.SeriesStats {
	s := types.SeriesStats{
		Mean:  stat.Mean(xs, nil),
		Min:   floats.Min(xs),
		Max:   floats.Max(xs),
		Final: xs[len(xs)-1],
	}
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	return s
}
