package nbody

import (
	"strings"

	astromath "github.com/oxygene76/hpgravity/pkg/astronomy/math"
)

// FrameMode selects how bodies move when a reference frame body is fixed
type FrameMode int

const (
	// FrameRelative moves every other body by its displacement minus the
	// frame body's, so inter-body geometry matches an unfixed run.
	FrameRelative FrameMode = iota
	// FrameHold only pins the frame body; others move by their own field.
	FrameHold
)

func (m FrameMode) String() string {
	switch m {
	case FrameRelative:
		return "relative"
	case FrameHold:
		return "hold"
	default:
		return "unknown"
	}
}

// ParseFrameMode maps a config name to a FrameMode
func ParseFrameMode(name string) (FrameMode, error) {
	switch strings.ToLower(name) {
	case "", "relative":
		return FrameRelative, nil
	case "hold":
		return FrameHold, nil
	default:
		return 0, ErrUnknownFrameMode.Wrapf("%q", name)
	}
}

// Frame identifies the fixed body (Index < 0 for none) and its mode
type Frame struct {
	Index int
	Mode  FrameMode
}

// Displacement returns how far body i moves given the acceleration fields.
// The frame body never moves and reports false.
func (f Frame) Displacement(acc []astromath.Vector3, i int) (astromath.Vector3, bool) {
	if f.Index < 0 {
		return acc[i], true
	}
	if i == f.Index {
		return astromath.Vector3{}, false
	}
	if f.Mode == FrameRelative {
		return acc[i].Sub(acc[f.Index]), true
	}
	return acc[i], true
}

// State is the integrated part of the system: positions and acceleration
// fields, indexed like the body arena.
type State struct {
	Positions     []astromath.Vector3
	Accelerations []astromath.Vector3
}

// Field evaluates the summed pairwise accelerations at the given positions
type Field func(positions []astromath.Vector3) ([]astromath.Vector3, error)

// Integrator advances a State by one step. Implementations must not mutate
// the input state; the caller commits the returned state only on success.
type Integrator interface {
	Name() string
	Integrate(st State, frame Frame, field Field) (State, error)
}

// LaggedEuler is semi-implicit Euler with a one-step-delayed force: bodies
// move by the field accumulated during the previous step, then the field is
// updated from the new positions for use next step.
type LaggedEuler struct{}

func (LaggedEuler) Name() string { return "lagged-euler" }

func (LaggedEuler) Integrate(st State, frame Frame, field Field) (State, error) {
	next := State{
		Positions:     drift(st.Positions, st.Accelerations, frame),
		Accelerations: make([]astromath.Vector3, len(st.Accelerations)),
	}

	delta, err := field(next.Positions)
	if err != nil {
		return State{}, err
	}
	for i, a := range st.Accelerations {
		acc := a.Copy()
		acc.AddInPlace(delta[i])
		next.Accelerations[i] = acc
	}
	return next, nil
}

// SemiImplicitEuler folds the fresh field in first and moves bodies by the
// updated field within the same step.
type SemiImplicitEuler struct{}

func (SemiImplicitEuler) Name() string { return "semi-implicit-euler" }

func (SemiImplicitEuler) Integrate(st State, frame Frame, field Field) (State, error) {
	delta, err := field(st.Positions)
	if err != nil {
		return State{}, err
	}

	acc := make([]astromath.Vector3, len(st.Accelerations))
	for i, a := range st.Accelerations {
		acc[i] = a.Copy()
		acc[i].AddInPlace(delta[i])
	}
	return State{
		Positions:     drift(st.Positions, acc, frame),
		Accelerations: acc,
	}, nil
}

func drift(positions, acc []astromath.Vector3, frame Frame) []astromath.Vector3 {
	out := make([]astromath.Vector3, len(positions))
	for i, p := range positions {
		d, ok := frame.Displacement(acc, i)
		if !ok {
			out[i] = p.Copy()
			continue
		}
		out[i] = p.Add(d)
	}
	return out
}

// ParseIntegrator maps a config name to an Integrator
func ParseIntegrator(name string) (Integrator, error) {
	switch strings.ToLower(name) {
	case "", LaggedEuler{}.Name():
		return LaggedEuler{}, nil
	case SemiImplicitEuler{}.Name():
		return SemiImplicitEuler{}, nil
	default:
		return nil, ErrUnknownIntegrator.Wrapf("%q", name)
	}
}
