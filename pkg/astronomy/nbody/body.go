package nbody

import (
	"math/big"

	"github.com/go-gl/mathgl/mgl32"

	astromath "github.com/oxygene76/hpgravity/pkg/astronomy/math"
)

// BodySpec describes one celestial object at setup time
type BodySpec struct {
	ID              string
	Mass            *big.Float // kg
	EstimatedRadius *big.Float // m, used for camera sizing only
	Position        astromath.Vector3

	// Velocity seeds the acceleration field, which the integrator treats as
	// a per-step displacement. Left unset it starts at zero.
	Velocity astromath.Vector3

	ReferenceFrame bool
	Spin           Spin
}

// Body represents a celestial body in the N-body system
type Body struct {
	ID              string
	Mass            *big.Float
	EstimatedRadius *big.Float
	Position        astromath.Vector3

	// Acceleration is the running sum of every step's pairwise
	// accelerations, consumed as the displacement of the following step.
	Acceleration astromath.Vector3

	Spin Spin
}

// Copy returns a deep copy of the body
func (b Body) Copy() Body {
	return Body{
		ID:              b.ID,
		Mass:            new(big.Float).Copy(b.Mass),
		EstimatedRadius: new(big.Float).Copy(b.EstimatedRadius),
		Position:        b.Position.Copy(),
		Acceleration:    b.Acceleration.Copy(),
		Spin:            b.Spin,
	}
}

// Summary is the physical record collaborators use for labels and camera sizing
type Summary struct {
	ID              string
	Mass            *big.Float
	EstimatedRadius *big.Float
}

// OrbitRadius is the camera distance used when snapping to the body
func (s Summary) OrbitRadius() float32 {
	r, _ := s.EstimatedRadius.Float32()
	return r * 4
}

// Orientation returns the body's current spin as a rotation
func (b Body) Orientation() mgl32.Quat {
	return b.Spin.Orientation()
}
