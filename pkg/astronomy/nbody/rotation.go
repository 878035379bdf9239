package nbody

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Spin is a constant angular rate about a fixed local axis
type Spin struct {
	Axis  mgl32.Vec3
	Rate  float64 // radians per step
	Angle float64 // accumulated, in [0, 2π)
}

// Spinning reports whether the spin has a usable axis and a nonzero rate
func (s Spin) Spinning() bool {
	return s.Rate != 0 && s.Axis.Len() > 0
}

// Advance accumulates one step of rotation
func (s *Spin) Advance() {
	if !s.Spinning() {
		return
	}
	s.Angle = math.Mod(s.Angle+s.Rate, 2*math.Pi)
	if s.Angle < 0 {
		s.Angle += 2 * math.Pi
	}
}

// Orientation returns the accumulated rotation as a quaternion
func (s Spin) Orientation() mgl32.Quat {
	if !s.Spinning() {
		return mgl32.QuatIdent()
	}
	return mgl32.QuatRotate(float32(s.Angle), s.Axis.Normalize())
}

// Rotate advances every spinning body by one step. It does not touch
// gravitational state and may run at a different cadence from Step.
func (s *System) Rotate() {
	for i := range s.bodies {
		s.bodies[i].Spin.Advance()
	}
}
