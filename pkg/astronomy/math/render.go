package math

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ToRender converts v to a single-precision vector for drawing and UI.
// The conversion is lossy and the result must not be fed back into a
// simulation.
func (v Vector3) ToRender() mgl32.Vec3 {
	x, _ := v.X.Float32()
	y, _ := v.Y.Float32()
	z, _ := v.Z.Float32()
	return mgl32.Vec3{x, y, z}
}

// FromRender lifts a render-space vector into the context precision
func (c *Context) FromRender(r mgl32.Vec3) Vector3 {
	return c.Vector(float64(r[0]), float64(r[1]), float64(r[2]))
}
