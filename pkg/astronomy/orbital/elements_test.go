package orbital

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularOrbit(t *testing.T) {
	mu := 1.32712440018e20 // G·M☉, m³/s²
	a := 1.495978707e11
	oe := FromDegrees(a, 0, 0, 0, 0, 90)

	pos, vel := oe.ToCartesian(mu)
	assert.InEpsilon(t, a, pos.Len(), 1e-12)
	assert.InEpsilon(t, CircularSpeed(mu, a), vel.Len(), 1e-12)
	assert.InDelta(t, 0, pos.Dot(vel)/(pos.Len()*vel.Len()), 1e-12)
	assert.InDelta(t, 0, pos[1]-a, a*1e-12, "M=90° puts the body on +y")
}

func TestEccentricOrbitVisViva(t *testing.T) {
	mu := 4.0
	oe := FromDegrees(30, 0.4, 12, 40, 75, 0)
	require.NoError(t, oe.Validate())

	pos, vel := oe.ToCartesian(mu)
	r := pos.Len()
	assert.InEpsilon(t, oe.Perihelion(), r, 1e-12)

	want := math.Sqrt(mu * (2/r - 1/oe.SemiMajorAxis))
	assert.InEpsilon(t, want, vel.Len(), 1e-12)

	// inclination is the angle between the orbit normal and +z
	h := pos.Cross(vel)
	assert.InDelta(t, oe.Inclination, math.Acos(h[2]/h.Len()), 1e-12)
}

func TestOrbitGeometry(t *testing.T) {
	oe := OrbitalElements{SemiMajorAxis: 10, Eccentricity: 0.5}
	assert.Equal(t, 5.0, oe.Perihelion())
	assert.Equal(t, 15.0, oe.Aphelion())
	assert.InEpsilon(t, 2*math.Pi*math.Sqrt(1000), oe.Period(1), 1e-12)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, OrbitalElements{SemiMajorAxis: 1, Eccentricity: 1}.Validate(), ErrUnboundOrbit)
	assert.ErrorIs(t, OrbitalElements{SemiMajorAxis: -1}.Validate(), ErrUnboundOrbit)
	assert.NoError(t, OrbitalElements{SemiMajorAxis: 1, Eccentricity: 0.99}.Validate())
}
