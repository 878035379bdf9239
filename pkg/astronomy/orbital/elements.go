package orbital

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var ErrUnboundOrbit = errors.New("orbital: eccentricity must be in [0, 1) and semi-major axis positive")

// OrbitalElements represents Keplerian orbital elements. Angles are radians;
// distances use the simulation length unit.
type OrbitalElements struct {
	SemiMajorAxis          float64 // a
	Eccentricity           float64 // e (0-1)
	Inclination            float64 // i
	LongitudeAscendingNode float64 // Ω
	ArgumentPerihelion     float64 // ω
	MeanAnomaly            float64 // M at the initial step
}

// FromDegrees builds elements from angles given in degrees, the way
// scenario files carry them.
func FromDegrees(a, e, incDeg, nodeDeg, periDeg, meanDeg float64) OrbitalElements {
	rad := math.Pi / 180
	return OrbitalElements{
		SemiMajorAxis:          a,
		Eccentricity:           e,
		Inclination:            incDeg * rad,
		LongitudeAscendingNode: nodeDeg * rad,
		ArgumentPerihelion:     periDeg * rad,
		MeanAnomaly:            meanDeg * rad,
	}
}

// Validate rejects open or degenerate orbits
func (oe OrbitalElements) Validate() error {
	if oe.SemiMajorAxis <= 0 || oe.Eccentricity < 0 || oe.Eccentricity >= 1 {
		return ErrUnboundOrbit
	}
	return nil
}

// ToCartesian converts orbital elements to position and velocity relative to
// the central body. mu is G·(M + m) in simulation units, so velocity comes
// out as distance per step.
func (oe OrbitalElements) ToCartesian(mu float64) (pos, vel mgl64.Vec3) {
	E := oe.solveKeplersEquation()
	cosE, sinE := math.Cos(E), math.Sin(E)
	e := oe.Eccentricity
	a := oe.SemiMajorAxis
	b := math.Sqrt(1 - e*e)

	// perifocal frame
	x := a * (cosE - e)
	y := a * b * sinE
	n := math.Sqrt(mu / (a * a * a))
	rdot := a * n / (1 - e*cosE)
	vx := -rdot * sinE
	vy := rdot * b * cosE

	cosO, sinO := math.Cos(oe.LongitudeAscendingNode), math.Sin(oe.LongitudeAscendingNode)
	cosI, sinI := math.Cos(oe.Inclination), math.Sin(oe.Inclination)
	cosW, sinW := math.Cos(oe.ArgumentPerihelion), math.Sin(oe.ArgumentPerihelion)

	r11 := cosO*cosW - sinO*sinW*cosI
	r12 := -cosO*sinW - sinO*cosW*cosI
	r21 := sinO*cosW + cosO*sinW*cosI
	r22 := -sinO*sinW + cosO*cosW*cosI
	r31 := sinW * sinI
	r32 := cosW * sinI

	pos = mgl64.Vec3{r11*x + r12*y, r21*x + r22*y, r31*x + r32*y}
	vel = mgl64.Vec3{r11*vx + r12*vy, r21*vx + r22*vy, r31*vx + r32*vy}
	return pos, vel
}

// solveKeplersEquation solves M = E - e·sin(E) for E by Newton-Raphson
func (oe OrbitalElements) solveKeplersEquation() float64 {
	E := oe.MeanAnomaly
	if oe.Eccentricity > 0.8 {
		E = math.Pi
	}

	const tolerance = 1e-13
	for i := 0; i < 50; i++ {
		f := E - oe.Eccentricity*math.Sin(E) - oe.MeanAnomaly
		fp := 1 - oe.Eccentricity*math.Cos(E)
		delta := f / fp
		E -= delta
		if math.Abs(delta) < tolerance {
			break
		}
	}
	return E
}

// Perihelion returns the closest approach distance
func (oe OrbitalElements) Perihelion() float64 {
	return oe.SemiMajorAxis * (1 - oe.Eccentricity)
}

// Aphelion returns the farthest distance
func (oe OrbitalElements) Aphelion() float64 {
	return oe.SemiMajorAxis * (1 + oe.Eccentricity)
}

// Period returns the orbital period in steps
func (oe OrbitalElements) Period(mu float64) float64 {
	return 2 * math.Pi * math.Sqrt(math.Pow(oe.SemiMajorAxis, 3)/mu)
}

// CircularSpeed is the speed of a circular orbit of radius r
func CircularSpeed(mu, r float64) float64 {
	return math.Sqrt(mu / r)
}
