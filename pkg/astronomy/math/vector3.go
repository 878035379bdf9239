package math

import (
	"errors"
	"fmt"
	"math/big"
)

// DefaultPrecision is the significand width, in bits, used when a scenario
// does not pick one.
const DefaultPrecision uint = 128

var (
	ErrInvalidPrecision  = errors.New("astromath: precision must be positive")
	ErrPrecisionMismatch = errors.New("astromath: operands carry different precisions")
	ErrZeroMagnitude     = errors.New("astromath: cannot normalize a zero-magnitude vector")
	ErrParse             = errors.New("astromath: invalid number")
)

// Context fixes the precision and rounding mode for every scalar and vector
// it builds. Vectors from different contexts must not be mixed.
type Context struct {
	prec uint
	mode big.RoundingMode
}

// NewContext creates a context producing values with prec bits of significand
func NewContext(prec uint) (*Context, error) {
	if prec == 0 {
		return nil, ErrInvalidPrecision
	}
	return &Context{prec: prec, mode: big.ToNearestEven}, nil
}

// MustContext is NewContext for fixed, known-good precisions.
func MustContext(prec uint) *Context {
	ctx, err := NewContext(prec)
	if err != nil {
		panic(err)
	}
	return ctx
}

// Precision returns the significand width in bits
func (c *Context) Precision() uint {
	return c.prec
}

func (c *Context) newFloat() *big.Float {
	return new(big.Float).SetPrec(c.prec).SetMode(c.mode)
}

// Scalar returns f at the context precision
func (c *Context) Scalar(f float64) *big.Float {
	return c.newFloat().SetFloat64(f)
}

// ParseScalar parses a decimal string ("1.989e30") at the context precision
// without passing through float64.
func (c *Context) ParseScalar(s string) (*big.Float, error) {
	f, _, err := big.ParseFloat(s, 10, c.prec, c.mode)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrParse, s, err)
	}
	if f.IsInf() {
		return nil, fmt.Errorf("%w %q: not finite", ErrParse, s)
	}
	return f, nil
}

// Zero returns the zero vector
func (c *Context) Zero() Vector3 {
	return Vector3{X: c.newFloat(), Y: c.newFloat(), Z: c.newFloat(), prec: c.prec}
}

// Vector builds a vector from float64 components
func (c *Context) Vector(x, y, z float64) Vector3 {
	return Vector3{X: c.Scalar(x), Y: c.Scalar(y), Z: c.Scalar(z), prec: c.prec}
}

// ParseVector builds a vector from three decimal strings. Empty components
// are read as zero.
func (c *Context) ParseVector(comps [3]string) (Vector3, error) {
	v := c.Zero()
	dst := [3]*big.Float{v.X, v.Y, v.Z}
	for i, s := range comps {
		if s == "" {
			continue
		}
		f, err := c.ParseScalar(s)
		if err != nil {
			return Vector3{}, err
		}
		dst[i].Set(f)
	}
	return v, nil
}

// Vector3 represents a 3D vector with arbitrary-precision components.
// Operations return new values; only AddInPlace mutates.
type Vector3 struct {
	X, Y, Z *big.Float

	prec uint
}

// Precision returns the significand width the vector was built with
func (v Vector3) Precision() uint {
	return v.prec
}

func (v Vector3) same(other Vector3) {
	if v.prec != other.prec {
		panic(fmt.Errorf("%w: %d != %d", ErrPrecisionMismatch, v.prec, other.prec))
	}
}

func (v Vector3) newFloat() *big.Float {
	return new(big.Float).SetPrec(v.prec).SetMode(big.ToNearestEven)
}

// Add returns the sum of two vectors
func (v Vector3) Add(other Vector3) Vector3 {
	v.same(other)
	return Vector3{
		X:    v.newFloat().Add(v.X, other.X),
		Y:    v.newFloat().Add(v.Y, other.Y),
		Z:    v.newFloat().Add(v.Z, other.Z),
		prec: v.prec,
	}
}

// AddInPlace adds other to v, reusing v's storage
func (v *Vector3) AddInPlace(other Vector3) {
	v.same(other)
	v.X.Add(v.X, other.X)
	v.Y.Add(v.Y, other.Y)
	v.Z.Add(v.Z, other.Z)
}

// Sub returns the difference between two vectors
func (v Vector3) Sub(other Vector3) Vector3 {
	v.same(other)
	return Vector3{
		X:    v.newFloat().Sub(v.X, other.X),
		Y:    v.newFloat().Sub(v.Y, other.Y),
		Z:    v.newFloat().Sub(v.Z, other.Z),
		prec: v.prec,
	}
}

// Neg returns -v
func (v Vector3) Neg() Vector3 {
	return Vector3{
		X:    v.newFloat().Neg(v.X),
		Y:    v.newFloat().Neg(v.Y),
		Z:    v.newFloat().Neg(v.Z),
		prec: v.prec,
	}
}

// Scale returns the vector scaled by a scalar
func (v Vector3) Scale(s *big.Float) Vector3 {
	return Vector3{
		X:    v.newFloat().Mul(v.X, s),
		Y:    v.newFloat().Mul(v.Y, s),
		Z:    v.newFloat().Mul(v.Z, s),
		prec: v.prec,
	}
}

// Dot returns the dot product of two vectors
func (v Vector3) Dot(other Vector3) *big.Float {
	v.same(other)
	sum := v.newFloat().Mul(v.X, other.X)
	sum.Add(sum, v.newFloat().Mul(v.Y, other.Y))
	sum.Add(sum, v.newFloat().Mul(v.Z, other.Z))
	return sum
}

// Cross returns the cross product of two vectors
func (v Vector3) Cross(other Vector3) Vector3 {
	v.same(other)
	term := func(a, b, c, d *big.Float) *big.Float {
		left := v.newFloat().Mul(a, b)
		return left.Sub(left, v.newFloat().Mul(c, d))
	}
	return Vector3{
		X:    term(v.Y, other.Z, v.Z, other.Y),
		Y:    term(v.Z, other.X, v.X, other.Z),
		Z:    term(v.X, other.Y, v.Y, other.X),
		prec: v.prec,
	}
}

// Magnitude returns the length of the vector
func (v Vector3) Magnitude() *big.Float {
	return v.newFloat().Sqrt(v.Dot(v))
}

// Normalize returns a unit vector in the same direction.
// The zero vector has no direction and yields ErrZeroMagnitude.
func (v Vector3) Normalize() (Vector3, error) {
	mag := v.Magnitude()
	if mag.Sign() == 0 {
		return Vector3{}, ErrZeroMagnitude
	}
	return Vector3{
		X:    v.newFloat().Quo(v.X, mag),
		Y:    v.newFloat().Quo(v.Y, mag),
		Z:    v.newFloat().Quo(v.Z, mag),
		prec: v.prec,
	}, nil
}

// Distance returns the distance between two vectors
func (v Vector3) Distance(other Vector3) *big.Float {
	return v.Sub(other).Magnitude()
}

// IsZero checks if the vector is zero
func (v Vector3) IsZero() bool {
	return v.X.Sign() == 0 && v.Y.Sign() == 0 && v.Z.Sign() == 0
}

// Equal reports whether both vectors hold exactly the same values
// IsInf reports whether any component is infinite
func (v Vector3) IsInf() bool {
	return v.X.IsInf() || v.Y.IsInf() || v.Z.IsInf()
}

func (v Vector3) Equal(other Vector3) bool {
	return v.prec == other.prec &&
		v.X.Cmp(other.X) == 0 && v.Y.Cmp(other.Y) == 0 && v.Z.Cmp(other.Z) == 0
}

// Copy returns a deep copy that shares no storage with v
func (v Vector3) Copy() Vector3 {
	return Vector3{
		X:    v.newFloat().Set(v.X),
		Y:    v.newFloat().Set(v.Y),
		Z:    v.newFloat().Set(v.Z),
		prec: v.prec,
	}
}

// Text formats each component with the given number of significant digits
func (v Vector3) Text(digits int) [3]string {
	return [3]string{v.X.Text('g', digits), v.Y.Text('g', digits), v.Z.Text('g', digits)}
}

func (v Vector3) String() string {
	t := v.Text(10)
	return fmt.Sprintf("(%s, %s, %s)", t[0], t[1], t[2])
}
