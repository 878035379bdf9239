package nbody

import (
	"math/big"
	"sort"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"github.com/go-gl/mathgl/mgl32"

	astromath "github.com/oxygene76/hpgravity/pkg/astronomy/math"
)

// G is the gravitational constant in m³/(kg·s²)
const G = "6.67430e-11"

// System owns the body arena and advances it one step at a time. It is not
// safe for concurrent use: a step and a read must never overlap.
type System struct {
	ctx    *astromath.Context
	bodies []Body
	index  map[string]int
	pairs  []Pair
	frame  Frame

	g          *big.Float
	integrator Integrator
	pairOrder  PairOrder
	logger     log.Logger

	steps uint64
}

type options struct {
	g          *big.Float
	integrator Integrator
	frameMode  FrameMode
	pairOrder  PairOrder
	logger     log.Logger
}

// Option customises Configure
type Option func(*options)

// WithGravitationalConstant overrides G
func WithGravitationalConstant(g *big.Float) Option {
	return func(o *options) { o.g = g }
}

// WithIntegrator selects the integration policy (LaggedEuler by default)
func WithIntegrator(i Integrator) Option {
	return func(o *options) { o.integrator = i }
}

// WithFrameMode selects how a reference frame body is applied
func WithFrameMode(m FrameMode) Option {
	return func(o *options) { o.frameMode = m }
}

// WithPairOrder permutes pair evaluation each step
func WithPairOrder(order PairOrder) Option {
	return func(o *options) { o.pairOrder = order }
}

// WithLogger attaches a logger
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Configure validates the bodies and builds a System.
//
// frameID names the reference frame body; it may be empty, in which case a
// single BodySpec flagged ReferenceFrame is used, if any.
func Configure(ctx *astromath.Context, specs []BodySpec, frameID string, opts ...Option) (*System, error) {
	if ctx == nil {
		return nil, ErrInvalidPrecision.Wrap("nil precision context")
	}
	o := options{integrator: LaggedEuler{}, logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.g == nil {
		g, err := ctx.ParseScalar(G)
		if err != nil {
			return nil, err
		}
		o.g = g
	}
	if len(specs) == 0 {
		return nil, ErrNoBodies
	}

	s := &System{
		ctx:        ctx,
		bodies:     make([]Body, 0, len(specs)),
		index:      make(map[string]int, len(specs)),
		frame:      Frame{Index: -1, Mode: o.frameMode},
		g:          new(big.Float).SetPrec(ctx.Precision()).Set(o.g),
		integrator: o.integrator,
		pairOrder:  o.pairOrder,
		logger:     o.logger,
	}

	var flagged []string
	for _, spec := range specs {
		body, err := newBody(ctx, spec)
		if err != nil {
			return nil, err
		}
		if _, dup := s.index[spec.ID]; dup {
			return nil, ErrDuplicateBody.Wrapf("%q", spec.ID)
		}
		s.index[spec.ID] = len(s.bodies)
		s.bodies = append(s.bodies, body)
		if spec.ReferenceFrame {
			flagged = append(flagged, spec.ID)
		}
	}

	if err := s.resolveFrame(frameID, flagged); err != nil {
		return nil, err
	}

	for i := 0; i < len(s.bodies)-1; i++ {
		for j := i + 1; j < len(s.bodies); j++ {
			if s.bodies[i].Position.Equal(s.bodies[j].Position) {
				return nil, ErrCoincidentBodies.Wrapf("%q and %q", s.bodies[i].ID, s.bodies[j].ID)
			}
		}
	}
	s.pairs = allPairs(len(s.bodies))

	frameName, _ := s.ReferenceFrame()
	s.logger.Debug("configured system",
		"bodies", len(s.bodies),
		"pairs", len(s.pairs),
		"precision", ctx.Precision(),
		"integrator", s.integrator.Name(),
		"reference_frame", frameName,
		"frame_mode", s.frame.Mode.String(),
	)
	return s, nil
}

func newBody(ctx *astromath.Context, spec BodySpec) (Body, error) {
	if spec.ID == "" {
		return Body{}, ErrInvalidBody.Wrap("empty identifier")
	}
	if spec.Mass == nil || spec.Mass.Sign() <= 0 {
		return Body{}, ErrNonPositiveMass.Wrapf("%q", spec.ID)
	}
	if spec.EstimatedRadius == nil || spec.EstimatedRadius.Sign() <= 0 {
		return Body{}, ErrNonPositiveRadius.Wrapf("%q", spec.ID)
	}
	if spec.Mass.IsInf() || spec.EstimatedRadius.IsInf() {
		return Body{}, ErrInvalidBody.Wrapf("%q mass and radius must be finite", spec.ID)
	}
	if spec.Position.X == nil {
		return Body{}, ErrInvalidBody.Wrapf("%q has no position", spec.ID)
	}
	if spec.Position.IsInf() {
		return Body{}, ErrInvalidBody.Wrapf("%q position must be finite", spec.ID)
	}
	if spec.Position.Precision() != ctx.Precision() {
		return Body{}, ErrInvalidPrecision.Wrapf("%q position has %d bits, want %d",
			spec.ID, spec.Position.Precision(), ctx.Precision())
	}

	acc := ctx.Zero()
	if spec.Velocity.X != nil {
		if spec.Velocity.Precision() != ctx.Precision() {
			return Body{}, ErrInvalidPrecision.Wrapf("%q velocity has %d bits, want %d",
				spec.ID, spec.Velocity.Precision(), ctx.Precision())
		}
		if spec.Velocity.IsInf() {
			return Body{}, ErrInvalidBody.Wrapf("%q velocity must be finite", spec.ID)
		}
		acc = spec.Velocity.Copy()
	}

	prec := ctx.Precision()
	return Body{
		ID:              spec.ID,
		Mass:            new(big.Float).SetPrec(prec).Set(spec.Mass),
		EstimatedRadius: new(big.Float).SetPrec(prec).Set(spec.EstimatedRadius),
		Position:        spec.Position.Copy(),
		Acceleration:    acc,
		Spin:            spec.Spin,
	}, nil
}

func (s *System) resolveFrame(frameID string, flagged []string) error {
	if len(flagged) > 1 {
		return ErrMultipleReferenceFrames.Wrapf("%v", flagged)
	}
	if frameID == "" {
		if len(flagged) == 1 {
			frameID = flagged[0]
		} else {
			return nil
		}
	}
	idx, ok := s.index[frameID]
	if !ok {
		return ErrUnknownBody.Wrapf("reference frame %q", frameID)
	}
	if len(flagged) == 1 && flagged[0] != frameID {
		return ErrMultipleReferenceFrames.Wrapf("%q and %q", frameID, flagged[0])
	}
	s.frame.Index = idx
	return nil
}

// Step advances the system by one unit of simulated time. On error the
// system is left exactly as it was before the call.
func (s *System) Step() error {
	st := State{
		Positions:     make([]astromath.Vector3, len(s.bodies)),
		Accelerations: make([]astromath.Vector3, len(s.bodies)),
	}
	for i := range s.bodies {
		st.Positions[i] = s.bodies[i].Position
		st.Accelerations[i] = s.bodies[i].Acceleration
	}

	next, err := s.integrator.Integrate(st, s.frame, s.accelerations)
	if err != nil {
		return errorsmod.Wrapf(err, "step %d", s.steps+1)
	}

	for i := range s.bodies {
		s.bodies[i].Position = next.Positions[i]
		s.bodies[i].Acceleration = next.Accelerations[i]
	}
	s.steps++
	return nil
}

// Steps returns the number of completed steps
func (s *System) Steps() uint64 {
	return s.steps
}

// Context returns the precision context every vector of the system uses
func (s *System) Context() *astromath.Context {
	return s.ctx
}

// GravitationalConstant returns a copy of G
func (s *System) GravitationalConstant() *big.Float {
	return new(big.Float).Copy(s.g)
}

// Integrator returns the active integration policy
func (s *System) Integrator() Integrator {
	return s.integrator
}

// FrameMode returns how the reference frame is applied
func (s *System) FrameMode() FrameMode {
	return s.frame.Mode
}

// ReferenceFrame returns the fixed body's identifier, if any
func (s *System) ReferenceFrame() (string, bool) {
	if s.frame.Index < 0 {
		return "", false
	}
	return s.bodies[s.frame.Index].ID, true
}

// IsReferenceFrame reports whether id is the fixed body
func (s *System) IsReferenceFrame(id string) bool {
	idx, ok := s.index[id]
	return ok && idx == s.frame.Index
}

// IDs returns body identifiers in arena order
func (s *System) IDs() []string {
	ids := make([]string, len(s.bodies))
	for i, b := range s.bodies {
		ids[i] = b.ID
	}
	return ids
}

// Body returns a deep copy of one body
func (s *System) Body(id string) (Body, error) {
	idx, ok := s.index[id]
	if !ok {
		return Body{}, ErrUnknownBody.Wrapf("%q", id)
	}
	return s.bodies[idx].Copy(), nil
}

// Bodies returns deep copies of all bodies in arena order
func (s *System) Bodies() []Body {
	out := make([]Body, len(s.bodies))
	for i, b := range s.bodies {
		out[i] = b.Copy()
	}
	return out
}

// Positions returns render-space positions keyed by body. With a reference
// frame the coordinates are relative to the frame body, which sits at the
// origin.
func (s *System) Positions() map[string]mgl32.Vec3 {
	out := make(map[string]mgl32.Vec3, len(s.bodies))
	for _, b := range s.bodies {
		p := b.Position
		if s.frame.Index >= 0 {
			p = p.Sub(s.bodies[s.frame.Index].Position)
		}
		out[b.ID] = p.ToRender()
	}
	return out
}

// Velocities returns the render-space acceleration field keyed by body
func (s *System) Velocities() map[string]mgl32.Vec3 {
	out := make(map[string]mgl32.Vec3, len(s.bodies))
	for _, b := range s.bodies {
		out[b.ID] = b.Acceleration.ToRender()
	}
	return out
}

// PhysicalSummary returns mass and radius for one body
func (s *System) PhysicalSummary(id string) (Summary, error) {
	idx, ok := s.index[id]
	if !ok {
		return Summary{}, ErrUnknownBody.Wrapf("%q", id)
	}
	b := s.bodies[idx]
	return Summary{
		ID:              b.ID,
		Mass:            new(big.Float).Copy(b.Mass),
		EstimatedRadius: new(big.Float).Copy(b.EstimatedRadius),
	}, nil
}

// Orientation returns a body's spin orientation
func (s *System) Orientation(id string) (mgl32.Quat, error) {
	idx, ok := s.index[id]
	if !ok {
		return mgl32.Quat{}, ErrUnknownBody.Wrapf("%q", id)
	}
	return s.bodies[idx].Orientation(), nil
}

// Copy creates a deep copy of the system
func (s *System) Copy() *System {
	c := *s
	c.bodies = s.Bodies()
	c.index = make(map[string]int, len(s.index))
	for k, v := range s.index {
		c.index[k] = v
	}
	c.pairs = append([]Pair(nil), s.pairs...)
	c.g = new(big.Float).Copy(s.g)
	return &c
}

// SortedIDs returns body identifiers in lexical order, for stable output
func (s *System) SortedIDs() []string {
	ids := s.IDs()
	sort.Strings(ids)
	return ids
}
