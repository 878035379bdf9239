package nbody

import (
	"fmt"
	"math/big"

	errorsmod "cosmossdk.io/errors"

	astromath "github.com/oxygene76/hpgravity/pkg/astronomy/math"
)

// Pair indexes two distinct bodies, I < J
type Pair struct {
	I, J int
}

// PairOrder permutes the pair list in place before a step evaluates it.
// It must neither drop nor repeat a pair.
type PairOrder func(pairs []Pair)

// Interaction is the outcome of evaluating one pair
type Interaction struct {
	Distance *big.Float
	Force    *big.Float

	UnitAB astromath.Vector3 // from A towards B
	UnitBA astromath.Vector3 // from B towards A

	AccA astromath.Vector3
	AccB astromath.Vector3
}

// allPairs enumerates every unordered pair of n bodies once
func allPairs(n int) []Pair {
	pairs := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, Pair{I: i, J: j})
		}
	}
	return pairs
}

// PairInteraction evaluates Newtonian gravity between A and B.
//
// The force is formed from both masses and then divided by each body's own
// mass: F = G·mA·mB/r², aA = F/mA, aB = F/mB.
func PairInteraction(g, massA *big.Float, posA astromath.Vector3, massB *big.Float, posB astromath.Vector3) (Interaction, error) {
	prec := posA.Precision()
	newFloat := func() *big.Float { return new(big.Float).SetPrec(prec) }

	r := posA.Distance(posB)
	if r.Sign() == 0 {
		return Interaction{}, ErrSingularity.Wrap("zero separation")
	}

	unitAB, err := posB.Sub(posA).Normalize()
	if err != nil {
		return Interaction{}, ErrSingularity.Wrap(err.Error())
	}
	unitBA, err := posA.Sub(posB).Normalize()
	if err != nil {
		return Interaction{}, ErrSingularity.Wrap(err.Error())
	}

	r2 := newFloat().Mul(r, r)
	force := newFloat().Mul(g, massA)
	force.Mul(force, massB)
	force.Quo(force, r2)

	accA := newFloat().Quo(force, massA)
	accB := newFloat().Quo(force, massB)

	return Interaction{
		Distance: r,
		Force:    force,
		UnitAB:   unitAB,
		UnitBA:   unitBA,
		AccA:     unitAB.Scale(accA),
		AccB:     unitBA.Scale(accB),
	}, nil
}

// accelerations evaluates every pair at the given positions and returns the
// per-body sum of pairwise accelerations.
//
// Contributions land in a per-(body, partner) slot and are summed in partner
// index order, so the result does not depend on the order pairs are visited.
func (s *System) accelerations(positions []astromath.Vector3) ([]astromath.Vector3, error) {
	n := len(positions)
	slots := make([][]astromath.Vector3, n)
	for i := range slots {
		slots[i] = make([]astromath.Vector3, n)
	}

	pairs := make([]Pair, len(s.pairs))
	copy(pairs, s.pairs)
	if s.pairOrder != nil {
		s.pairOrder(pairs)
	}

	for _, p := range pairs {
		a, b := &s.bodies[p.I], &s.bodies[p.J]
		in, err := PairInteraction(s.g, a.Mass, positions[p.I], b.Mass, positions[p.J])
		if err != nil {
			return nil, errorsmod.Wrapf(err, "bodies %q and %q", a.ID, b.ID)
		}
		if slots[p.I][p.J].X != nil {
			panic(fmt.Sprintf("nbody: pair (%d, %d) evaluated twice", p.I, p.J))
		}
		slots[p.I][p.J] = in.AccA
		slots[p.J][p.I] = in.AccB
	}

	sums := make([]astromath.Vector3, n)
	for i := range sums {
		sum := s.ctx.Zero()
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if slots[i][j].X == nil {
				panic(fmt.Sprintf("nbody: pair (%d, %d) never evaluated", min(i, j), max(i, j)))
			}
			sum.AddInPlace(slots[i][j])
		}
		sums[i] = sum
	}
	return sums, nil
}
