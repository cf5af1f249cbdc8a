// Package model provides concrete integral sets for the FCI engine: the
// one-dimensional Hubbard chain and randomly generated symmetry-constrained
// integrals for cross-checks.
package model

import (
	"fmt"
	"math/rand/v2"

	"detci/irreps"
)

// Hubbard is the one-dimensional Hubbard chain with open boundaries,
// hopping -t between neighboring sites and on-site repulsion U. The chain
// carries no spatial symmetry, so all orbitals live in irrep 0 of C1.
type Hubbard struct {
	sites int
	t     float64
	u     float64
}

// NewHubbard returns the Hubbard chain with the given number of sites,
// hopping t and on-site repulsion U.
func NewHubbard(sites int, t, u float64) Hubbard {
	if sites < 1 {
		panic(fmt.Sprintf("%d", sites))
	}
	return Hubbard{sites: sites, t: t, u: u}
}

func (h Hubbard) NumOrbitals() int         { return h.sites }
func (h Hubbard) Group() irreps.Group      { return irreps.C1 }
func (h Hubbard) OrbitalIrrep(orb int) int { return 0 }
func (h Hubbard) CoreEnergy() float64      { return 0 }

func (h Hubbard) OneBody(i, j int) float64 {
	if i-j == 1 || j-i == 1 {
		return -h.t
	}
	return 0
}

// TwoBody is <ij|kl> in physicist notation. For the on-site interaction all
// four indices must coincide.
func (h Hubbard) TwoBody(i, j, k, l int) float64 {
	if i == j && j == k && k == l {
		return h.u
	}
	return 0
}

// Random is a randomly generated integral set respecting hermiticity, the
// 8-fold permutation symmetry of real two-electron integrals and the
// point-group selection rules for the given orbital irreps. It exercises
// code paths with mixed orbital irreps that the Hubbard chain cannot reach.
type Random struct {
	group    irreps.Group
	orbIrrep []int
	core     float64
	oneBody  []float64
	// eri is in chemist notation (ij|kl).
	eri []float64
}

// NewRandom returns random integrals for the given orbital irreps, drawn
// uniformly from (-1, 1) with the source rng.
func NewRandom(group irreps.Group, orbIrrep []int, rng *rand.Rand) *Random {
	l := len(orbIrrep)
	if l < 1 {
		panic(fmt.Sprintf("%d", l))
	}
	for _, irr := range orbIrrep {
		if irr < 0 || irr >= group.NumIrreps() {
			panic(fmt.Sprintf("%d %d", irr, group.NumIrreps()))
		}
	}

	r := &Random{
		group:    group,
		orbIrrep: append([]int(nil), orbIrrep...),
		core:     2*rng.Float64() - 1,
		oneBody:  make([]float64, l*l),
		eri:      make([]float64, l*l*l*l),
	}

	for i := 0; i < l; i++ {
		for j := i; j < l; j++ {
			if orbIrrep[i] != orbIrrep[j] {
				continue
			}
			val := 2*rng.Float64() - 1
			r.oneBody[i+l*j] = val
			r.oneBody[j+l*i] = val
		}
	}

	// Fill canonical chemist indices i>=j, k>=l, (i,j)>=(k,l) and expand
	// to the 8-fold symmetric images.
	for i := 0; i < l; i++ {
		for j := 0; j <= i; j++ {
			for k := 0; k <= i; k++ {
				for lo := 0; lo <= k; lo++ {
					if i == k && lo > j {
						continue
					}
					prod := irreps.Product(irreps.Product(orbIrrep[i], orbIrrep[j]), irreps.Product(orbIrrep[k], orbIrrep[lo]))
					if prod != 0 {
						continue
					}
					val := 2*rng.Float64() - 1
					for _, idx := range [][4]int{
						{i, j, k, lo}, {j, i, k, lo}, {i, j, lo, k}, {j, i, lo, k},
						{k, lo, i, j}, {lo, k, i, j}, {k, lo, j, i}, {lo, k, j, i},
					} {
						r.eri[idx[0]+l*(idx[1]+l*(idx[2]+l*idx[3]))] = val
					}
				}
			}
		}
	}
	return r
}

func (r *Random) NumOrbitals() int         { return len(r.orbIrrep) }
func (r *Random) Group() irreps.Group      { return r.group }
func (r *Random) OrbitalIrrep(orb int) int { return r.orbIrrep[orb] }
func (r *Random) CoreEnergy() float64      { return r.core }

func (r *Random) OneBody(i, j int) float64 {
	return r.oneBody[i+len(r.orbIrrep)*j]
}

// TwoBody is <ij|kl> in physicist notation, read from the chemist-notation
// tensor as (ik|jl).
func (r *Random) TwoBody(i, j, k, l int) float64 {
	n := len(r.orbIrrep)
	return r.eri[i+n*(k+n*(j+n*l))]
}
