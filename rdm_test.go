package detci

import (
	"fmt"
	"math"
	"testing"

	"detci/model"
)

func groundVector(t *testing.T, f *FCI) ([]float64, float64) {
	t.Helper()
	ground := make([]float64, f.VecLength(0))
	ground[f.LowestEnergyDeterminant()] = 1
	energy, err := f.GroundState(ground)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return ground, energy
}

func TestFill1RDM(t *testing.T) {
	t.Parallel()
	for fi, f := range []*FCI{
		New(model.NewHubbard(4, 1, 2), 2, 2, 0, 25, 0),
		New(ciModel(4), 2, 1, 1, 25, 0),
	} {
		t.Run(fmt.Sprintf("%d", fi), func(t *testing.T) {
			t.Parallel()
			ground, _ := groundVector(t, f)
			l := f.L()
			oneRDM := make([]float64, l*l)
			f.Fill1RDM(ground, oneRDM)

			// The trace counts the electrons.
			var trace float64
			for i := 0; i < l; i++ {
				trace += oneRDM[i+l*i]
			}
			if want := float64(f.NelUp() + f.NelDown()); math.Abs(trace-want) > 1e-10 {
				t.Fatalf("%f, expected %f", trace, want)
			}

			// The diagonal holds the orbital occupations.
			occ := make([]float64, f.VecLength(0))
			for orb := 0; orb < l; orb++ {
				f.ActWithNumberOperator(orb, occ, ground)
				var want float64
				for i, v := range occ {
					want += v * ground[i]
				}
				if math.Abs(oneRDM[orb+l*orb]-want) > 1e-10 {
					t.Fatalf("%d: %f, expected %f", orb, oneRDM[orb+l*orb], want)
				}
			}
		})
	}
}

func TestFill2RDM(t *testing.T) {
	t.Parallel()
	for fi, f := range []*FCI{
		New(model.NewHubbard(4, 1, 4), 2, 2, 0, 25, 0),
		New(ciModel(4), 2, 1, 0, 25, 0),
		New(ciModel(4), 2, 1, 1, 25, 0),
	} {
		t.Run(fmt.Sprintf("%d", fi), func(t *testing.T) {
			t.Parallel()
			ground, energy := groundVector(t, f)
			l := f.L()
			twoRDM := make([]float64, l*l*l*l)

			// The energy recomputed from the 2-RDM is an independent
			// contraction path against the integrals.
			if got := f.Fill2RDM(ground, twoRDM); math.Abs(got-energy) > 1e-8 {
				t.Fatalf("%f, expected %f", got, energy)
			}

			// Contracting the 2-RDM reproduces the 1-RDM.
			oneRDM := make([]float64, l*l)
			f.Fill1RDM(ground, oneRDM)
			norm := float64(f.NelUp() + f.NelDown() - 1)
			for i := 0; i < l; i++ {
				for j := 0; j < l; j++ {
					var contracted float64
					for k := 0; k < l; k++ {
						contracted += twoRDM[i+l*(k+l*(j+l*k))]
					}
					contracted /= norm
					if math.Abs(contracted-oneRDM[i+l*j]) > 1e-10 {
						t.Fatalf("%d %d: %f, expected %f", i, j, contracted, oneRDM[i+l*j])
					}
				}
			}
		})
	}
}

func TestFill3RDM(t *testing.T) {
	t.Parallel()
	for fi, f := range []*FCI{
		New(model.NewHubbard(4, 1, 2), 2, 1, 0, 25, 0),
		New(ciModel(4), 2, 2, 0, 25, 0),
	} {
		t.Run(fmt.Sprintf("%d", fi), func(t *testing.T) {
			t.Parallel()
			ground, _ := groundVector(t, f)
			l := f.L()
			twoRDM := make([]float64, l*l*l*l)
			f.Fill2RDM(ground, twoRDM)
			threeRDM := make([]float64, l*l*l*l*l*l)
			f.Fill3RDM(ground, threeRDM)

			// Contracting the last particle reproduces the 2-RDM.
			norm := float64(f.NelUp() + f.NelDown() - 2)
			for i := 0; i < l; i++ {
				for j := 0; j < l; j++ {
					for k := 0; k < l; k++ {
						for m := 0; m < l; m++ {
							var contracted float64
							for n := 0; n < l; n++ {
								contracted += threeRDM[i+l*(j+l*(n+l*(k+l*(m+l*n))))]
							}
							contracted /= norm
							want := twoRDM[i+l*(j+l*(k+l*m))]
							if math.Abs(contracted-want) > 1e-9 {
								t.Fatalf("%d %d %d %d: %f, expected %f", i, j, k, m, contracted, want)
							}
						}
					}
				}
			}
		})
	}
}

func TestFill3RDMSymmetry(t *testing.T) {
	t.Parallel()
	for fi, f := range []*FCI{
		New(model.NewHubbard(4, 1, 2), 2, 1, 0, 25, 0),
		New(ciModel(4), 2, 2, 0, 25, 0),
	} {
		t.Run(fmt.Sprintf("%d", fi), func(t *testing.T) {
			t.Parallel()
			ground, _ := groundVector(t, f)
			l := f.L()
			threeRDM := make([]float64, l*l*l*l*l*l)
			f.Fill3RDM(ground, threeRDM)

			// Gamma_{ijk,lmn} with creator-annihilator pairs (i,l), (j,m),
			// (k,n) is invariant under simultaneous permutations of the pairs
			// and under swapping creators with annihilators.
			perms := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
			at := func(c, a [3]int) float64 {
				return threeRDM[c[0]+l*(c[1]+l*(c[2]+l*(a[0]+l*(a[1]+l*a[2]))))]
			}
			for i := 0; i < l; i++ {
				for j := 0; j < l; j++ {
					for k := 0; k < l; k++ {
						for m := 0; m < l; m++ {
							for n := 0; n < l; n++ {
								for o := 0; o < l; o++ {
									crea := [3]int{i, j, k}
									anni := [3]int{m, n, o}
									value := at(crea, anni)
									for pi, p := range perms {
										pc := [3]int{crea[p[0]], crea[p[1]], crea[p[2]]}
										pa := [3]int{anni[p[0]], anni[p[1]], anni[p[2]]}
										if got := at(pc, pa); got != value {
											t.Fatalf("perm %d of %v %v: %f, expected %f", pi, crea, anni, got, value)
										}
										if got := at(pa, pc); got != value {
											t.Fatalf("conjugate perm %d of %v %v: %f, expected %f", pi, crea, anni, got, value)
										}
									}
								}
							}
						}
					}
				}
			}
		})
	}
}
