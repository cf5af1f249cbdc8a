package detci

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/floats"

	"detci/irreps"
)

// maxVecLength returns the largest vector length over all center irreps,
// the workspace size needed by the excitation chains below.
func (f *FCI) maxVecLength() int {
	res := 0
	for center := 0; center < f.numIrreps; center++ {
		if n := f.VecLength(center); n > res {
			res = n
		}
	}
	return res
}

// Fill1RDM fills oneRDM (size L*L, row-major) with the spin-summed
// one-particle density matrix Gamma_ij = < E_ij > of the given CI vector.
func (f *FCI) Fill1RDM(vector, oneRDM []float64) {
	if len(oneRDM) != f.l*f.l {
		panic(fmt.Sprintf("%d %d", len(oneRDM), f.l*f.l))
	}
	zero(oneRDM)
	workspace := make([]float64, f.VecLength(0))
	for anni := 0; anni < f.l; anni++ {
		for crea := anni; crea < f.l; crea++ {
			if f.orbIrrep[crea] != f.orbIrrep[anni] {
				continue
			}
			f.ApplyExcitation(vector, workspace, crea, anni, f.target)
			value := floats.Dot(workspace, vector)
			oneRDM[crea+f.l*anni] = value
			oneRDM[anni+f.l*crea] = value
		}
	}
}

// Fill2RDM fills twoRDM (size L^4) with the spin-summed two-particle density
// matrix Gamma_ijkl = < E_ik E_jl > - delta_jk < E_il >, stored at
// i + L*(j + L*(k + L*l)), and returns the total energy recomputed from the
// density matrix as an internal consistency check.
func (f *FCI) Fill2RDM(vector, twoRDM []float64) float64 {
	l := f.l
	if len(twoRDM) != l*l*l*l {
		panic(fmt.Sprintf("%d %d", len(twoRDM), l*l*l*l))
	}
	if f.nelUp+f.nelDown < 2 {
		panic(fmt.Sprintf("%d %d", f.nelUp, f.nelDown))
	}
	zero(twoRDM)

	length0 := f.VecLength(0)
	workspace1 := make([]float64, f.maxVecLength())
	workspace2 := make([]float64, length0)

	for center1 := 0; center1 < f.numIrreps; center1++ {
		target1 := irreps.Product(f.target, center1)
		work1 := workspace1[:f.VecLength(center1)]

		for anni1 := 0; anni1 < l; anni1++ {
			for crea1 := anni1; crea1 < l; crea1++ {
				prod1 := irreps.Product(f.orbIrrep[crea1], f.orbIrrep[anni1])
				if prod1 != center1 {
					continue
				}
				f.ApplyExcitation(vector, work1, crea1, anni1, f.target)

				if prod1 == 0 {
					value := floats.Dot(work1, vector)
					for jk := anni1; jk < l; jk++ {
						twoRDM[crea1+l*(jk+l*(jk+l*anni1))] -= value
					}
				}

				for crea2 := anni1; crea2 < l; crea2++ {
					for anni2 := anni1; anni2 < l; anni2++ {
						if irreps.Product(f.orbIrrep[crea2], f.orbIrrep[anni2]) != prod1 {
							continue
						}
						f.ApplyExcitation(work1, workspace2, crea2, anni2, target1)
						value := floats.Dot(workspace2, vector)
						twoRDM[crea2+l*(crea1+l*(anni2+l*anni1))] += value
					}
				}
			}
		}
	}

	// Complete the remaining index orderings from the computed canonical
	// block, using particle exchange and hermiticity.
	for anni1 := 0; anni1 < l; anni1++ {
		for crea1 := anni1; crea1 < l; crea1++ {
			prod1 := irreps.Product(f.orbIrrep[crea1], f.orbIrrep[anni1])
			for crea2 := anni1; crea2 < l; crea2++ {
				for anni2 := anni1; anni2 < l; anni2++ {
					if irreps.Product(f.orbIrrep[crea2], f.orbIrrep[anni2]) != prod1 {
						continue
					}
					value := twoRDM[crea2+l*(crea1+l*(anni2+l*anni1))]
					twoRDM[crea1+l*(crea2+l*(anni1+l*anni2))] = value
					twoRDM[anni2+l*(anni1+l*(crea2+l*crea1))] = value
					twoRDM[anni1+l*(anni2+l*(crea1+l*crea2))] = value
				}
			}
		}
	}

	energy := f.econst
	for orb1 := 0; orb1 < l; orb1++ {
		for orb2 := 0; orb2 < l; orb2++ {
			var exchange, trace float64
			for orb3 := 0; orb3 < l; orb3++ {
				exchange += f.v(orb1, orb3, orb3, orb2)
				trace += twoRDM[orb1+l*(orb3+l*(orb2+l*orb3))]
				for orb4 := 0; orb4 < l; orb4++ {
					energy += 0.5 * twoRDM[orb1+l*(orb2+l*(orb3+l*orb4))] * f.v(orb1, orb3, orb2, orb4)
				}
			}
			energy += (f.g(orb1, orb2) + 0.5*exchange) * trace / float64(f.nelUp+f.nelDown-1)
		}
	}
	if f.verbose > 0 {
		log.Printf("energy recomputed from the 2-RDM = %f", energy)
	}
	return energy
}

// Fill3RDM fills threeRDM (size L^6) with the spin-summed three-particle
// density matrix
//
//	Gamma_{ijk,lmn} = < E_il E_jm E_kn >
//	                - delta_kl < E_jm E_in > - delta_jl < E_im E_kn >
//	                - delta_km < E_il E_jn >
//	                + delta_kl delta_im < E_jn > + delta_jl delta_km < E_in >
//
// stored at i + L*(j + L*(k + L*(l + L*(m + L*n)))).
func (f *FCI) Fill3RDM(vector, threeRDM []float64) {
	l := f.l
	if len(threeRDM) != l*l*l*l*l*l {
		panic(fmt.Sprintf("%d %d", len(threeRDM), l*l*l*l*l*l))
	}
	if f.nelUp+f.nelDown < 3 {
		panic(fmt.Sprintf("%d %d", f.nelUp, f.nelDown))
	}
	zero(threeRDM)

	length0 := f.VecLength(0)
	maxLength := f.maxVecLength()
	workspace1 := make([]float64, maxLength)
	workspace2 := make([]float64, maxLength)
	workspace3 := make([]float64, length0)

	for center1 := 0; center1 < f.numIrreps; center1++ {
		target1 := irreps.Product(f.target, center1)
		work1 := workspace1[:f.VecLength(center1)]

		for anni1 := 0; anni1 < l; anni1++ {
			for crea1 := anni1; crea1 < l; crea1++ {
				prod1 := irreps.Product(f.orbIrrep[crea1], f.orbIrrep[anni1])
				if prod1 != center1 {
					continue
				}
				f.ApplyExcitation(vector, work1, crea1, anni1, f.target)

				if prod1 == 0 {
					value := floats.Dot(work1, vector)
					for m := anni1; m < l; m++ {
						for orbl := anni1; orbl < l; orbl++ {
							threeRDM[m+l*(crea1+l*(orbl+l*(orbl+l*(m+l*anni1))))] += value
							threeRDM[crea1+l*(orbl+l*(m+l*(orbl+l*(m+l*anni1))))] += value
						}
					}
				}

				for center2 := 0; center2 < f.numIrreps; center2++ {
					target2 := irreps.Product(target1, center2)
					center3 := irreps.Product(center1, center2)
					work2 := workspace2[:f.VecLength(center3)]

					for crea2 := anni1; crea2 < l; crea2++ {
						for anni2 := anni1; anni2 < l; anni2++ {
							if irreps.Product(f.orbIrrep[crea2], f.orbIrrep[anni2]) != center2 {
								continue
							}
							f.ApplyExcitation(work1, work2, crea2, anni2, target1)

							if prod1 == center2 {
								value := floats.Dot(work2, vector)
								for orb := anni1; orb < l; orb++ {
									threeRDM[crea1+l*(crea2+l*(orb+l*(orb+l*(anni2+l*anni1))))] -= value
									threeRDM[crea2+l*(orb+l*(crea1+l*(orb+l*(anni2+l*anni1))))] -= value
									threeRDM[crea2+l*(crea1+l*(orb+l*(anni2+l*(orb+l*anni1))))] -= value
								}
							}

							for crea3 := crea2; crea3 < l; crea3++ {
								for anni3 := anni1; anni3 < l; anni3++ {
									if irreps.Product(f.orbIrrep[crea3], f.orbIrrep[anni3]) != center3 {
										continue
									}
									f.ApplyExcitation(work2, workspace3, crea3, anni3, target2)
									value := floats.Dot(workspace3, vector)
									threeRDM[crea3+l*(crea2+l*(crea1+l*(anni3+l*(anni2+l*anni1))))] += value
								}
							}
						}
					}
				}
			}
		}
	}

	// Expand the canonical block to the full 12-fold permutation symmetry:
	// simultaneous permutations of the creator and annihilator triplets,
	// and hermitian conjugation.
	for anni1 := 0; anni1 < l; anni1++ {
		for crea1 := anni1; crea1 < l; crea1++ {
			prod1 := irreps.Product(f.orbIrrep[crea1], f.orbIrrep[anni1])
			for crea2 := anni1; crea2 < l; crea2++ {
				prod2 := irreps.Product(prod1, f.orbIrrep[crea2])
				for anni2 := anni1; anni2 < l; anni2++ {
					prod3 := irreps.Product(prod2, f.orbIrrep[anni2])
					for crea3 := crea2; crea3 < l; crea3++ {
						prod4 := irreps.Product(prod3, f.orbIrrep[crea3])
						for anni3 := anni1; anni3 < l; anni3++ {
							if prod4 != f.orbIrrep[anni3] {
								continue
							}
							value := threeRDM[crea3+l*(crea2+l*(crea1+l*(anni3+l*(anni2+l*anni1))))]
							threeRDM[crea2+l*(crea3+l*(crea1+l*(anni2+l*(anni3+l*anni1))))] = value
							threeRDM[crea2+l*(crea1+l*(crea3+l*(anni2+l*(anni1+l*anni3))))] = value
							threeRDM[crea3+l*(crea1+l*(crea2+l*(anni3+l*(anni1+l*anni2))))] = value
							threeRDM[crea1+l*(crea3+l*(crea2+l*(anni1+l*(anni3+l*anni2))))] = value
							threeRDM[crea1+l*(crea2+l*(crea3+l*(anni1+l*(anni2+l*anni3))))] = value
							threeRDM[anni3+l*(anni2+l*(anni1+l*(crea3+l*(crea2+l*crea1))))] = value
							threeRDM[anni2+l*(anni3+l*(anni1+l*(crea2+l*(crea3+l*crea1))))] = value
							threeRDM[anni2+l*(anni1+l*(anni3+l*(crea2+l*(crea1+l*crea3))))] = value
							threeRDM[anni3+l*(anni1+l*(anni2+l*(crea3+l*(crea1+l*crea2))))] = value
							threeRDM[anni1+l*(anni3+l*(anni2+l*(crea1+l*(crea3+l*crea2))))] = value
							threeRDM[anni1+l*(anni2+l*(anni3+l*(crea1+l*(crea2+l*crea3))))] = value
						}
					}
				}
			}
		}
	}
}
