package detci

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"

	"detci/irreps"
)

// occ returns the occupation (0 or 1) of orbital orb in the bitstring str.
func occ(str uint, orb int) int {
	return int(str>>uint(orb)) & 1
}

// phaseBelow returns the fermion parity of the occupied orbitals strictly
// below orb.
func phaseBelow(str uint, orb int) int {
	if parity(str & (1<<uint(orb) - 1)) {
		return -1
	}
	return 1
}

func parity(str uint) bool {
	n := 0
	for s := str; s != 0; s &= s - 1 {
		n++
	}
	return n%2 == 1
}

// DiagHam fills diag with the exact diagonal of the Hamiltonian per
// determinant, evaluated directly from the integrals restricted to occupied
// orbitals.
func (f *FCI) DiagHam(diag []float64) {
	if len(diag) != f.VecLength(0) {
		panic(fmt.Sprintf("%d %d", len(diag), f.VecLength(0)))
	}
	parfor(len(diag), func(lo, hi int) {
		for counter := lo; counter < hi; counter++ {
			strUp, strDown := f.stringsOf(0, counter)
			diag[counter] = f.diagElement(strUp, strDown)
		}
	})
}

func (f *FCI) diagElement(strUp, strDown uint) float64 {
	var res float64
	for o1 := 0; o1 < f.l; o1++ {
		n1 := occ(strUp, o1) + occ(strDown, o1)
		res += float64(n1) * f.g(o1, o1)
		for o2 := 0; o2 < f.l; o2++ {
			n2 := occ(strUp, o2) + occ(strDown, o2)
			res += 0.5 * float64(n1*n2) * f.v(o1, o1, o2, o2)
			res += 0.5 * float64(n1-occ(strUp, o1)*occ(strUp, o2)-occ(strDown, o1)*occ(strDown, o2)) * f.v(o1, o2, o2, o1)
		}
	}
	return res
}

// DiagHamSquared fills output with the exact diagonal of H^2 per
// determinant, via a closed-form Wick decomposition instead of squaring the
// operator.
func (f *FCI) DiagHamSquared(output []float64) {
	if len(output) != f.VecLength(0) {
		panic(fmt.Sprintf("%d %d", len(output), f.VecLength(0)))
	}

	// Orbitals per irrep, for the restricted (ak|ci) summation.
	orbsOfIrrep := make([][]int, f.numIrreps)
	for orb := 0; orb < f.l; orb++ {
		irr := f.orbIrrep[orb]
		orbsOfIrrep[irr] = append(orbsOfIrrep[irr], orb)
	}

	parfor(len(output), func(lo, hi int) {
		l := f.l
		jmat := make([]float64, l*l)
		kRegUp := make([]float64, l*l)
		kRegDown := make([]float64, l*l)
		kBarUp := make([]float64, l*l)
		kBarDown := make([]float64, l*l)

		for counter := lo; counter < hi; counter++ {
			strUp, strDown := f.stringsOf(0, counter)

			for i := 0; i < l; i++ {
				for j := i; j < l; j++ {
					var vJ, vKregUp, vKregDown, vKbarUp, vKbarDown float64
					if f.orbIrrep[i] == f.orbIrrep[j] {
						for k := 0; k < l; k++ {
							ex := f.v(i, k, k, j)
							vJ += f.v(i, j, k, k) * float64(occ(strUp, k)+occ(strDown, k))
							vKregUp += ex * float64(occ(strUp, k))
							vKregDown += ex * float64(occ(strDown, k))
							vKbarUp += ex * float64(1-occ(strUp, k))
							vKbarDown += ex * float64(1-occ(strDown, k))
						}
					}
					jmat[i+l*j], jmat[j+l*i] = vJ, vJ
					kRegUp[i+l*j], kRegUp[j+l*i] = vKregUp, vKregUp
					kRegDown[i+l*j], kRegDown[j+l*i] = vKregDown, vKregDown
					kBarUp[i+l*j], kBarUp[j+l*i] = vKbarUp, vKbarUp
					kBarDown[i+l*j], kBarDown[j+l*i] = vKbarDown, vKbarDown
				}
			}

			var diag float64
			for i := 0; i < l; i++ {
				ni := occ(strUp, i) + occ(strDown, i)
				diag += f.g(i, i)*float64(ni) + 0.5*(jmat[i+l*i]*float64(ni)+
					kBarUp[i+l*i]*float64(occ(strUp, i))+kBarDown[i+l*i]*float64(occ(strDown, i)))
			}
			res := diag * diag

			for p := 0; p < l; p++ {
				for q := 0; q < l; q++ {
					if f.orbIrrep[p] != f.orbIrrep[q] {
						continue
					}
					special := float64(occ(strUp, p)*(1-occ(strUp, q)) + occ(strDown, p)*(1-occ(strDown, q)))
					gPlusJ := f.g(p, q) + jmat[p+l*q]
					kCrossUp := (kBarUp[p+l*q] - kRegUp[p+l*q]) * float64(occ(strUp, p)*(1-occ(strUp, q)))
					kCrossDown := (kBarDown[p+l*q] - kRegDown[p+l*q]) * float64(occ(strDown, p)*(1-occ(strDown, q)))
					res += gPlusJ*(special*gPlusJ+kCrossUp+kCrossDown) +
						0.25*(kCrossUp*kCrossUp+kCrossDown*kCrossDown)
				}
			}

			for k := 0; k < l; k++ {
				if occ(strUp, k)+occ(strDown, k) >= 2 {
					continue
				}
				for a := 0; a < l; a++ {
					akUp := occ(strUp, a) * (1 - occ(strUp, k))
					akDown := occ(strDown, a) * (1 - occ(strDown, k))
					specialAK := akUp + akDown
					if specialAK == 0 {
						continue
					}
					irrepAK := irreps.Product(f.orbIrrep[a], f.orbIrrep[k])
					for i := 0; i < l; i++ {
						if occ(strUp, i)+occ(strDown, i) >= 2 {
							continue
						}
						barIUp := 1 - occ(strUp, i)
						barIDown := 1 - occ(strDown, i)
						for _, c := range orbsOfIrrep[irreps.Product(irrepAK, f.orbIrrep[i])] {
							factICUp := occ(strUp, c) * barIUp
							factICDown := occ(strDown, c) * barIDown
							pre1 := float64((factICUp + factICDown) * specialAK)
							pre2 := float64(akUp*factICUp + akDown*factICDown)
							eriAKCI := f.v(a, k, c, i)
							eriAICK := f.v(a, i, c, k)
							res += 0.5 * eriAKCI * (pre1*eriAKCI - pre2*eriAICK)
						}
					}
				}
			}

			output[counter] = res
		}
	})
}

// MatrixElement evaluates <bra|H|ket> directly from the Slater-Condon rules
// on the occupation-pattern difference between the two determinants. It is
// zero whenever bra and ket differ in more than two orbitals per spin
// channel or break spin symmetry.
func (f *FCI) MatrixElement(braUp, braDown, ketUp, ketDown uint) float64 {
	var annihUp, creatUp, annihDown, creatDown []int
	for orb := 0; orb < f.l; orb++ {
		if occ(braUp, orb) != occ(ketUp, orb) {
			if occ(ketUp, orb) == 1 {
				if len(annihUp) == 2 {
					return 0
				}
				annihUp = append(annihUp, orb)
			} else {
				if len(creatUp) == 2 {
					return 0
				}
				creatUp = append(creatUp, orb)
			}
		}
		if occ(braDown, orb) != occ(ketDown, orb) {
			if occ(ketDown, orb) == 1 {
				if len(annihDown) == 2 {
					return 0
				}
				annihDown = append(annihDown, orb)
			} else {
				if len(creatDown) == 2 {
					return 0
				}
				creatDown = append(creatDown, orb)
			}
		}
	}
	if len(annihUp) != len(creatUp) || len(annihDown) != len(creatDown) {
		return 0
	}
	if len(annihUp)+len(annihDown) > 2 {
		return 0
	}

	// betweenPhase measures the ket parity between two orbital positions.
	betweenPhase := func(str uint, a, b int) int {
		lo, hi := a, b
		if lo > hi {
			lo, hi = hi, lo
		}
		phase := 1
		for orb := lo + 1; orb < hi; orb++ {
			if occ(str, orb) == 1 {
				phase = -phase
			}
		}
		return phase
	}

	switch {
	case len(annihUp) == 0 && len(annihDown) == 0:
		return f.diagElement(ketUp, ketDown)

	case len(annihUp) == 1 && len(annihDown) == 0:
		orbj, orbl := creatUp[0], annihUp[0]
		res := f.g(orbj, orbl)
		for o := 0; o < f.l; o++ {
			res += f.v(orbj, o, o, orbl)*(0.5-float64(occ(ketUp, o))) +
				f.v(o, o, orbj, orbl)*float64(occ(ketUp, o)+occ(ketDown, o))
		}
		return res * float64(betweenPhase(ketUp, orbj, orbl))

	case len(annihUp) == 0 && len(annihDown) == 1:
		orbj, orbl := creatDown[0], annihDown[0]
		res := f.g(orbj, orbl)
		for o := 0; o < f.l; o++ {
			res += f.v(orbj, o, o, orbl)*(0.5-float64(occ(ketDown, o))) +
				f.v(o, o, orbj, orbl)*float64(occ(ketUp, o)+occ(ketDown, o))
		}
		return res * float64(betweenPhase(ketDown, orbj, orbl))

	case len(annihUp) == 2:
		orbi, orbj := creatUp[0], creatUp[1]
		orbk, orbl := annihUp[0], annihUp[1]
		res := f.v(orbi, orbk, orbj, orbl) - f.v(orbi, orbl, orbj, orbk)
		phase := betweenPhase(ketUp, orbk, orbl) * betweenPhase(braUp, orbi, orbj)
		return res * float64(phase)

	case len(annihDown) == 2:
		orbi, orbj := creatDown[0], creatDown[1]
		orbk, orbl := annihDown[0], annihDown[1]
		res := f.v(orbi, orbk, orbj, orbl) - f.v(orbi, orbl, orbj, orbk)
		phase := betweenPhase(ketDown, orbk, orbl) * betweenPhase(braDown, orbi, orbj)
		return res * float64(phase)

	default: // one up and one down difference
		orbi, orbk := creatUp[0], annihUp[0]
		orbj, orbl := creatDown[0], annihDown[0]
		res := f.v(orbi, orbk, orbj, orbl)
		phase := betweenPhase(ketUp, orbi, orbk) * betweenPhase(ketDown, orbj, orbl)
		return res * float64(phase)
	}
}

// SpinSquared returns <vector| S^2 |vector> for a center-irrep-0 CI vector.
func (f *FCI) SpinSquared(vector []float64) float64 {
	vecLength := f.VecLength(0)
	if len(vector) != vecLength {
		panic(fmt.Sprintf("%d %d", len(vector), vecLength))
	}

	workers := runtime.GOMAXPROCS(0)
	partial := make([]float64, workers)
	var wg sync.WaitGroup
	per := (vecLength + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * per
		hi := min(lo+per, vecLength)
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			var res float64
			for counter := lo; counter < hi; counter++ {
				irrepUp := f.upIrrepOf(0, counter)
				irrepDown := irreps.Product(irrepUp, f.target)
				cntUp := (counter - f.jumps[0][irrepUp]) % f.numPerIrrepUp[irrepUp]
				cntDown := (counter - f.jumps[0][irrepUp]) / f.numPerIrrepUp[irrepUp]
				v2 := vector[counter] * vector[counter]

				for orbi := 0; orbi < f.l; orbi++ {
					diffII := f.lookupSignUp[irrepUp][orbi+f.l*(orbi+f.l*cntUp)] -
						f.lookupSignDown[irrepDown][orbi+f.l*(orbi+f.l*cntDown)]
					res += 0.75 * float64(diffII*diffII) * v2

					for orbj := orbi + 1; orbj < f.l; orbj++ {
						diffJJ := f.lookupSignUp[irrepUp][orbj+f.l*(orbj+f.l*cntUp)] -
							f.lookupSignDown[irrepDown][orbj+f.l*(orbj+f.l*cntDown)]
						res += 0.5 * float64(diffII*diffJJ) * v2

						irrepUpBis := irreps.Product(irrepUp, irreps.Product(f.orbIrrep[orbi], f.orbIrrep[orbj]))

						// - ( a_i,up^+ a_j,up )( a_j,down^+ a_i,down )
						entryDownJI := orbj + f.l*(orbi+f.l*cntDown)
						entryUpIJ := orbi + f.l*(orbj+f.l*cntUp)
						if prod := f.lookupSignUp[irrepUp][entryUpIJ] * f.lookupSignDown[irrepDown][entryDownJI]; prod != 0 {
							cntDownJI := f.lookupCntDown[irrepDown][entryDownJI]
							cntUpIJ := f.lookupCntUp[irrepUp][entryUpIJ]
							res -= float64(prod) * vector[f.jumps[0][irrepUpBis]+cntUpIJ+f.numPerIrrepUp[irrepUpBis]*cntDownJI] * vector[counter]
						}

						// - ( a_j,up^+ a_i,up )( a_i,down^+ a_j,down )
						entryDownIJ := orbi + f.l*(orbj+f.l*cntDown)
						entryUpJI := orbj + f.l*(orbi+f.l*cntUp)
						if prod := f.lookupSignUp[irrepUp][entryUpJI] * f.lookupSignDown[irrepDown][entryDownIJ]; prod != 0 {
							cntDownIJ := f.lookupCntDown[irrepDown][entryDownIJ]
							cntUpJI := f.lookupCntUp[irrepUp][entryUpJI]
							res -= float64(prod) * vector[f.jumps[0][irrepUpBis]+cntUpJI+f.numPerIrrepUp[irrepUpBis]*cntDownIJ] * vector[counter]
						}
					}
				}
			}
			partial[w] = res
		}(w, lo, hi)
	}
	wg.Wait()

	var result float64
	for _, p := range partial {
		result += p
	}
	if f.verbose > 0 {
		intended := math.Abs(0.5*float64(f.nelUp) - 0.5*float64(f.nelDown))
		log.Printf("measured S(S+1) = %f, intended = %f", result, intended*(intended+1))
	}
	return result
}

// LowestEnergyDeterminant returns the vector index of the determinant with
// the minimal diagonal Hamiltonian element, a cheap seed for the ground
// state search.
func (f *FCI) LowestEnergyDeterminant() int {
	energies := make([]float64, f.VecLength(0))
	f.DiagHam(energies)
	minIdx := 0
	for i, e := range energies {
		if e < energies[minIdx] {
			minIdx = i
		}
	}
	return minIdx
}

// ActWithNumberOperator computes result = n_orb |source>, the total number
// operator of the given orbital applied to a center-irrep-0 CI vector.
func (f *FCI) ActWithNumberOperator(orb int, result, source []float64) {
	if orb < 0 || orb >= f.l {
		panic(fmt.Sprintf("%d %d", orb, f.l))
	}
	parfor(f.VecLength(0), func(lo, hi int) {
		for counter := lo; counter < hi; counter++ {
			strUp, strDown := f.stringsOf(0, counter)
			result[counter] = float64(occ(strUp, orb)+occ(strDown, orb)) * source[counter]
		}
	})
}

// ApplyCreator maps dst = a^+_{orb,spin} |src>, where src lives in the
// determinant space of other and dst in the space of f. The electron counts
// of f must be those of other plus the created electron.
func (f *FCI) ApplyCreator(orb int, up bool, dst []float64, other *FCI, src []float64) {
	f.applySecondQuantized(orb, up, true, dst, other, src)
}

// ApplyAnnihilator maps dst = a_{orb,spin} |src>, where src lives in the
// determinant space of other and dst in the space of f.
func (f *FCI) ApplyAnnihilator(orb int, up bool, dst []float64, other *FCI, src []float64) {
	f.applySecondQuantized(orb, up, false, dst, other, src)
}

func (f *FCI) applySecondQuantized(orb int, up, create bool, dst []float64, other *FCI, src []float64) {
	if orb < 0 || orb >= f.l {
		panic(fmt.Sprintf("%d %d", orb, f.l))
	}
	if f.l != other.l {
		panic(fmt.Sprintf("%d %d", f.l, other.l))
	}
	vecLength := f.VecLength(0)
	if f.target != irreps.Product(other.target, f.orbIrrep[orb]) {
		zero(dst)
		return
	}

	// For down-spin operators the operator string has to anticommute past
	// all up-spin creators first.
	startPhase := 1
	if !up && f.nelUp%2 != 0 {
		startPhase = -1
	}

	parfor(vecLength, func(lo, hi int) {
		for counter := lo; counter < hi; counter++ {
			strUp, strDown := f.stringsOf(0, counter)
			str := strUp
			if !up {
				str = strDown
			}
			want := 1
			if !create {
				want = 0
			}
			if occ(str, orb) != want {
				dst[counter] = 0
				continue
			}
			toggled := str ^ 1<<uint(orb)
			phase := startPhase * phaseBelow(toggled, orb)
			if up {
				dst[counter] = float64(phase) * other.Coeff(toggled, strDown, src)
			} else {
				dst[counter] = float64(phase) * other.Coeff(strUp, toggled, src)
			}
		}
	})
}
