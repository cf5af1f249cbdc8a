// Package detci implements a determinant-based full configuration interaction engine.
//
// The many-electron wavefunction is expanded over Slater determinants
// classified by Abelian point-group symmetry and electron count. The
// Hamiltonian is never materialized: its action on a CI vector is evaluated
// from precomputed single-excitation lookup tables and dense contractions
// against the integral tensors.
//
// References:
//   - P.J. Knowles and N.C. Handy, A new determinant-based full configuration
//     interaction method, Chemical Physics Letters 111 (4-5), 315-321 (1984)
package detci

import (
	"fmt"
	"log"
	"math/bits"
	"math/rand/v2"

	"detci/irreps"
)

// Integrals supplies the one- and two-electron integrals of the electronic
// Hamiltonian. TwoBody is in physicist notation <ij|kl>; the engine converts
// to chemist notation internally. Implementations must be safe for
// concurrent reads.
type Integrals interface {
	NumOrbitals() int
	Group() irreps.Group
	OrbitalIrrep(orb int) int
	CoreEnergy() float64
	OneBody(i, j int) float64
	TwoBody(i, j, k, l int) float64
}

// FCI holds the determinant indexing tables and integral copies for a fixed
// electron count and wavefunction irrep. All tables are built at construction
// and read-only afterwards, so an FCI is safe for concurrent use except for
// the caller-supplied vector buffers.
type FCI struct {
	verbose  int
	maxMemMB float64

	l         int
	nelUp     int
	nelDown   int
	group     irreps.Group
	numIrreps int
	target    int
	orbIrrep  []int

	econst float64
	// gmat is G_ij = T_ij - 0.5 sum_k <ik|kj>.
	gmat []float64
	// eri is the two-body tensor in chemist notation (ij|kl).
	eri []float64

	numPerIrrepUp   []int
	numPerIrrepDown []int
	str2cntUp       [][]int
	str2cntDown     [][]int
	cnt2strUp       [][]uint
	cnt2strDown     [][]uint

	// Lookup tables for sign |new> = E_{crea,anni} |old>, indexed by
	// [irrepNew][crea + l*(anni + l*cntNew)]. A sign of zero marks a
	// forbidden transition.
	lookupCntUp     [][]int
	lookupIrrepUp   [][]int
	lookupSignUp    [][]int
	lookupCntDown   [][]int
	lookupIrrepDown [][]int
	lookupSignDown  [][]int

	// pairCrea[c][p] <= pairAnni[c][p] enumerate the orbital pairs whose
	// irrep product equals the center irrep c.
	pairCrea [][]int
	pairAnni [][]int
	// jumps[c] is the prefix sum over up-irrep blocks of the CI vector with
	// center irrep c; jumps[c][numIrreps] is the vector length.
	jumps [][]int

	// workSize is the element count of each big working buffer in
	// HamTimesVec, clamped by maxMemMB.
	workSize int
}

// New builds the determinant tables and copies the integrals for the given
// electron counts and target wavefunction irrep. maxMemMB bounds the working
// buffers of HamTimesVec. New panics on invalid preconditions, since they
// are programming errors that would silently corrupt all downstream results.
func New(ints Integrals, nelUp, nelDown, targetIrrep int, maxMemMB float64, verbose int) *FCI {
	l := ints.NumOrbitals()
	group := ints.Group()
	if l < 1 || l > bits.UintSize {
		panic(fmt.Sprintf("%d orbitals, native word is %d bits", l, bits.UintSize))
	}
	if nelUp < 0 || nelUp > l || nelDown < 0 || nelDown > l {
		panic(fmt.Sprintf("%d up %d down electrons in %d orbitals", nelUp, nelDown, l))
	}
	if targetIrrep < 0 || targetIrrep >= group.NumIrreps() {
		panic(fmt.Sprintf("irrep %d of %v", targetIrrep, group))
	}
	if !(maxMemMB > 0) {
		panic(fmt.Sprintf("memory budget %f MB", maxMemMB))
	}

	f := &FCI{
		verbose:   verbose,
		maxMemMB:  maxMemMB,
		l:         l,
		nelUp:     nelUp,
		nelDown:   nelDown,
		group:     group,
		numIrreps: group.NumIrreps(),
		target:    targetIrrep,
	}
	f.orbIrrep = make([]int, l)
	for orb := 0; orb < l; orb++ {
		f.orbIrrep[orb] = ints.OrbitalIrrep(orb)
	}

	f.copyIntegrals(ints)
	f.startupCounters()
	f.startupLookup()
	f.startupCenter()
	return f
}

// copyIntegrals folds the physicist-notation two-body integrals into the
// chemist-notation tensor and the effective one-body matrix.
func (f *FCI) copyIntegrals(ints Integrals) {
	l := f.l
	f.econst = ints.CoreEnergy()
	f.gmat = make([]float64, l*l)
	f.eri = make([]float64, l*l*l*l)
	for o1 := 0; o1 < l; o1++ {
		for o2 := 0; o2 < l; o2++ {
			var exch float64
			for o3 := 0; o3 < l; o3++ {
				exch += ints.TwoBody(o1, o3, o3, o2)
				for o4 := 0; o4 < l; o4++ {
					f.eri[o1+l*(o2+l*(o3+l*o4))] = ints.TwoBody(o1, o3, o2, o4)
				}
			}
			f.gmat[o1+l*o2] = ints.OneBody(o1, o2) - 0.5*exch
		}
	}
}

func (f *FCI) g(i, j int) float64 {
	return f.gmat[i+f.l*j]
}

// v returns the chemist-notation integral (ij|kl).
func (f *FCI) v(i, j, k, l int) float64 {
	return f.eri[i+f.l*(j+f.l*(k+f.l*l))]
}

// L returns the orbital count.
func (f *FCI) L() int { return f.l }

// NelUp returns the number of up-spin electrons.
func (f *FCI) NelUp() int { return f.nelUp }

// NelDown returns the number of down-spin electrons.
func (f *FCI) NelDown() int { return f.nelDown }

// TargetIrrep returns the wavefunction irrep.
func (f *FCI) TargetIrrep() int { return f.target }

// OrbitalIrrep returns the irrep of orbital orb.
func (f *FCI) OrbitalIrrep(orb int) int { return f.orbIrrep[orb] }

// CoreEnergy returns the scalar core energy constant.
func (f *FCI) CoreEnergy() float64 { return f.econst }

// startupCounters partitions the 2^l occupation bitstrings of each spin
// channel by irrep, assigning dense per-irrep counters to the strings that
// match the channel's electron count.
func (f *FCI) startupCounters() {
	twoPowL := 1 << f.l

	f.numPerIrrepUp = make([]int, f.numIrreps)
	f.numPerIrrepDown = make([]int, f.numIrreps)
	f.str2cntUp = make([][]int, f.numIrreps)
	f.str2cntDown = make([][]int, f.numIrreps)
	for irrep := 0; irrep < f.numIrreps; irrep++ {
		f.str2cntUp[irrep] = make([]int, twoPowL)
		f.str2cntDown[irrep] = make([]int, twoPowL)
		for str := 0; str < twoPowL; str++ {
			f.str2cntUp[irrep][str] = -1
			f.str2cntDown[irrep][str] = -1
		}
	}

	for str := 0; str < twoPowL; str++ {
		particles := bits.OnesCount(uint(str))
		irrep := 0
		for orb := 0; orb < f.l; orb++ {
			if str&(1<<orb) != 0 {
				irrep = irreps.Product(irrep, f.orbIrrep[orb])
			}
		}
		if particles == f.nelUp {
			f.str2cntUp[irrep][str] = f.numPerIrrepUp[irrep]
			f.numPerIrrepUp[irrep]++
		}
		if particles == f.nelDown {
			f.str2cntDown[irrep][str] = f.numPerIrrepDown[irrep]
			f.numPerIrrepDown[irrep]++
		}
	}

	f.cnt2strUp = make([][]uint, f.numIrreps)
	f.cnt2strDown = make([][]uint, f.numIrreps)
	for irrep := 0; irrep < f.numIrreps; irrep++ {
		if f.verbose > 1 {
			log.Printf("irrep %d: %d up and %d down determinants", irrep, f.numPerIrrepUp[irrep], f.numPerIrrepDown[irrep])
		}
		f.cnt2strUp[irrep] = make([]uint, f.numPerIrrepUp[irrep])
		f.cnt2strDown[irrep] = make([]uint, f.numPerIrrepDown[irrep])
		for str := 0; str < twoPowL; str++ {
			if cnt := f.str2cntUp[irrep][str]; cnt != -1 {
				f.cnt2strUp[irrep][cnt] = uint(str)
			}
			if cnt := f.str2cntDown[irrep][str]; cnt != -1 {
				f.cnt2strDown[irrep][cnt] = uint(str)
			}
		}
	}
}

// excite applies the single-excitation operator a^+_crea a_anni of one spin
// channel to an occupation bitstring: sign |result> = E_{crea,anni} |str>.
// The sign is the fermion parity of the occupied orbitals strictly between
// crea and anni; a sign of zero marks a forbidden transition.
func excite(str uint, crea, anni int) (int, uint) {
	if str&(1<<anni) == 0 {
		return 0, 0
	}
	if crea == anni {
		return 1, str
	}
	removed := str &^ (1 << anni)
	if removed&(1<<crea) != 0 {
		return 0, 0
	}
	lo, hi := crea, anni
	if lo > hi {
		lo, hi = hi, lo
	}
	between := removed & (1<<uint(hi) - 1) &^ (1<<uint(lo+1) - 1)
	sign := 1
	if bits.OnesCount(between)%2 == 1 {
		sign = -1
	}
	return sign, removed | 1<<crea
}

// startupLookup builds, for every irrep block and every (creator,
// annihilator, new counter) triple, the originating counter, irrep and
// fermionic sign of the excitation that produced the new determinant.
func (f *FCI) startupLookup() {
	l := f.l
	f.lookupCntUp = make([][]int, f.numIrreps)
	f.lookupIrrepUp = make([][]int, f.numIrreps)
	f.lookupSignUp = make([][]int, f.numIrreps)
	f.lookupCntDown = make([][]int, f.numIrreps)
	f.lookupIrrepDown = make([][]int, f.numIrreps)
	f.lookupSignDown = make([][]int, f.numIrreps)

	build := func(str2cnt [][]int, cnt2str []uint, irrep int) (cnt, irr, sgn []int) {
		cnt = make([]int, l*l*len(cnt2str))
		irr = make([]int, l*l*len(cnt2str))
		sgn = make([]int, l*l*len(cnt2str))
		for cntNew, strNew := range cnt2str {
			for crea := 0; crea < l; crea++ {
				if strNew&(1<<crea) == 0 {
					continue
				}
				for anni := 0; anni < l; anni++ {
					var strOld uint
					switch {
					case anni == crea:
						strOld = strNew
					case strNew&^(1<<crea)&(1<<anni) == 0:
						strOld = strNew&^(1<<crea) | 1<<anni
					default:
						continue
					}
					sign, res := excite(strOld, crea, anni)
					if res != strNew {
						panic(fmt.Sprintf("%b %d %d %b", strOld, crea, anni, strNew))
					}
					irrepOld := irreps.Product(irrep, irreps.Product(f.orbIrrep[crea], f.orbIrrep[anni]))
					entry := crea + l*(anni+l*cntNew)
					cnt[entry] = str2cnt[irrepOld][strOld]
					irr[entry] = irrepOld
					sgn[entry] = sign
				}
			}
		}
		return cnt, irr, sgn
	}

	for irrep := 0; irrep < f.numIrreps; irrep++ {
		f.lookupCntUp[irrep], f.lookupIrrepUp[irrep], f.lookupSignUp[irrep] = build(f.str2cntUp, f.cnt2strUp[irrep], irrep)
		f.lookupCntDown[irrep], f.lookupIrrepDown[irrep], f.lookupSignDown[irrep] = build(f.str2cntDown, f.cnt2strDown[irrep], irrep)
	}
}

// startupCenter enumerates the orbital pairs per center irrep, builds the
// jump tables addressing the CI vectors, and sizes the working buffers for
// the Hamiltonian action within the memory budget.
func (f *FCI) startupCenter() {
	f.pairCrea = make([][]int, f.numIrreps)
	f.pairAnni = make([][]int, f.numIrreps)
	for center := 0; center < f.numIrreps; center++ {
		for crea := 0; crea < f.l; crea++ {
			for anni := crea; anni < f.l; anni++ {
				if irreps.Product(f.orbIrrep[crea], f.orbIrrep[anni]) == center {
					f.pairCrea[center] = append(f.pairCrea[center], crea)
					f.pairAnni[center] = append(f.pairAnni[center], anni)
				}
			}
		}
	}

	f.jumps = make([][]int, f.numIrreps)
	f.workSize = 0
	maxPairs := 0
	for center := 0; center < f.numIrreps; center++ {
		f.jumps[center] = make([]int, f.numIrreps+1)
		localTarget := irreps.Product(center, f.target)
		for irrepUp := 0; irrepUp < f.numIrreps; irrepUp++ {
			irrepDown := irreps.Product(irrepUp, localTarget)
			block := f.numPerIrrepUp[irrepUp] * f.numPerIrrepDown[irrepDown]
			f.jumps[center][irrepUp+1] = f.jumps[center][irrepUp] + block
		}
		if size := len(f.pairCrea[center]) * f.jumps[center][f.numIrreps]; size > f.workSize {
			f.workSize = size
		}
		if len(f.pairCrea[center]) > maxPairs {
			maxPairs = len(f.pairCrea[center])
		}
	}

	// Two float64 buffers of workSize elements must fit in the budget.
	// Exceeding the budget forces chunked iteration, not failure.
	budget := int(f.maxMemMB * 1e6 / 16)
	if f.workSize > budget {
		if f.verbose > 0 {
			log.Printf("workspace constrained from %d to %d elements per buffer", f.workSize, budget)
		}
		f.workSize = budget
	}
	if f.workSize < maxPairs {
		f.workSize = maxPairs
	}
	if f.verbose > 0 {
		log.Printf("FCI vector length %d for target irrep %d", f.VecLength(0), f.target)
	}
}

// VecLength returns the CI vector length for the given center irrep, the
// irrep of operator pairs acting on the vector. The plain wavefunction
// vector has center irrep 0.
func (f *FCI) VecLength(irrepCenter int) int {
	return f.jumps[irrepCenter][f.numIrreps]
}

// upIrrepOf returns the up-spin irrep block containing the given vector index.
func (f *FCI) upIrrepOf(irrepCenter, index int) int {
	irrepUp := f.numIrreps
	for index < f.jumps[irrepCenter][irrepUp-1] {
		irrepUp--
	}
	return irrepUp - 1
}

// stringsOf decodes a vector index into its up and down occupation bitstrings.
func (f *FCI) stringsOf(irrepCenter, index int) (strUp, strDown uint) {
	localTarget := irreps.Product(irrepCenter, f.target)
	irrepUp := f.upIrrepOf(irrepCenter, index)
	irrepDown := irreps.Product(irrepUp, localTarget)
	cntUp := (index - f.jumps[irrepCenter][irrepUp]) % f.numPerIrrepUp[irrepUp]
	cntDown := (index - f.jumps[irrepCenter][irrepUp]) / f.numPerIrrepUp[irrepUp]
	return f.cnt2strUp[irrepUp][cntUp], f.cnt2strDown[irrepDown][cntDown]
}

// Determinant returns the up and down occupation bitstrings of the
// determinant at the given index of a center-irrep-0 CI vector.
func (f *FCI) Determinant(index int) (occUp, occDown uint) {
	if index < 0 || index >= f.VecLength(0) {
		panic(fmt.Sprintf("%d %d", index, f.VecLength(0)))
	}
	return f.stringsOf(0, index)
}

// Coeff returns the coefficient of the determinant with the given occupation
// patterns (bit i set means orbital i occupied) in a center-irrep-0 CI
// vector, or zero if the patterns do not belong to this symmetry sector.
func (f *FCI) Coeff(occUp, occDown uint, vector []float64) float64 {
	irrepUp, irrepDown := 0, 0
	for orb := 0; orb < f.l; orb++ {
		if occUp&(1<<orb) != 0 {
			irrepUp = irreps.Product(irrepUp, f.orbIrrep[orb])
		}
		if occDown&(1<<orb) != 0 {
			irrepDown = irreps.Product(irrepDown, f.orbIrrep[orb])
		}
	}
	if irreps.Product(irrepUp, irrepDown) != f.target {
		return 0
	}
	cntUp := f.str2cntUp[irrepUp][occUp]
	cntDown := f.str2cntDown[irrepDown][occDown]
	if cntUp == -1 || cntDown == -1 {
		return 0
	}
	return vector[f.jumps[0][irrepUp]+cntUp+f.numPerIrrepUp[irrepUp]*cntDown]
}

func zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}

// FillRandom fills v with uniform pseudo-random values in (-1, 1).
func FillRandom(v []float64) {
	for i := range v {
		v[i] = 2*rand.Float64() - 1
	}
}
