package detci

import (
	"fmt"
	"log"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"detci/irreps"
)

// parfor runs fn over [0, n) split into contiguous chunks, one per worker.
// Iterations must write to distinct locations or accumulate into per-chunk
// state only.
func parfor(n int, fn func(lo, hi int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}
	per := (n + workers - 1) / workers
	var g errgroup.Group
	for lo := 0; lo < n; lo += per {
		hi := min(lo+per, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	g.Wait()
}

// HamTimesVec computes output = H * input without materializing H, where
// input and output are CI vectors of center irrep 0. Results are
// reproducible up to floating-point summation order across chunks.
func (f *FCI) HamTimesVec(input, output []float64) {
	if len(input) != f.VecLength(0) || len(output) != f.VecLength(0) {
		panic(fmt.Sprintf("%d %d %d", len(input), len(output), f.VecLength(0)))
	}
	start := time.Now()
	zero(output)

	big1 := make([]float64, f.workSize)
	big2 := make([]float64, f.workSize)
	zeroJumps := f.jumps[0]

	for center := 0; center < f.numIrreps; center++ {
		localVecLength := f.VecLength(center)
		numPairs := len(f.pairCrea[center])
		if numPairs == 0 || localVecLength == 0 {
			continue
		}
		localTarget := irreps.Product(f.target, center)
		crea := f.pairCrea[center]
		anni := f.pairAnni[center]
		centerJumps := f.jumps[center]

		// 0.5 * (i<=j | k<=l), a symmetric numPairs x numPairs block.
		eriBlock := make([]float64, numPairs*numPairs)
		for p1 := 0; p1 < numPairs; p1++ {
			for p2 := 0; p2 < numPairs; p2++ {
				eriBlock[p1+numPairs*p2] = 0.5 * f.v(crea[p1], anni[p1], crea[p2], anni[p2])
			}
		}
		var gvec []float64
		if center == 0 {
			gvec = make([]float64, numPairs)
			for p := 0; p < numPairs; p++ {
				gvec[p] = f.g(crea[p], anni[p])
			}
		}

		chunk := f.workSize / numPairs
		if chunk < 1 {
			chunk = 1
		}
		for vcStart := 0; vcStart < localVecLength; vcStart += chunk {
			vcStop := min(vcStart+chunk, localVecLength)
			chunkLen := vcStop - vcStart

			// big1[pair + numPairs*vc] = (E_{i<=j} + (1-delta_ij) E_{j>i}) |input>.
			loopSize := numPairs * chunkLen
			parfor(loopSize, func(lo, hi int) {
				for lv := lo; lv < hi; lv++ {
					pair := lv % numPairs
					vc := vcStart + lv/numPairs
					orbi, orbj := crea[pair], anni[pair]
					irrepNewUp := f.upIrrepOf(center, vc)
					irrepNewDown := irreps.Product(irrepNewUp, localTarget)
					cntNewUp := (vc - centerJumps[irrepNewUp]) % f.numPerIrrepUp[irrepNewUp]
					cntNewDown := (vc - centerJumps[irrepNewUp]) / f.numPerIrrepUp[irrepNewUp]

					var res float64
					entryUp := orbi + f.l*(orbj+f.l*cntNewUp)
					if sign := f.lookupSignUp[irrepNewUp][entryUp]; sign != 0 {
						irrepOldUp := f.lookupIrrepUp[irrepNewUp][entryUp]
						cntOldUp := f.lookupCntUp[irrepNewUp][entryUp]
						res = float64(sign) * input[zeroJumps[irrepOldUp]+cntOldUp+f.numPerIrrepUp[irrepOldUp]*cntNewDown]
					}
					entryDown := orbi + f.l*(orbj+f.l*cntNewDown)
					if sign := f.lookupSignDown[irrepNewDown][entryDown]; sign != 0 {
						cntOldDown := f.lookupCntDown[irrepNewDown][entryDown]
						res += float64(sign) * input[zeroJumps[irrepNewUp]+cntNewUp+f.numPerIrrepUp[irrepNewUp]*cntOldDown]
					}
					if orbj > orbi {
						entryUp = orbj + f.l*(orbi+f.l*cntNewUp)
						if sign := f.lookupSignUp[irrepNewUp][entryUp]; sign != 0 {
							irrepOldUp := f.lookupIrrepUp[irrepNewUp][entryUp]
							cntOldUp := f.lookupCntUp[irrepNewUp][entryUp]
							res += float64(sign) * input[zeroJumps[irrepOldUp]+cntOldUp+f.numPerIrrepUp[irrepOldUp]*cntNewDown]
						}
						entryDown = orbj + f.l*(orbi+f.l*cntNewDown)
						if sign := f.lookupSignDown[irrepNewDown][entryDown]; sign != 0 {
							cntOldDown := f.lookupCntDown[irrepNewDown][entryDown]
							res += float64(sign) * input[zeroJumps[irrepNewUp]+cntNewUp+f.numPerIrrepUp[irrepNewUp]*cntOldDown]
						}
					}
					big1[lv] = res
				}
			})

			// One-body term lives entirely in the identity center irrep.
			if center == 0 {
				a := mat.NewDense(chunkLen, numPairs, big1[:chunkLen*numPairs])
				var out mat.VecDense
				out.MulVec(a, mat.NewVecDense(numPairs, gvec))
				floats.Add(output[vcStart:vcStop], out.RawVector().Data)
			}

			// big2 = 0.5 * ERI block times big1. big1 in pair-fastest layout is
			// the transpose of a (chunkLen x numPairs) row-major matrix, and the
			// ERI block is symmetric, so a right multiplication keeps the layout.
			a := mat.NewDense(chunkLen, numPairs, big1[:chunkLen*numPairs])
			b := mat.NewDense(chunkLen, numPairs, big2[:chunkLen*numPairs])
			b.Mul(a, mat.NewDense(numPairs, numPairs, eriBlock))

			// Scatter big2 back through the excitation lookup. Each excitation
			// connects one vector index with exactly one output location, so the
			// parallel writes are race-free.
			for pair := 0; pair < numPairs; pair++ {
				orbi, orbj := crea[pair], anni[pair]
				f.scatterUp(center, orbj, orbi, pair, numPairs, vcStart, vcStop, big2, output)
				f.scatterDown(center, localTarget, orbj, orbi, pair, numPairs, vcStart, vcStop, big2, output)
				if orbj > orbi {
					f.scatterUp(center, orbi, orbj, pair, numPairs, vcStart, vcStop, big2, output)
					f.scatterDown(center, localTarget, orbi, orbj, pair, numPairs, vcStart, vcStop, big2, output)
				}
			}
		}
	}

	if f.verbose > 1 {
		log.Printf("HamTimesVec wall time %v", time.Since(start))
	}
}

func (f *FCI) scatterUp(center, orb1, orb2, pair, numPairs, vcStart, vcStop int, work, output []float64) {
	centerJumps := f.jumps[center]
	parfor(vcStop-vcStart, func(lo, hi int) {
		for vc := vcStart + lo; vc < vcStart+hi; vc++ {
			irrepOldUp := f.upIrrepOf(center, vc)
			cntOldUp := (vc - centerJumps[irrepOldUp]) % f.numPerIrrepUp[irrepOldUp]
			entryUp := orb1 + f.l*(orb2+f.l*cntOldUp)
			sign := f.lookupSignUp[irrepOldUp][entryUp]
			if sign == 0 {
				continue
			}
			cntOldDown := (vc - centerJumps[irrepOldUp]) / f.numPerIrrepUp[irrepOldUp]
			irrepNewUp := f.lookupIrrepUp[irrepOldUp][entryUp]
			cntNewUp := f.lookupCntUp[irrepOldUp][entryUp]
			loc := f.jumps[0][irrepNewUp] + cntNewUp + f.numPerIrrepUp[irrepNewUp]*cntOldDown
			output[loc] += float64(sign) * work[pair+numPairs*(vc-vcStart)]
		}
	})
}

func (f *FCI) scatterDown(center, localTarget, orb1, orb2, pair, numPairs, vcStart, vcStop int, work, output []float64) {
	centerJumps := f.jumps[center]
	parfor(vcStop-vcStart, func(lo, hi int) {
		for vc := vcStart + lo; vc < vcStart+hi; vc++ {
			irrepOldUp := f.upIrrepOf(center, vc)
			cntOldDown := (vc - centerJumps[irrepOldUp]) / f.numPerIrrepUp[irrepOldUp]
			entryDown := orb1 + f.l*(orb2+f.l*cntOldDown)
			irrepOldDown := irreps.Product(irrepOldUp, localTarget)
			sign := f.lookupSignDown[irrepOldDown][entryDown]
			if sign == 0 {
				continue
			}
			cntOldUp := (vc - centerJumps[irrepOldUp]) % f.numPerIrrepUp[irrepOldUp]
			cntNewDown := f.lookupCntDown[irrepOldDown][entryDown]
			loc := f.jumps[0][irrepOldUp] + cntOldUp + f.numPerIrrepUp[irrepOldUp]*cntNewDown
			output[loc] += float64(sign) * work[pair+numPairs*(vc-vcStart)]
		}
	})
}

// ApplyExcitation computes result = E_{crea,anni} |orig> for both spin
// channels, where orig is a CI vector whose wavefunction irrep is
// origTarget. The result lives in the shifted target irrep
// origTarget x irrep(crea) x irrep(anni). No chunking is needed since only
// one orbital pair is involved.
func (f *FCI) ApplyExcitation(orig, result []float64, crea, anni, origTarget int) {
	if crea < 0 || crea >= f.l || anni < 0 || anni >= f.l {
		panic(fmt.Sprintf("%d %d %d", crea, anni, f.l))
	}
	resultTarget := irreps.Product(irreps.Product(f.orbIrrep[crea], f.orbIrrep[anni]), origTarget)
	origCenter := irreps.Product(f.target, origTarget)
	resultCenter := irreps.Product(f.target, resultTarget)
	if len(orig) != f.VecLength(origCenter) || len(result) != f.VecLength(resultCenter) {
		panic(fmt.Sprintf("%d %d %d %d", len(orig), f.VecLength(origCenter), len(result), f.VecLength(resultCenter)))
	}

	zero(result)

	for resIrrepUp := 0; resIrrepUp < f.numIrreps; resIrrepUp++ {
		resIrrepDown := irreps.Product(resIrrepUp, resultTarget)

		numUp := f.numPerIrrepUp[resIrrepUp]
		numDown := f.numPerIrrepDown[resIrrepDown]

		parfor(numUp, func(lo, hi int) {
			for resCntUp := lo; resCntUp < hi; resCntUp++ {
				entryUp := crea + f.l*(anni+f.l*resCntUp)
				sign := f.lookupSignUp[resIrrepUp][entryUp]
				if sign == 0 {
					continue
				}
				origIrrepUp := f.lookupIrrepUp[resIrrepUp][entryUp]
				origCntUp := f.lookupCntUp[resIrrepUp][entryUp]
				resBase := f.jumps[resultCenter][resIrrepUp] + resCntUp
				origBase := f.jumps[origCenter][origIrrepUp] + origCntUp
				resStride := f.numPerIrrepUp[resIrrepUp]
				origStride := f.numPerIrrepUp[origIrrepUp]
				for cntDown := 0; cntDown < numDown; cntDown++ {
					result[resBase+resStride*cntDown] += float64(sign) * orig[origBase+origStride*cntDown]
				}
			}
		})

		parfor(numDown, func(lo, hi int) {
			for resCntDown := lo; resCntDown < hi; resCntDown++ {
				entryDown := crea + f.l*(anni+f.l*resCntDown)
				sign := f.lookupSignDown[resIrrepDown][entryDown]
				if sign == 0 {
					continue
				}
				origCntDown := f.lookupCntDown[resIrrepDown][entryDown]
				resBase := f.jumps[resultCenter][resIrrepUp] + numUp*resCntDown
				origBase := f.jumps[origCenter][resIrrepUp] + numUp*origCntDown
				for cntUp := 0; cntUp < numUp; cntUp++ {
					result[resBase+cntUp] += float64(sign) * orig[origBase+cntUp]
				}
			}
		})
	}
}
