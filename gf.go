package detci

import (
	"fmt"
	"log"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"detci/irreps"
)

// GFMatrixAddition computes the particle-addition amplitudes
//
//	gf[i + len(orbsLeft)*j] = < 0 | a_{orbsLeft[i],spin} [ alpha + beta H + i eta ]^{-1} a^+_{orbsRight[j],spin} | 0 >
//
// into reGF and imGF. The inverse lives in the determinant space with one
// extra electron of the given spin, built from ints per right orbital. When
// twoRDMReal, twoRDMImag or twoRDMAdd are non-nil they receive, per right
// orbital, the 2-RDM of the real solution, of the imaginary solution and of
// the addition state a^+ |0>.
func (f *FCI) GFMatrixAddition(alpha, beta, eta float64, orbsLeft, orbsRight []int, up bool, gsVector []float64, ints Integrals, reGF, imGF []float64, twoRDMReal, twoRDMImag, twoRDMAdd [][]float64, options ...CGOptions) error {
	return f.gfMatrix(alpha, beta, eta, orbsLeft, orbsRight, up, true, gsVector, ints, reGF, imGF, twoRDMReal, twoRDMImag, twoRDMAdd, options)
}

// GFMatrixRemoval computes the particle-removal amplitudes
//
//	gf[i + len(orbsLeft)*j] = < 0 | a^+_{orbsLeft[i],spin} [ alpha + beta H + i eta ]^{-1} a_{orbsRight[j],spin} | 0 >
//
// into reGF and imGF, in the determinant space with one electron removed.
func (f *FCI) GFMatrixRemoval(alpha, beta, eta float64, orbsLeft, orbsRight []int, up bool, gsVector []float64, ints Integrals, reGF, imGF []float64, twoRDMReal, twoRDMImag, twoRDMRem [][]float64, options ...CGOptions) error {
	return f.gfMatrix(alpha, beta, eta, orbsLeft, orbsRight, up, false, gsVector, ints, reGF, imGF, twoRDMReal, twoRDMImag, twoRDMRem, options)
}

func (f *FCI) gfMatrix(alpha, beta, eta float64, orbsLeft, orbsRight []int, up, addition bool, gsVector []float64, ints Integrals, reGF, imGF []float64, twoRDMReal, twoRDMImag, twoRDMOp [][]float64, options []CGOptions) error {
	if len(orbsLeft) == 0 || len(orbsRight) == 0 {
		panic(fmt.Sprintf("%d %d", len(orbsLeft), len(orbsRight)))
	}
	for _, orb := range orbsLeft {
		if orb < 0 || orb >= f.l {
			panic(fmt.Sprintf("%d %d", orb, f.l))
		}
	}
	for _, orb := range orbsRight {
		if orb < 0 || orb >= f.l {
			panic(fmt.Sprintf("%d %d", orb, f.l))
		}
	}
	if len(reGF) != len(orbsLeft)*len(orbsRight) || len(imGF) != len(orbsLeft)*len(orbsRight) {
		panic(fmt.Sprintf("%d %d %d", len(reGF), len(imGF), len(orbsLeft)*len(orbsRight)))
	}
	zero(reGF)
	zero(imGF)
	for cnt := range orbsRight {
		for _, rdms := range [][][]float64{twoRDMReal, twoRDMImag, twoRDMOp} {
			if rdms != nil {
				zero(rdms[cnt])
			}
		}
	}

	var ok bool
	var auxNelUp, auxNelDown int
	if addition {
		auxNelUp, auxNelDown = f.nelUp, f.nelDown
		if up {
			auxNelUp++
			ok = f.nelUp < f.l
		} else {
			auxNelDown++
			ok = f.nelDown < f.l
		}
	} else {
		auxNelUp, auxNelDown = f.nelUp, f.nelDown
		if up {
			auxNelUp--
			ok = f.nelUp > 0
		} else {
			auxNelDown--
			ok = f.nelDown > 0
		}
	}
	if !ok {
		return nil
	}

	for cntRight, orbRight := range orbsRight {
		matchingIrrep := false
		for _, orbLeft := range orbsLeft {
			if f.orbIrrep[orbLeft] == f.orbIrrep[orbRight] {
				matchingIrrep = true
			}
		}
		if !matchingIrrep {
			continue
		}

		auxIrrep := irreps.Product(f.target, f.orbIrrep[orbRight])
		aux := New(ints, auxNelUp, auxNelDown, auxIrrep, f.maxMemMB, f.verbose)
		auxLength := aux.VecLength(0)
		opVector := make([]float64, auxLength)
		if addition {
			aux.ApplyCreator(orbRight, up, opVector, f, gsVector)
		} else {
			aux.ApplyAnnihilator(orbRight, up, opVector, f, gsVector)
		}

		realSol := make([]float64, auxLength)
		imagSol := make([]float64, auxLength)
		if err := aux.CGSolveSystem(alpha, beta, eta, opVector, realSol, imagSol, options...); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", orbRight))
		}

		if twoRDMReal != nil {
			aux.Fill2RDM(realSol, twoRDMReal[cntRight])
		}
		if twoRDMImag != nil {
			aux.Fill2RDM(imagSol, twoRDMImag[cntRight])
		}
		if twoRDMOp != nil {
			aux.Fill2RDM(opVector, twoRDMOp[cntRight])
		}

		for cntLeft, orbLeft := range orbsLeft {
			if f.orbIrrep[orbLeft] != f.orbIrrep[orbRight] {
				continue
			}
			if addition {
				aux.ApplyCreator(orbLeft, up, opVector, f, gsVector)
			} else {
				aux.ApplyAnnihilator(orbLeft, up, opVector, f, gsVector)
			}
			reGF[cntLeft+len(orbsLeft)*cntRight] = floats.Dot(opVector, realSol)
			imGF[cntLeft+len(orbsLeft)*cntRight] = floats.Dot(opVector, imagSol)
		}
	}
	return nil
}

// RetardedGFAddition computes the addition amplitude
//
//	< 0 | a_{orbAlpha,spin} [ omega - H + E_0 + i eta ]^{-1} a^+_{orbBeta,spin} | 0 >
//
// of the retarded single-particle Green's function. The optional 2-RDM
// slices receive the density matrices of the real solution, the imaginary
// solution and the addition state.
func (f *FCI) RetardedGFAddition(omega, eta float64, orbAlpha, orbBeta int, up bool, gsEnergy float64, gsVector []float64, ints Integrals, twoRDMReal, twoRDMImag, twoRDMAdd []float64, options ...CGOptions) (float64, float64, error) {
	re := make([]float64, 1)
	im := make([]float64, 1)
	err := f.GFMatrixAddition(omega+gsEnergy, -1, eta, []int{orbAlpha}, []int{orbBeta}, up, gsVector, ints, re, im, wrapRDM(twoRDMReal), wrapRDM(twoRDMImag), wrapRDM(twoRDMAdd), options...)
	return re[0], im[0], err
}

// RetardedGFRemoval computes the removal amplitude
//
//	< 0 | a^+_{orbBeta,spin} [ omega + H - E_0 + i eta ]^{-1} a_{orbAlpha,spin} | 0 >
//
// of the retarded single-particle Green's function.
func (f *FCI) RetardedGFRemoval(omega, eta float64, orbAlpha, orbBeta int, up bool, gsEnergy float64, gsVector []float64, ints Integrals, twoRDMReal, twoRDMImag, twoRDMRem []float64, options ...CGOptions) (float64, float64, error) {
	re := make([]float64, 1)
	im := make([]float64, 1)
	err := f.GFMatrixRemoval(omega-gsEnergy, 1, eta, []int{orbBeta}, []int{orbAlpha}, up, gsVector, ints, re, im, wrapRDM(twoRDMReal), wrapRDM(twoRDMImag), wrapRDM(twoRDMRem), options...)
	return re[0], im[0], err
}

func wrapRDM(rdm []float64) [][]float64 {
	if rdm == nil {
		return nil
	}
	return [][]float64{rdm}
}

// RetardedGF computes the retarded single-particle Green's function
//
//	G( omega ) = < 0 | a_{alpha,spin}  [ omega - H + E_0 + i eta ]^{-1} a^+_{beta,spin} | 0 >
//	           + < 0 | a^+_{beta,spin} [ omega + H - E_0 + i eta ]^{-1} a_{alpha,spin}  | 0 >
//
// and returns its real and imaginary parts.
func (f *FCI) RetardedGF(omega, eta float64, orbAlpha, orbBeta int, up bool, gsEnergy float64, gsVector []float64, ints Integrals, options ...CGOptions) (float64, float64, error) {
	reAdd, imAdd, err := f.RetardedGFAddition(omega, eta, orbAlpha, orbBeta, up, gsEnergy, gsVector, ints, nil, nil, nil, options...)
	if err != nil {
		return 0, 0, errors.Wrap(err, "addition")
	}
	reRem, imRem, err := f.RetardedGFRemoval(omega, eta, orbAlpha, orbBeta, up, gsEnergy, gsVector, ints, nil, nil, nil, options...)
	if err != nil {
		return 0, 0, errors.Wrap(err, "removal")
	}
	re, im := reAdd+reRem, imAdd+imRem
	if f.verbose > 0 {
		log.Printf("G( omega = %f; eta = %f; i = %d; j = %d ) = %f + I * %f, LDOS = %f",
			omega, eta, orbAlpha, orbBeta, re, im, -im/math.Pi)
	}
	return re, im, nil
}

// densityDeviation returns ( n_orb - <0| n_orb |0> ) |0>.
func (f *FCI) densityDeviation(orb int, gsVector []float64) []float64 {
	res := make([]float64, f.VecLength(0))
	f.ActWithNumberOperator(orb, res, gsVector)
	expectation := floats.Dot(res, gsVector)
	floats.AddScaled(res, -expectation, gsVector)
	return res
}

// DensityResponseGFForward computes the forward amplitude
//
//	< 0 | ( n_alpha - <n_alpha> ) [ omega - H + E_0 + i eta ]^{-1} ( n_beta - <n_beta> ) | 0 >
//
// of the density-density response function, in the ground state determinant
// space itself.
func (f *FCI) DensityResponseGFForward(omega, eta float64, orbAlpha, orbBeta int, gsEnergy float64, gsVector []float64, twoRDMReal, twoRDMImag, twoRDMDens []float64, options ...CGOptions) (float64, float64, error) {
	devAlpha := f.densityDeviation(orbAlpha, gsVector)
	devBeta := devAlpha
	if orbAlpha != orbBeta {
		devBeta = f.densityDeviation(orbBeta, gsVector)
	}

	realSol := make([]float64, f.VecLength(0))
	imagSol := make([]float64, f.VecLength(0))
	if err := f.CGSolveSystem(omega+gsEnergy, -1, eta, devBeta, realSol, imagSol, options...); err != nil {
		return 0, 0, err
	}
	if twoRDMReal != nil {
		f.Fill2RDM(realSol, twoRDMReal)
	}
	if twoRDMImag != nil {
		f.Fill2RDM(imagSol, twoRDMImag)
	}
	if twoRDMDens != nil {
		f.Fill2RDM(devBeta, twoRDMDens)
	}
	return floats.Dot(devAlpha, realSol), floats.Dot(devAlpha, imagSol), nil
}

// DensityResponseGFBackward computes the backward amplitude
//
//	< 0 | ( n_beta - <n_beta> ) [ omega + H - E_0 + i eta ]^{-1} ( n_alpha - <n_alpha> ) | 0 >
//
// of the density-density response function.
func (f *FCI) DensityResponseGFBackward(omega, eta float64, orbAlpha, orbBeta int, gsEnergy float64, gsVector []float64, twoRDMReal, twoRDMImag, twoRDMDens []float64, options ...CGOptions) (float64, float64, error) {
	devAlpha := f.densityDeviation(orbAlpha, gsVector)
	devBeta := devAlpha
	if orbAlpha != orbBeta {
		devBeta = f.densityDeviation(orbBeta, gsVector)
	}

	realSol := make([]float64, f.VecLength(0))
	imagSol := make([]float64, f.VecLength(0))
	if err := f.CGSolveSystem(omega-gsEnergy, 1, eta, devAlpha, realSol, imagSol, options...); err != nil {
		return 0, 0, err
	}
	if twoRDMReal != nil {
		f.Fill2RDM(realSol, twoRDMReal)
	}
	if twoRDMImag != nil {
		f.Fill2RDM(imagSol, twoRDMImag)
	}
	if twoRDMDens != nil {
		f.Fill2RDM(devAlpha, twoRDMDens)
	}
	return floats.Dot(devBeta, realSol), floats.Dot(devBeta, imagSol), nil
}

// DensityResponseGF computes the density-density response function
//
//	X( omega ) = forward amplitude - backward amplitude
//
// and returns its real and imaginary parts.
func (f *FCI) DensityResponseGF(omega, eta float64, orbAlpha, orbBeta int, gsEnergy float64, gsVector []float64, options ...CGOptions) (float64, float64, error) {
	reFwd, imFwd, err := f.DensityResponseGFForward(omega, eta, orbAlpha, orbBeta, gsEnergy, gsVector, nil, nil, nil, options...)
	if err != nil {
		return 0, 0, errors.Wrap(err, "forward")
	}
	reBwd, imBwd, err := f.DensityResponseGFBackward(omega, eta, orbAlpha, orbBeta, gsEnergy, gsVector, nil, nil, nil, options...)
	if err != nil {
		return 0, 0, errors.Wrap(err, "backward")
	}
	re, im := reFwd-reBwd, imFwd-imBwd
	if f.verbose > 0 {
		log.Printf("X( omega = %f; eta = %f; i = %d; j = %d ) = %f + I * %f, LDDR = %f",
			omega, eta, orbAlpha, orbBeta, re, im, -im/math.Pi)
	}
	return re, im, nil
}
