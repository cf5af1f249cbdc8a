package detci

import (
	"fmt"
	"log"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// precondCutoff is the smallest preconditioner magnitude used when inverting
// the Jacobi preconditioner.
const precondCutoff = 1e-12

// CGOptions are options for the conjugate gradient solver.
type CGOptions struct {
	maxIterations int
	tol           float64
}

// NewCGOptions returns the default conjugate gradient options. The default
// tolerance 0 means tol = 1e-8 * sqrt(length), scaled with the problem size.
func NewCGOptions() CGOptions {
	opt := CGOptions{}
	opt.maxIterations = 10000
	opt.tol = 0
	return opt
}

// MaxIterations sets the maximum number of CG iterations per linear solve.
func (opt CGOptions) MaxIterations(i int) CGOptions {
	opt.maxIterations = i
	return opt
}

// Tol sets the residual norm convergence threshold.
func (opt CGOptions) Tol(tol float64) CGOptions {
	opt.tol = tol
	return opt
}

// CGSolveSystem solves
//
//	( alpha + beta H + i eta ) ( realSol + i imagSol ) = rhs
//
// with the conjugate gradient method. CG requires a symmetric positive
// definite operator, so the complex shift is eliminated by solving the
// normal equations
//
//	precon [ ( alpha + beta H )^2 + eta^2 ] precon x = precon b
//
// for the imaginary part first; the real part then follows from
// realSol = - ( alpha + beta H ) imagSol / eta, refined by a second solve.
func (f *FCI) CGSolveSystem(alpha, beta, eta float64, rhs, realSol, imagSol []float64, options ...CGOptions) error {
	opt := NewCGOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	vecLength := f.VecLength(0)
	if len(rhs) != vecLength || len(realSol) != vecLength || len(imagSol) != vecLength {
		panic(fmt.Sprintf("%d %d %d %d", len(rhs), len(realSol), len(imagSol), vecLength))
	}
	if eta == 0 {
		panic(fmt.Sprintf("%f", eta))
	}
	tol := opt.tol
	if tol == 0 {
		tol = 1e-8 * math.Sqrt(float64(vecLength))
	}

	resid := make([]float64, vecLength)
	pvec := make([]float64, vecLength)
	oxpvec := make([]float64, vecLength)
	temp := make([]float64, vecLength)
	temp2 := make([]float64, vecLength)
	precon := make([]float64, vecLength)
	f.cgDiagPrecond(alpha, beta, eta, precon, temp)

	// Imaginary part. The initial guess is exact for a diagonal operator.
	for cnt := 0; cnt < vecLength; cnt++ {
		resid[cnt] = -eta * precon[cnt] * rhs[cnt]
	}
	copy(imagSol, resid)
	if err := f.cgCoreSolver(alpha, beta, eta, precon, imagSol, resid, pvec, oxpvec, temp, temp2, tol, opt.maxIterations); err != nil {
		return errors.Wrap(err, "imag")
	}
	for cnt := 0; cnt < vecLength; cnt++ {
		imagSol[cnt] = precon[cnt] * imagSol[cnt]
	}

	// Real part, with the initial guess - ( alpha + beta H ) imagSol / eta.
	f.cgAlphaPlusBetaHam(-alpha/eta, -beta/eta, imagSol, realSol)
	for cnt := 0; cnt < vecLength; cnt++ {
		if math.Abs(precon[cnt]) > precondCutoff {
			realSol[cnt] /= precon[cnt]
		} else {
			realSol[cnt] /= precondCutoff
		}
	}
	f.cgAlphaPlusBetaHam(alpha, beta, rhs, resid)
	for cnt := 0; cnt < vecLength; cnt++ {
		resid[cnt] = precon[cnt] * resid[cnt]
	}
	if err := f.cgCoreSolver(alpha, beta, eta, precon, realSol, resid, pvec, oxpvec, temp, temp2, tol, opt.maxIterations); err != nil {
		return errors.Wrap(err, "real")
	}
	for cnt := 0; cnt < vecLength; cnt++ {
		realSol[cnt] = precon[cnt] * realSol[cnt]
	}

	if f.verbose > 1 {
		// Residuals of the original complex system, without preconditioner.
		for cnt := 0; cnt < vecLength; cnt++ {
			precon[cnt] = 1
		}
		f.cgOperator(alpha, beta, eta, precon, realSol, temp, temp2, oxpvec)
		f.cgAlphaPlusBetaHam(alpha, beta, rhs, resid)
		floats.AddScaled(oxpvec, -1, resid)
		rmsError := floats.Dot(oxpvec, oxpvec)
		f.cgOperator(alpha, beta, eta, precon, imagSol, temp, temp2, oxpvec)
		floats.AddScaled(oxpvec, eta, rhs)
		rmsError += floats.Dot(oxpvec, oxpvec)
		log.Printf("RMS error of the CG solution = %e", math.Sqrt(rmsError))
	}
	return nil
}

func (f *FCI) cgCoreSolver(alpha, beta, eta float64, precon, sol, resid, pvec, oxpvec, temp, temp2 []float64, tol float64, maxIterations int) error {
	f.cgOperator(alpha, beta, eta, precon, sol, temp, temp2, oxpvec)
	floats.AddScaled(resid, -1, oxpvec)
	copy(pvec, resid)
	rkTrk := floats.Dot(resid, resid)

	for k := 0; k < maxIterations; k++ {
		if math.Sqrt(rkTrk) < tol {
			if f.verbose > 1 {
				log.Printf("CG converged in %d iterations, residual norm %e", k, math.Sqrt(rkTrk))
			}
			return nil
		}
		f.cgOperator(alpha, beta, eta, precon, pvec, temp, temp2, oxpvec)
		alphaK := rkTrk / floats.Dot(pvec, oxpvec)
		floats.AddScaled(sol, alphaK, pvec)
		floats.AddScaled(resid, -alphaK, oxpvec)
		rkplusTrkplus := floats.Dot(resid, resid)
		betaK := rkplusTrkplus / rkTrk
		for cnt := range pvec {
			pvec[cnt] = resid[cnt] + betaK*pvec[cnt]
		}
		rkTrk = rkplusTrkplus
	}
	return errors.Errorf("no convergence after %d iterations, residual norm %e, tol %e", maxIterations, math.Sqrt(rkTrk), tol)
}

// cgAlphaPlusBetaHam computes out = ( alpha + beta H ) in. HamTimesVec covers
// only the second-quantized part, so the constant energy joins alpha here.
func (f *FCI) cgAlphaPlusBetaHam(alpha, beta float64, in, out []float64) {
	f.HamTimesVec(in, out)
	prefactor := alpha + beta*f.econst
	for cnt := range out {
		out[cnt] = prefactor*in[cnt] + beta*out[cnt]
	}
}

// cgOperator computes out = precon [ ( alpha + beta H )^2 + eta^2 ] precon in.
func (f *FCI) cgOperator(alpha, beta, eta float64, precon, in, temp, temp2, out []float64) {
	for cnt := range temp {
		temp[cnt] = precon[cnt] * in[cnt]
	}
	f.cgAlphaPlusBetaHam(alpha, beta, temp, temp2)
	f.cgAlphaPlusBetaHam(alpha, beta, temp2, out)
	floats.AddScaled(out, eta*eta, temp)
	for cnt := range out {
		out[cnt] = precon[cnt] * out[cnt]
	}
}

// cgDiagPrecond fills precon with 1 / sqrt( diag( (alpha + beta H)^2 + eta^2 ) ),
// evaluated from the closed-form diagonals of H and H^2.
func (f *FCI) cgDiagPrecond(alpha, beta, eta float64, precon, workspace []float64) {
	f.DiagHam(precon)
	f.DiagHamSquared(workspace)

	alphaBis := alpha + beta*f.econst
	factor1 := alphaBis*alphaBis + eta*eta
	factor2 := 2 * alphaBis * beta
	factor3 := beta * beta
	for row := range precon {
		diagElement := factor1 + factor2*precon[row] + factor3*workspace[row]
		precon[row] = 1 / math.Sqrt(diagElement)
	}
}
