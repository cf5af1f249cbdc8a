// Package davidson implements the Davidson diagonalization algorithm for
// finding the lowest eigenvalue and eigenvector of a large symmetric matrix
// that is only available through matrix-vector products.
package davidson

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Operator is a symmetric linear operator in matrix-free form.
type Operator interface {
	// Length returns the dimension of the operator.
	Length() int
	// Diagonal fills diag with the diagonal elements of the operator.
	Diagonal(diag []float64)
	// Apply computes out = Op * in.
	Apply(in, out []float64)
}

// Options are options for the Davidson algorithm.
type Options struct {
	maxVectors    int
	keepVectors   int
	maxIterations int
	tol           float64
	precondCutoff float64
}

// NewOptions returns the default Davidson options. The default tolerance 0
// means tol = 1e-10 * sqrt(length), scaled with the problem size.
func NewOptions() Options {
	opt := Options{}
	opt.maxVectors = 32
	opt.keepVectors = 3
	opt.maxIterations = 1000
	opt.tol = 0
	opt.precondCutoff = 1e-12
	return opt
}

// MaxVectors sets the maximum subspace dimension before a restart.
func (opt Options) MaxVectors(n int) Options {
	opt.maxVectors = n
	return opt
}

// KeepVectors sets the number of Ritz vectors kept at a restart.
func (opt Options) KeepVectors(n int) Options {
	opt.keepVectors = n
	return opt
}

// MaxIterations sets the maximum number of matrix-vector products.
func (opt Options) MaxIterations(i int) Options {
	opt.maxIterations = i
	return opt
}

// Tol sets the residual norm convergence threshold.
func (opt Options) Tol(tol float64) Options {
	opt.tol = tol
	return opt
}

// PrecondCutoff sets the smallest denominator magnitude allowed in the
// diagonal preconditioner.
func (opt Options) PrecondCutoff(cutoff float64) Options {
	opt.precondCutoff = cutoff
	return opt
}

// Solve finds the lowest eigenvalue of op. inout holds the starting guess on
// entry and the converged eigenvector on success.
func Solve(op Operator, inout []float64, options ...Options) (float64, error) {
	opt := NewOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	n := op.Length()
	if len(inout) != n {
		panic(fmt.Sprintf("%d %d", len(inout), n))
	}
	if opt.keepVectors >= opt.maxVectors {
		panic(fmt.Sprintf("%d %d", opt.keepVectors, opt.maxVectors))
	}
	tol := opt.tol
	if tol == 0 {
		tol = 1e-10 * math.Sqrt(float64(n))
	}

	diag := make([]float64, n)
	op.Diagonal(diag)

	vecs := make([][]float64, 0, opt.maxVectors)
	hvecs := make([][]float64, 0, opt.maxVectors)
	sub := make([]float64, opt.maxVectors*opt.maxVectors)

	t := make([]float64, n)
	copy(t, inout)
	u := make([]float64, n)
	hu := make([]float64, n)

	for iter := 0; iter < opt.maxIterations; iter++ {
		// Orthogonalize the candidate against the subspace, twice for
		// numerical stability.
		for pass := 0; pass < 2; pass++ {
			for _, v := range vecs {
				floats.AddScaled(t, -floats.Dot(v, t), v)
			}
		}
		norm := math.Sqrt(floats.Dot(t, t))
		if norm < 1e-30 {
			return 0, errors.Errorf("%d %e", iter, norm)
		}
		floats.Scale(1/norm, t)

		v := make([]float64, n)
		copy(v, t)
		hv := make([]float64, n)
		op.Apply(v, hv)
		vecs = append(vecs, v)
		hvecs = append(hvecs, hv)
		k := len(vecs)
		for i := 0; i < k; i++ {
			val := floats.Dot(vecs[i], hv)
			sub[i+opt.maxVectors*(k-1)] = val
			sub[(k-1)+opt.maxVectors*i] = val
		}

		subMat := mat.NewSymDense(k, nil)
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				subMat.SetSym(i, j, sub[i+opt.maxVectors*j])
			}
		}
		var eig mat.EigenSym
		if ok := eig.Factorize(subMat, true); !ok {
			return 0, errors.Errorf("%d", k)
		}
		vals := eig.Values(nil)
		var evecs mat.Dense
		eig.VectorsTo(&evecs)
		theta := vals[0]

		for i := range u {
			u[i], hu[i] = 0, 0
		}
		for i := 0; i < k; i++ {
			c := evecs.At(i, 0)
			floats.AddScaled(u, c, vecs[i])
			floats.AddScaled(hu, c, hvecs[i])
		}

		copy(t, hu)
		floats.AddScaled(t, -theta, u)
		if math.Sqrt(floats.Dot(t, t)) < tol {
			copy(inout, u)
			return theta, nil
		}

		if k == opt.maxVectors {
			// Restart with the lowest Ritz vectors. They are orthonormal
			// since the subspace eigenvectors are.
			keep := opt.keepVectors
			newVecs := make([][]float64, keep)
			newHvecs := make([][]float64, keep)
			for j := 0; j < keep; j++ {
				newVecs[j] = make([]float64, n)
				newHvecs[j] = make([]float64, n)
				for i := 0; i < k; i++ {
					c := evecs.At(i, j)
					floats.AddScaled(newVecs[j], c, vecs[i])
					floats.AddScaled(newHvecs[j], c, hvecs[i])
				}
			}
			vecs = newVecs
			hvecs = newHvecs
			for i := range sub {
				sub[i] = 0
			}
			for j := 0; j < keep; j++ {
				sub[j+opt.maxVectors*j] = vals[j]
			}
		}

		for i := range t {
			denom := theta - diag[i]
			if math.Abs(denom) < opt.precondCutoff {
				if denom < 0 {
					denom = -opt.precondCutoff
				} else {
					denom = opt.precondCutoff
				}
			}
			t[i] /= denom
		}
	}
	return 0, errors.Errorf("%d %e", opt.maxIterations, tol)
}
