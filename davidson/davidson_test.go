package davidson

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// denseOperator wraps a dense symmetric matrix as an Operator.
type denseOperator struct {
	a *mat.SymDense
}

func (op denseOperator) Length() int {
	n, _ := op.a.Dims()
	return n
}

func (op denseOperator) Diagonal(diag []float64) {
	for i := range diag {
		diag[i] = op.a.At(i, i)
	}
}

func (op denseOperator) Apply(in, out []float64) {
	v := mat.NewVecDense(len(out), out)
	v.MulVec(op.a, mat.NewVecDense(len(in), in))
}

// newDenseOperator builds a diagonally dominant symmetric matrix, the regime
// where the diagonal preconditioner works well.
func newDenseOperator(n int, rng *rand.Rand) denseOperator {
	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		a.SetSym(i, i, float64(i)-0.5*float64(n))
		for j := i + 1; j < n; j++ {
			a.SetSym(i, j, 0.1*(rng.Float64()-0.5))
		}
	}
	return denseOperator{a: a}
}

func TestSolve(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n       int
		options Options
	}{
		// Small enough that the subspace never restarts.
		{n: 16, options: NewOptions()},
		// Larger than maxVectors, forcing restarts.
		{n: 200, options: NewOptions().MaxVectors(12).KeepVectors(2)},
		{n: 200, options: NewOptions().Tol(1e-9)},
	}
	for ti, test := range tests {
		t.Run(fmt.Sprintf("%d", ti), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewPCG(uint64(ti), 42))
			op := newDenseOperator(test.n, rng)

			var eig mat.EigenSym
			require.True(t, eig.Factorize(op.a, true))
			vals := eig.Values(nil)
			var evecs mat.Dense
			eig.VectorsTo(&evecs)

			guess := make([]float64, test.n)
			for i := range guess {
				guess[i] = rng.Float64() - 0.5
			}
			theta, err := Solve(op, guess, test.options)
			require.NoError(t, err)
			require.InDelta(t, vals[0], theta, 1e-8)

			// The eigenvector is determined up to a sign.
			overlap := 0.0
			for i := 0; i < test.n; i++ {
				overlap += guess[i] * evecs.At(i, 0)
			}
			require.InDelta(t, 1, math.Abs(overlap), 1e-6)
			require.InDelta(t, 1, floats.Dot(guess, guess), 1e-10)
		})
	}
}

func TestSolveMaxIterations(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(3, 4))
	op := newDenseOperator(64, rng)
	guess := make([]float64, 64)
	guess[0] = 1
	_, err := Solve(op, guess, NewOptions().MaxIterations(2))
	require.Error(t, err)
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)
	m.Run()
}
