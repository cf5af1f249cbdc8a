package detci

import (
	"log"

	"detci/davidson"
)

// hamOperator adapts the matrix-free Hamiltonian of an FCI instance to the
// davidson.Operator interface.
type hamOperator struct {
	fci *FCI
}

func (h hamOperator) Length() int             { return h.fci.VecLength(0) }
func (h hamOperator) Diagonal(diag []float64) { h.fci.DiagHam(diag) }
func (h hamOperator) Apply(in, out []float64) { h.fci.HamTimesVec(in, out) }

// GroundState computes the lowest eigenstate of the Hamiltonian with the
// Davidson algorithm and returns its total energy, including the constant
// part. inout holds the starting guess on entry, or is filled with random
// values when nil, and holds the converged eigenvector on success.
func (f *FCI) GroundState(inout []float64, options ...davidson.Options) (float64, error) {
	if inout == nil {
		inout = make([]float64, f.VecLength(0))
		FillRandom(inout)
	}
	energy, err := davidson.Solve(hamOperator{fci: f}, inout, options...)
	if err != nil {
		return 0, err
	}
	energy += f.econst
	if f.verbose > 0 {
		log.Printf("converged ground state energy = %f", energy)
	}
	return energy, nil
}
