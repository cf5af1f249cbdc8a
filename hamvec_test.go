package detci

import (
	"fmt"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"detci/model"
)

// denseHam builds the dense Hamiltonian of the center-irrep-0 determinant
// space from the Slater-Condon matrix elements, without the constant energy.
func denseHam(f *FCI) *mat.Dense {
	n := f.VecLength(0)
	h := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		braUp, braDown := f.Determinant(i)
		for j := 0; j < n; j++ {
			ketUp, ketDown := f.Determinant(j)
			h.Set(i, j, f.MatrixElement(braUp, braDown, ketUp, ketDown))
		}
	}
	return h
}

func testInstances() []*FCI {
	return []*FCI{
		New(model.NewHubbard(4, 1, 2), 2, 2, 0, 25, 0),
		New(model.NewHubbard(4, 1, 0), 2, 1, 0, 25, 0),
		New(ciModel(4), 2, 1, 0, 25, 0),
		New(ciModel(4), 2, 1, 1, 25, 0),
		// Tiny memory budget forces chunked iteration over the vector.
		New(ciModel(4), 2, 2, 0, 1e-4, 0),
	}
}

func TestMatrixElementHubbardDimer(t *testing.T) {
	t.Parallel()
	const u = 4.0
	f := New(model.NewHubbard(2, 1, u), 1, 1, 0, 25, 0)
	// Determinant order: (up site, down site) = (0,0), (1,0), (0,1), (1,1).
	want := []float64{
		u, -1, -1, 0,
		-1, 0, 0, -1,
		-1, 0, 0, -1,
		0, -1, -1, u,
	}
	h := denseHam(f)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if got := h.At(i, j); math.Abs(got-want[i+4*j]) > 1e-14 {
				t.Fatalf("%d %d: %f, expected %f", i, j, got, want[i+4*j])
			}
		}
	}
}

func TestHamTimesVec(t *testing.T) {
	t.Parallel()
	for fi, f := range testInstances() {
		t.Run(fmt.Sprintf("%d", fi), func(t *testing.T) {
			t.Parallel()
			n := f.VecLength(0)
			h := denseHam(f)

			// The Hamiltonian is symmetric.
			for i := 0; i < n; i++ {
				for j := 0; j < i; j++ {
					if math.Abs(h.At(i, j)-h.At(j, i)) > 1e-12 {
						t.Fatalf("%d %d: %f != %f", i, j, h.At(i, j), h.At(j, i))
					}
				}
			}

			diag := make([]float64, n)
			f.DiagHam(diag)
			for i := 0; i < n; i++ {
				if math.Abs(diag[i]-h.At(i, i)) > 1e-12 {
					t.Fatalf("%d: %f, expected %f", i, diag[i], h.At(i, i))
				}
			}

			input := make([]float64, n)
			FillRandom(input)
			output := make([]float64, n)
			f.HamTimesVec(input, output)
			want := make([]float64, n)
			mat.NewVecDense(n, want).MulVec(h, mat.NewVecDense(n, input))
			for i := 0; i < n; i++ {
				if math.Abs(output[i]-want[i]) > 1e-10 {
					t.Fatalf("%d: %f, expected %f", i, output[i], want[i])
				}
			}
		})
	}
}

func TestDiagHamSquared(t *testing.T) {
	t.Parallel()
	for fi, f := range testInstances() {
		t.Run(fmt.Sprintf("%d", fi), func(t *testing.T) {
			t.Parallel()
			n := f.VecLength(0)
			h := denseHam(f)
			var h2 mat.Dense
			h2.Mul(h, h)

			output := make([]float64, n)
			f.DiagHamSquared(output)
			for i := 0; i < n; i++ {
				if math.Abs(output[i]-h2.At(i, i)) > 1e-9 {
					t.Fatalf("%d: %f, expected %f", i, output[i], h2.At(i, i))
				}
			}
		})
	}
}

func TestApplyExcitation(t *testing.T) {
	t.Parallel()
	for fi, f := range testInstances() {
		t.Run(fmt.Sprintf("%d", fi), func(t *testing.T) {
			t.Parallel()
			n := f.VecLength(0)
			vector := make([]float64, n)
			FillRandom(vector)

			// <v| E_{crea,anni} |v> equals the explicit sum over excited
			// determinant pairs.
			result := make([]float64, n)
			for crea := 0; crea < f.L(); crea++ {
				for anni := 0; anni < f.L(); anni++ {
					if f.OrbitalIrrep(crea) != f.OrbitalIrrep(anni) {
						continue
					}
					f.ApplyExcitation(vector, result, crea, anni, f.TargetIrrep())
					got := floats.Dot(result, vector)

					var want float64
					for index := 0; index < n; index++ {
						occUp, occDown := f.Determinant(index)
						if sign, res := excite(occUp, crea, anni); sign != 0 {
							want += float64(sign) * f.Coeff(res, occDown, vector) * vector[index]
						}
						if sign, res := excite(occDown, crea, anni); sign != 0 {
							want += float64(sign) * f.Coeff(occUp, res, vector) * vector[index]
						}
					}
					if math.Abs(got-want) > 1e-10 {
						t.Fatalf("%d %d: %f, expected %f", crea, anni, got, want)
					}
				}
			}
		})
	}
}

func TestSpinSquared(t *testing.T) {
	t.Parallel()

	t.Run("highSpin", func(t *testing.T) {
		t.Parallel()
		// With no down electrons every state has S = Sz = 1.
		f := New(model.NewHubbard(4, 1, 2), 2, 0, 0, 25, 0)
		vector := make([]float64, f.VecLength(0))
		FillRandom(vector)
		floats.Scale(1/math.Sqrt(floats.Dot(vector, vector)), vector)
		if got := f.SpinSquared(vector); math.Abs(got-2) > 1e-10 {
			t.Fatalf("%f, expected 2", got)
		}
	})

	t.Run("singlet", func(t *testing.T) {
		t.Parallel()
		f := New(model.NewHubbard(4, 1, 4), 2, 2, 0, 25, 0)
		ground := make([]float64, f.VecLength(0))
		ground[f.LowestEnergyDeterminant()] = 1
		if _, err := f.GroundState(ground); err != nil {
			t.Fatalf("%+v", err)
		}
		if got := f.SpinSquared(ground); math.Abs(got) > 1e-8 {
			t.Fatalf("%f, expected 0", got)
		}
	})
}

func TestGroundState(t *testing.T) {
	t.Parallel()

	t.Run("dimer", func(t *testing.T) {
		t.Parallel()
		// The Hubbard dimer at half filling has the closed-form ground
		// state energy ( U - sqrt( U^2 + 16 t^2 ) ) / 2.
		const u = 4.0
		f := New(model.NewHubbard(2, 1, u), 1, 1, 0, 25, 0)
		energy, err := f.GroundState(nil)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		want := (u - math.Sqrt(u*u+16)) / 2
		if math.Abs(energy-want) > 1e-9 {
			t.Fatalf("%f, expected %f", energy, want)
		}
	})

	for fi, f := range testInstances() {
		t.Run(fmt.Sprintf("%d", fi), func(t *testing.T) {
			t.Parallel()
			n := f.VecLength(0)
			h := denseHam(f)
			sym := mat.NewSymDense(n, nil)
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					sym.SetSym(i, j, h.At(i, j))
				}
			}
			var eig mat.EigenSym
			if ok := eig.Factorize(sym, false); !ok {
				t.Fatalf("factorization failed")
			}
			want := eig.Values(nil)[0] + f.CoreEnergy()

			ground := make([]float64, n)
			ground[f.LowestEnergyDeterminant()] = 1
			energy, err := f.GroundState(ground)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if math.Abs(energy-want) > 1e-8 {
				t.Fatalf("%f, expected %f", energy, want)
			}
		})
	}
}
