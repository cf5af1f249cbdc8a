package detci

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"testing"

	"detci/irreps"
	"detci/model"
)

func TestExcite(t *testing.T) {
	t.Parallel()
	tests := []struct {
		str  uint
		crea int
		anni int
		sign int
		res  uint
	}{
		// Annihilated orbital empty.
		{str: 0b0101, crea: 2, anni: 1, sign: 0, res: 0},
		// Created orbital already occupied.
		{str: 0b0101, crea: 0, anni: 2, sign: 0, res: 0},
		// Number operator.
		{str: 0b0101, crea: 0, anni: 0, sign: 1, res: 0b0101},
		{str: 0b0101, crea: 1, anni: 1, sign: 0, res: 0},
		// Nearest hop, nothing in between.
		{str: 0b0101, crea: 1, anni: 0, sign: 1, res: 0b0110},
		// Hop across one occupied orbital.
		{str: 0b0101, crea: 3, anni: 0, sign: -1, res: 0b1100},
		// Hop across an empty orbital.
		{str: 0b0011, crea: 3, anni: 1, sign: 1, res: 0b1001},
		// Downward hop across one occupied orbital.
		{str: 0b1100, crea: 0, anni: 3, sign: -1, res: 0b0101},
		// Hop across two occupied orbitals.
		{str: 0b01101, crea: 4, anni: 0, sign: 1, res: 0b11100},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%b_%d_%d", test.str, test.crea, test.anni), func(t *testing.T) {
			t.Parallel()
			sign, res := excite(test.str, test.crea, test.anni)
			if sign != test.sign || res != test.res {
				t.Fatalf("%d %b, expected %d %b", sign, res, test.sign, test.res)
			}
		})
	}
}

func TestCounters(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ints      Integrals
		nelUp     int
		nelDown   int
		target    int
		vecLength int
	}{
		// C(4,2)^2 at half filling without spatial symmetry.
		{ints: model.NewHubbard(4, 1, 2), nelUp: 2, nelDown: 2, target: 0, vecLength: 36},
		{ints: model.NewHubbard(4, 1, 2), nelUp: 2, nelDown: 1, target: 0, vecLength: 24},
		// Mixed irreps split the counters but the two targets cover C(4,2)*C(4,1).
		{ints: ciModel(4), nelUp: 2, nelDown: 1, target: 0, vecLength: 12},
		{ints: ciModel(4), nelUp: 2, nelDown: 1, target: 1, vecLength: 12},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", test.nelUp, test.nelDown, test.target), func(t *testing.T) {
			t.Parallel()
			f := New(test.ints, test.nelUp, test.nelDown, test.target, 25, 0)
			if f.VecLength(0) != test.vecLength {
				t.Fatalf("%d, expected %d", f.VecLength(0), test.vecLength)
			}
		})
	}
}

func TestDeterminantRoundTrip(t *testing.T) {
	t.Parallel()
	for _, f := range []*FCI{
		New(model.NewHubbard(4, 1, 2), 2, 2, 0, 25, 0),
		New(ciModel(4), 2, 1, 1, 25, 0),
	} {
		vector := make([]float64, f.VecLength(0))
		FillRandom(vector)
		for index := 0; index < f.VecLength(0); index++ {
			occUp, occDown := f.Determinant(index)
			if got := popcount(occUp); got != f.NelUp() {
				t.Fatalf("%b has %d electrons, expected %d", occUp, got, f.NelUp())
			}
			if got := popcount(occDown); got != f.NelDown() {
				t.Fatalf("%b has %d electrons, expected %d", occDown, got, f.NelDown())
			}
			if got := f.Coeff(occUp, occDown, vector); got != vector[index] {
				t.Fatalf("%f, expected %f", got, vector[index])
			}
		}
	}
}

func TestCoeffOutsideSector(t *testing.T) {
	t.Parallel()
	f := New(ciModel(4), 1, 1, 0, 25, 0)
	vector := make([]float64, f.VecLength(0))
	FillRandom(vector)
	tests := []struct {
		occUp   uint
		occDown uint
	}{
		// Correct electron counts, but the irrep product is ungerade.
		{occUp: 1 << 0, occDown: 1 << 2},
		{occUp: 1 << 3, occDown: 1 << 1},
		// Wrong electron counts.
		{occUp: 0b0011, occDown: 1 << 0},
		{occUp: 1 << 0, occDown: 0},
	}
	for _, test := range tests {
		if got := f.Coeff(test.occUp, test.occDown, vector); got != 0 {
			t.Fatalf("%b %b: %f, expected 0", test.occUp, test.occDown, got)
		}
	}
}

func popcount(str uint) int {
	n := 0
	for s := str; s != 0; s &= s - 1 {
		n++
	}
	return n
}

// ciModel returns random integrals in the Ci group where the first half of
// the orbitals is gerade and the second half ungerade.
func ciModel(l int) *model.Random {
	orbIrrep := make([]int, l)
	for orb := l / 2; orb < l; orb++ {
		orbIrrep[orb] = 1
	}
	rng := rand.New(rand.NewPCG(7, 13))
	return model.NewRandom(irreps.Ci, orbIrrep, rng)
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}
