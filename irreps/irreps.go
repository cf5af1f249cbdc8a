// Package irreps provides the multiplication tables of the real Abelian point groups.
//
// The irreducible representations of all eight groups can be labelled such
// that the direct product of two irreps is the bitwise XOR of their labels.
// The labelling follows the Cotton ordering used by most quantum chemistry
// packages.
package irreps

import "fmt"

type Group int

const (
	C1 Group = iota
	Ci
	C2
	Cs
	D2
	C2v
	C2h
	D2h
)

var groupNames = []string{"c1", "ci", "c2", "cs", "d2", "c2v", "c2h", "d2h"}

var irrepNames = [][]string{
	{"A"},
	{"Ag", "Au"},
	{"A", "B"},
	{"Ap", "App"},
	{"A", "B1", "B2", "B3"},
	{"A1", "A2", "B1", "B2"},
	{"Ag", "Bg", "Au", "Bu"},
	{"Ag", "B1g", "B2g", "B3g", "Au", "B1u", "B2u", "B3u"},
}

func (g Group) String() string {
	if g < C1 || g > D2h {
		return fmt.Sprintf("Group(%d)", int(g))
	}
	return groupNames[g]
}

// NumIrreps returns the number of irreducible representations of g.
func (g Group) NumIrreps() int {
	return len(irrepNames[g])
}

// IrrepName returns the Mulliken symbol of irrep i.
func (g Group) IrrepName(i int) string {
	return irrepNames[g][i]
}

// Product returns the direct product of two irreps.
func Product(a, b int) int {
	return a ^ b
}
