package store

import (
	"flag"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnergy(t *testing.T) {
	t.Parallel()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutEnergy("hubbard-4", 2, 2, 0, -1.5))
	require.NoError(t, s.PutEnergy("hubbard-4", 3, 2, 0, -0.5))

	energy, err := s.Energy("hubbard-4", 2, 2, 0)
	require.NoError(t, err)
	require.Equal(t, -1.5, energy)

	// Replaces the previous value for the same state.
	require.NoError(t, s.PutEnergy("hubbard-4", 2, 2, 0, -2.5))
	energy, err = s.Energy("hubbard-4", 2, 2, 0)
	require.NoError(t, err)
	require.Equal(t, -2.5, energy)

	_, err = s.Energy("hubbard-4", 9, 9, 0)
	require.Error(t, err)
}

func TestSpectrum(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(dbPath)
	require.NoError(t, err)

	// Insert out of frequency order.
	require.NoError(t, s.PutSpectrum("hubbard-4", "retarded", 0, 0, Point{Omega: 1, Eta: 0.05, Re: 0.2, Im: -0.1}))
	require.NoError(t, s.PutSpectrum("hubbard-4", "retarded", 0, 0, Point{Omega: -1, Eta: 0.05, Re: -0.2, Im: -0.1}))
	require.NoError(t, s.PutSpectrum("hubbard-4", "retarded", 0, 0, Point{Omega: 0, Eta: 0.05, Re: 0, Im: -3}))
	require.NoError(t, s.PutSpectrum("hubbard-4", "density", 0, 0, Point{Omega: 0, Eta: 0.05, Re: 1, Im: 0}))
	require.NoError(t, s.Close())

	// Reopening keeps the stored points.
	s, err = Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	points, err := s.Spectrum("hubbard-4", "retarded", 0, 0)
	require.NoError(t, err)
	require.Equal(t, []Point{
		{Omega: -1, Eta: 0.05, Re: -0.2, Im: -0.1},
		{Omega: 0, Eta: 0.05, Re: 0, Im: -3},
		{Omega: 1, Eta: 0.05, Re: 0.2, Im: -0.1},
	}, points)

	points, err = s.Spectrum("hubbard-4", "density", 0, 0)
	require.NoError(t, err)
	require.Len(t, points, 1)

	points, err = s.Spectrum("hubbard-4", "retarded", 0, 1)
	require.NoError(t, err)
	require.Empty(t, points)
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)
	m.Run()
}
