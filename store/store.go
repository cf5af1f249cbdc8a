// Package store persists computed energies and spectral functions in a
// sqlite database, so repeated frequency scans can resume and results can be
// inspected with standard tooling.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableEnergy   = "energy"
	tableSpectrum = "spectrum"
)

// Point is one frequency point of a spectral function.
type Point struct {
	Omega float64
	Eta   float64
	Re    float64
	Im    float64
}

type Store struct {
	Path string

	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	s := &Store{Path: dbPath}
	var err error
	s.db, err = sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := prepareDB(s.db); err != nil {
		s.db.Close()
		return nil, errors.Wrap(err, "")
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutEnergy records the energy of the state labeled by system name, electron
// counts and wavefunction irrep, replacing any previous value.
func (s *Store) PutEnergy(system string, nelUp, nelDown, irrep int, energy float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (system, nel_up, nel_down, irrep, energy) VALUES (?, ?, ?, ?, ?)`, tableEnergy)
	args := []any{system, nelUp, nelDown, irrep, energy}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	return nil
}

// Energy returns the stored energy for the given state.
func (s *Store) Energy(system string, nelUp, nelDown, irrep int) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT energy FROM %s WHERE system=? AND nel_up=? AND nel_down=? AND irrep=?`, tableEnergy)
	var energy float64
	if err := s.db.QueryRowContext(ctx, sqlStr, system, nelUp, nelDown, irrep).Scan(&energy); err != nil {
		return 0, errors.Wrap(err, "")
	}
	return energy, nil
}

// PutSpectrum records one frequency point of the spectral function of kind
// (for example "retarded" or "density") between orbitals i and j.
func (s *Store) PutSpectrum(system, kind string, orbI, orbJ int, p Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (system, kind, orb_i, orb_j, omega, eta, re, im) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, tableSpectrum)
	args := []any{system, kind, orbI, orbJ, p.Omega, p.Eta, p.Re, p.Im}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	return nil
}

// Spectrum returns the stored frequency points of the spectral function of
// the given kind between orbitals i and j, ordered by frequency.
func (s *Store) Spectrum(system, kind string, orbI, orbJ int) ([]Point, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT omega, eta, re, im FROM %s WHERE system=? AND kind=? AND orb_i=? AND orb_j=? ORDER BY omega`, tableSpectrum)
	rows, err := s.db.QueryContext(ctx, sqlStr, system, kind, orbI, orbJ)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	points := make([]Point, 0)
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Omega, &p.Eta, &p.Re, &p.Im); err != nil {
			return nil, errors.Wrap(err, "")
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return points, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (system TEXT, nel_up INTEGER, nel_down INTEGER, irrep INTEGER, energy REAL, PRIMARY KEY (system, nel_up, nel_down, irrep)) STRICT`, tableEnergy)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (system TEXT, kind TEXT, orb_i INTEGER, orb_j INTEGER, omega REAL, eta REAL, re REAL, im REAL, PRIMARY KEY (system, kind, orb_i, orb_j, omega)) STRICT`, tableSpectrum)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
