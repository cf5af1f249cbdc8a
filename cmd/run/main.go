// Command run computes the ground state and retarded Green's function of
// half-filled Hubbard chains and stores the results under a run directory.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"detci"
	"detci/model"
	"detci/store"
)

const (
	fnameSpectrum = "spectrum.csv"
	fnameDone     = "done.txt"
	fnameResults  = "results.db"
)

var (
	runDir = flag.String("d", filepath.Join("runs", "hubbard"), "run directory")
)

type Config struct {
	sites int
	t     float64
	u     float64

	eta       float64
	omegaMin  float64
	omegaMax  float64
	omegaStep float64
}

func (c Config) system() string {
	return fmt.Sprintf("hubbard-%d-%f", c.sites, c.u)
}

func newConfigs() []Config {
	configs := make([]Config, 0)
	for _, sites := range []int{4, 6} {
		for _, u := range []float64{0, 1, 2, 4, 8} {
			cfg := Config{sites: sites, t: 1, u: u}
			cfg.eta = 0.05
			cfg.omegaMin = -2 - u
			cfg.omegaMax = 2 + u
			cfg.omegaStep = 0.1
			configs = append(configs, cfg)
		}
	}
	return configs
}

func solve(dir string, st *store.Store, cfg Config) error {
	donePath := filepath.Join(dir, fnameDone)
	if _, err := os.Stat(donePath); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	ints := model.NewHubbard(cfg.sites, cfg.t, cfg.u)
	nelUp := cfg.sites / 2
	nelDown := cfg.sites - nelUp
	fci := detci.New(ints, nelUp, nelDown, 0, 25, 1)

	// Seed with the lowest-energy determinant.
	ground := make([]float64, fci.VecLength(0))
	ground[fci.LowestEnergyDeterminant()] = 1
	energy, err := fci.GroundState(ground)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := st.PutEnergy(cfg.system(), nelUp, nelDown, 0, energy); err != nil {
		return errors.Wrap(err, "")
	}
	spinSquared := fci.SpinSquared(ground)
	log.Printf("%s: E0 = %f, S(S+1) = %f", cfg.system(), energy, spinSquared)

	// Local density of states at the first site.
	points := make([]store.Point, 0)
	for omega := cfg.omegaMin; omega <= cfg.omegaMax; omega += cfg.omegaStep {
		re, im, err := fci.RetardedGF(omega, cfg.eta, 0, 0, true, energy, ground, ints)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("%f", omega))
		}
		p := store.Point{Omega: omega, Eta: cfg.eta, Re: re, Im: im}
		if err := st.PutSpectrum(cfg.system(), "retarded", 0, 0, p); err != nil {
			return errors.Wrap(err, "")
		}
		points = append(points, p)
	}
	if err := writeSpectrum(dir, points); err != nil {
		return errors.Wrap(err, "")
	}

	if err := os.WriteFile(donePath, nil, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func writeSpectrum(dir string, points []store.Point) error {
	fpath := filepath.Join(dir, fnameSpectrum)
	f, err := os.Create(fpath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(f)

	if err1 := w.Write([]string{"omega", "re", "im", "ldos"}); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	for _, p := range points {
		row := []string{
			strconv.FormatFloat(p.Omega, 'f', -1, 64),
			strconv.FormatFloat(p.Re, 'f', -1, 64),
			strconv.FormatFloat(p.Im, 'f', -1, 64),
			strconv.FormatFloat(-p.Im/math.Pi, 'f', -1, 64),
		}
		if err1 := w.Write(row); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
			break
		}
	}

	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := f.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}
	st, err := store.Open(filepath.Join(*runDir, fnameResults))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer st.Close()

	configs := newConfigs()
	for _, cfg := range configs {
		dir := filepath.Join(*runDir, fmt.Sprintf("%d", cfg.sites), fmt.Sprintf("%f", cfg.u))
		if err := solve(dir, st, cfg); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d %f", cfg.sites, cfg.u))
		}
		log.Printf("%d sites, U = %f", cfg.sites, cfg.u)
	}

	// Gather results and print them.
	fmt.Printf("sites,u,e0\n")
	for _, cfg := range configs {
		nelUp := cfg.sites / 2
		energy, err := st.Energy(cfg.system(), nelUp, cfg.sites-nelUp, 0)
		if err != nil {
			return errors.Wrap(err, cfg.system())
		}
		fmt.Printf("%d,%f,%f\n", cfg.sites, cfg.u, energy)
	}
	return nil
}
