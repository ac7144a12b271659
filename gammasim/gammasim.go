// Public domain.

// Command gammasim writes a simulated dataset bundle for gammafit.
//
// It builds an instrument response from a published effective area
// parametrization, attaches a power law source, samples Poisson counts
// for a number of observations and serializes the result:
// <prefix>_datasets.yaml, <prefix>_models.yaml and one FITS file per
// observation.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/registerrier/gammapy/dataset"
	"github.com/registerrier/gammapy/gti"
	"github.com/registerrier/gammapy/irf"
	"github.com/registerrier/gammapy/maps"
	"github.com/registerrier/gammapy/model"
)

const versionString = "gammasim version 0.1 Go source."
const copyrightString = "Public domain."

type fatal struct {
	err error
}

func fail(err error) {
	panic(fatal{err})
}

func handleFatal() {
	if err := recover(); err != nil {
		if f, ok := err.(fatal); ok {
			log.Fatal(f.err)
		}
		panic(err)
	}
}

func main() {
	defer handleFatal()

	nObs := flag.Int("n", 4, "number of observations")
	livetime := flag.Float64("t", 1800, "livetime per observation, s")
	instrument := flag.String("i", "HESS", "instrument parametrization: HESS, HESS2 or CTA")
	prefix := flag.String("p", "obs", "bundle prefix")
	onoff := flag.Bool("onoff", false, "simulate on-off datasets")
	alpha := flag.Float64("alpha", 0.2, "on/off exposure ratio for -onoff")
	repeatable := flag.Bool("repeatable", false, "seed the generator with a constant")
	vers := flag.Bool("v", false, "display version and copyright")
	flag.Usage = func() {
		os.Stderr.WriteString(`Usage:
  gammasim [options] <bundle-dir>   write a simulated bundle
  gammasim -v                       display version and copyright
`)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *vers {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	dir := flag.Arg(0)
	if err := os.MkdirAll(dir, 0755); err != nil {
		fail(err)
	}

	rnd := xrand.New(&xrand.PCGSource{})
	if *repeatable {
		rnd.Seed(3)
	} else {
		rnd.Seed(uint64(os.Getpid())<<32 | uint64(*nObs))
	}

	ds, err := simulate(*nObs, *livetime, *instrument, *onoff, *alpha, rnd)
	if err != nil {
		fail(err)
	}
	if err := ds.Write(dir, *prefix); err != nil {
		fail(err)
	}
	rows, err := ds.InfoTable(false)
	if err != nil {
		fail(err)
	}
	for _, r := range rows {
		fmt.Printf("%-12s n_on %6.0f excess %8.1f sig %5.2f\n",
			r.Name, r.NOn, r.Excess, r.Significance)
	}
}

// simulate builds nObs observations of a power law source and samples
// their counts.
func simulate(nObs int, livetime float64, instrument string, onoff bool,
	alpha float64, rnd *xrand.Rand) (*dataset.Datasets, error) {

	axReco, err := maps.EnergyBounds("energy", .1, 50, 30)
	if err != nil {
		return nil, err
	}
	axTrue, err := maps.EnergyBounds("energy_true", .05, 100, 40)
	if err != nil {
		return nil, err
	}
	aeff, err := irf.AeffFromParametrization(axTrue, instrument)
	if err != nil {
		return nil, err
	}
	edisp := irf.EDispFromGauss(axTrue, axReco, .1, 0)
	maskSafe := axReco.EnergyMask(.2, 30)

	source, err := model.NewSkyModel("source", model.NewPowerLaw(), nil)
	if err != nil {
		return nil, err
	}
	source.Spectral.(*model.PowerLaw).Index.Value = 2.3
	source.Spectral.(*model.PowerLaw).Amplitude.Value = 1e-11
	models, err := model.NewModels(source)
	if err != nil {
		return nil, err
	}

	// background from a steeper power law folded with the response
	bkgModel := model.NewPowerLaw()
	bkgModel.Index.Value = 2.7
	bkgModel.Amplitude.Value = 3e-11
	bkgCounts := expectedCounts(bkgModel, aeff, edisp, livetime)

	ds, err := dataset.NewDatasets()
	if err != nil {
		return nil, err
	}
	for i := 0; i < nObs; i++ {
		name := fmt.Sprintf("obs-%d", i+1)
		tStart := float64(i) * 2 * livetime
		g, err := gti.New([]float64{tStart}, []float64{tStart + livetime})
		if err != nil {
			return nil, err
		}
		geom := maps.NewGeom(axReco)
		p := dataset.SpectrumDatasetParams{
			Name:     name,
			Counts:   maps.NewNDMap(geom),
			Aeff:     aeff.Copy(),
			Edisp:    edisp.Copy(),
			Livetime: livetime,
			GTI:      g,
			MaskSafe: append([]bool(nil), maskSafe...),
		}
		var d dataset.Dataset
		if onoff {
			d, err = simulateOnOff(p, models, bkgCounts, alpha, rnd)
		} else {
			d, err = simulateSpectrum(p, models, bkgCounts, rnd)
		}
		if err != nil {
			return nil, err
		}
		if err := ds.Append(d); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func simulateSpectrum(p dataset.SpectrumDatasetParams, models *model.Models,
	bkgCounts []float64, rnd *xrand.Rand) (dataset.Dataset, error) {

	p.Background, _ = maps.NDMapFromData(p.Counts.Geom(), append([]float64(nil), bkgCounts...))
	p.Models = models
	d, err := dataset.NewSpectrumDataset(p)
	if err != nil {
		return nil, err
	}
	d.Fake(rnd)
	return d, nil
}

func simulateOnOff(p dataset.SpectrumDatasetParams, models *model.Models,
	bkgCounts []float64, alpha float64, rnd *xrand.Rand) (dataset.Dataset, error) {

	p.Models = models
	n := p.Counts.Geom().Size()
	op := dataset.SpectrumDatasetOnOffParams{
		SpectrumDatasetParams: p,
		CountsOff:             maps.NewNDMap(p.Counts.Geom()),
		Acceptance:            make([]float64, n),
		AcceptanceOff:         make([]float64, n),
	}
	for i := 0; i < n; i++ {
		op.Acceptance[i] = 1
		op.AcceptanceOff[i] = 1 / alpha
	}
	d, err := dataset.NewSpectrumDatasetOnOff(op)
	if err != nil {
		return nil, err
	}
	// on counts sample signal plus scaled background, off counts the
	// background alone at the off exposure
	sig := d.Npred()
	for i := 0; i < n; i++ {
		muOff := bkgCounts[i] / alpha
		if muOff > 0 {
			d.CountsOff().Data[i] = distuv.Poisson{Lambda: muOff, Src: rnd}.Rand()
		}
		mu := sig.Data[i] + bkgCounts[i]
		if mu > 0 {
			d.Counts().Data[i] = distuv.Poisson{Lambda: mu, Src: rnd}.Rand()
		}
	}
	return d, nil
}

// expectedCounts folds a spectral model with the response into reco
// bins.
func expectedCounts(m model.SpectralModel, aeff *irf.EffectiveAreaTable,
	edisp *irf.EDispKernel, livetime float64) []float64 {

	edges := aeff.Axis().Edges()
	trueCounts := make([]float64, aeff.Axis().NBin())
	for i := range trueCounts {
		trueCounts[i] = m.Integral(edges[i], edges[i+1]) * aeff.Data()[i] * livetime
	}
	reco, err := edisp.Apply(trueCounts)
	if err != nil {
		panic(err)
	}
	return reco
}
