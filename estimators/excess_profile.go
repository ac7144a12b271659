// Public domain.

// Package estimators derives higher level quantities from counts
// datasets: excess profiles over a dataset collection, with
// significances, asymmetric errors and upper limits per energy slice.
package estimators

import (
	"fmt"
	"math"

	"github.com/registerrier/gammapy/dataset"
	"github.com/registerrier/gammapy/maps"
	"github.com/registerrier/gammapy/stats"
)

// ToImage reduces a spectrum dataset over its energy axis to a single
// reco bin spanning [emin, emax], NaN leaving a boundary open.  Counts,
// background and off counts sum under the safe mask; the image safe
// mask is the OR over the reduced bins.  For on/off data the image
// acceptance ratio is chosen so the background estimate alpha * n_off
// is preserved.  The instrument response is not carried over, so the
// image dataset describes counts only.
func ToImage(d dataset.Dataset, name string, emin, emax float64) (dataset.Dataset, error) {
	switch t := d.(type) {
	case *dataset.SpectrumDatasetOnOff:
		return onOffToImage(t, name, emin, emax)
	case *dataset.SpectrumDataset:
		return spectrumToImage(t, name, emin, emax)
	}
	return nil, fmt.Errorf("cannot reduce %T over energy", d)
}

// imageSelection returns the reduction mask, safe AND fully inside the
// energy range, and the one-bin axis spanning the selected bins.
func imageSelection(axis maps.MapAxis, maskSafe []bool, emin, emax float64) ([]bool, maps.MapAxis, error) {
	em := axis.EnergyMask(emin, emax)
	first, last := -1, -1
	for i, ok := range em {
		if ok {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil, maps.MapAxis{}, fmt.Errorf("no %s bins inside [%g, %g]", axis.Name(), emin, emax)
	}
	edges := axis.Edges()
	img, err := maps.NewAxis(axis.Name(), []float64{edges[first], edges[last+1]}, axis.Interp())
	if err != nil {
		return nil, maps.MapAxis{}, err
	}
	return maps.MaskAnd(maskSafe, em), img, nil
}

func spectrumImageParams(d *dataset.SpectrumDataset, name string, sel []bool, axis maps.MapAxis) dataset.SpectrumDatasetParams {
	geom := maps.NewGeom(axis)
	counts := maps.NewNDMap(geom)
	counts.Data[0] = d.Counts().SumWhere(sel)
	p := dataset.SpectrumDatasetParams{
		Name:     name,
		Counts:   counts,
		Livetime: d.Livetime(),
		MaskSafe: []bool{maps.CountTrue(sel, len(sel)) > 0},
	}
	if d.Background() != nil {
		bkg := maps.NewNDMap(geom)
		bkg.Data[0] = d.Background().SumWhere(sel)
		p.Background = bkg
	}
	if g := d.GTI(); g != nil {
		p.GTI = g.Copy()
	}
	return p
}

func spectrumToImage(d *dataset.SpectrumDataset, name string, emin, emax float64) (dataset.Dataset, error) {
	sel, axis, err := imageSelection(d.Counts().Geom().Axis(), d.MaskSafe(), emin, emax)
	if err != nil {
		return nil, err
	}
	return dataset.NewSpectrumDataset(spectrumImageParams(d, name, sel, axis))
}

func onOffToImage(d *dataset.SpectrumDatasetOnOff, name string, emin, emax float64) (dataset.Dataset, error) {
	sel, axis, err := imageSelection(d.Counts().Geom().Axis(), d.MaskSafe(), emin, emax)
	if err != nil {
		return nil, err
	}
	p := spectrumImageParams(&d.SpectrumDataset, name, sel, axis)

	off := maps.NewNDMap(maps.NewGeom(axis))
	offSum := d.CountsOff().SumWhere(sel)
	off.Data[0] = offSum

	var accSum float64
	for i, ok := range sel {
		if ok {
			accSum += d.Acceptance()[i]
		}
	}
	bkgSum := d.AlphaTimesOff().SumWhere(sel)
	var accOff float64
	if bkgSum > 0 {
		accOff = accSum * offSum / bkgSum
	}

	return dataset.NewSpectrumDatasetOnOff(dataset.SpectrumDatasetOnOffParams{
		SpectrumDatasetParams: p,
		CountsOff:             off,
		Acceptance:            []float64{accSum},
		AcceptanceOff:         []float64{accOff},
	})
}

// ProfileRow is one excess estimate: one dataset, one energy slice.
// Errn and Errp are positive magnitudes; Alpha is NaN for datasets
// without an off measurement.
type ProfileRow struct {
	Name       string
	EMin, EMax float64 // TeV
	Counts     float64
	Background float64
	Alpha      float64
	Excess     float64
	TS         float64
	SqrtTS     float64
	Err        float64
	Errn       float64
	Errp       float64
	UL         float64
}

// ExcessProfileEstimator extracts excess and significance rows from a
// dataset collection, one row per dataset and energy slice.  Each
// dataset plays the role of one profile region.
type ExcessProfileEstimator struct {
	NSigma      float64   // error bars, default 1
	NSigmaUL    float64   // upper limits, default 3
	EnergyEdges []float64 // slice boundaries in TeV; nil = full axis
}

// NewExcessProfileEstimator returns an estimator with default sigma
// settings and no energy slicing.
func NewExcessProfileEstimator() *ExcessProfileEstimator {
	return &ExcessProfileEstimator{NSigma: 1, NSigmaUL: 3}
}

// Run estimates the profile over all datasets of the collection.
func (e *ExcessProfileEstimator) Run(ds *dataset.Datasets) ([]ProfileRow, error) {
	nSigma, nSigmaUL := e.NSigma, e.NSigmaUL
	if nSigma == 0 {
		nSigma = 1
	}
	if nSigmaUL == 0 {
		nSigmaUL = 3
	}
	var rows []ProfileRow
	for i := 0; i < ds.Len(); i++ {
		d := ds.Get(i)
		if len(e.EnergyEdges) == 0 {
			row, err := profileRow(d, math.NaN(), math.NaN(), nSigma, nSigmaUL)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
			continue
		}
		for j := 0; j+1 < len(e.EnergyEdges); j++ {
			row, err := profileRow(d, e.EnergyEdges[j], e.EnergyEdges[j+1], nSigma, nSigmaUL)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func profileRow(d dataset.Dataset, emin, emax, nSigma, nSigmaUL float64) (ProfileRow, error) {
	img, err := ToImage(d, "", emin, emax)
	if err != nil {
		return ProfileRow{}, err
	}
	row := ProfileRow{Name: d.Name()}
	var cs stats.CountsStatistic
	switch t := img.(type) {
	case *dataset.SpectrumDatasetOnOff:
		edges := t.Counts().Geom().Axis().Edges()
		row.EMin, row.EMax = edges[0], edges[1]
		nOn := t.Counts().Data[0]
		nOff := t.CountsOff().Data[0]
		alpha := t.Alpha()[0]
		row.Counts = nOn
		row.Background = alpha * nOff
		row.Alpha = alpha
		cs = stats.WStatCountsStatistic{NOn: nOn, NOff: nOff, Alpha: alpha}
	case *dataset.SpectrumDataset:
		edges := t.Counts().Geom().Axis().Edges()
		row.EMin, row.EMax = edges[0], edges[1]
		nOn := t.Counts().Data[0]
		var bkg float64
		if t.Background() != nil {
			bkg = t.Background().Data[0]
		}
		row.Counts = nOn
		row.Background = bkg
		row.Alpha = math.NaN()
		cs = stats.CashCountsStatistic{N: nOn, MuBkg: bkg}
	}
	row.Excess = cs.Excess()
	row.TS = cs.TS()
	row.SqrtTS = cs.Significance()
	row.Err = nSigma * cs.ErrorEstimate()
	row.Errn = cs.ComputeErrn(nSigma)
	row.Errp = cs.ComputeErrp(nSigma)
	row.UL = cs.ComputeUpperLimit(nSigmaUL)
	return row, nil
}
