// Public domain.

package dataset_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/registerrier/gammapy/dataset"
	"github.com/registerrier/gammapy/irf"
	"github.com/registerrier/gammapy/maps"
	"github.com/registerrier/gammapy/model"
)

func TestStackCountsAndMasks(t *testing.T) {
	ax := testAxis(t, 2)
	geom := maps.NewGeom(ax)

	c1, err := maps.NDMapFromData(geom, []float64{1, 2})
	require.NoError(t, err)
	d1, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Name: "d1", Counts: c1, Livetime: 2,
		MaskSafe: []bool{true, false},
	})
	require.NoError(t, err)

	c2, err := maps.NDMapFromData(geom, []float64{3, 4})
	require.NoError(t, err)
	d2, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Name: "d2", Counts: c2, Livetime: 1,
		MaskSafe: []bool{true, true},
	})
	require.NoError(t, err)

	require.NoError(t, d1.Stack(d2))

	// receiver bins outside its own safe mask are zeroed before the
	// other's masked bins are added
	assert.Equal(t, []float64{4, 4}, d1.Counts().Data)
	assert.Equal(t, []bool{true, true}, d1.MaskSafe())
	assert.Equal(t, 3.0, d1.Livetime())
	assert.Nil(t, d1.MaskFit())
}

func TestStackAeffLivetimeWeighted(t *testing.T) {
	ax := testAxis(t, 2)
	tr := testTrueAxis(t, 3)
	geom := maps.NewGeom(ax)

	mk := func(name string, aeff, lt float64) *dataset.SpectrumDataset {
		d, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
			Name:     name,
			Counts:   maps.NewNDMap(geom),
			Aeff:     irf.AeffFromConstant(tr, aeff),
			Edisp:    irf.EDispFromDiagonal(tr, ax),
			Livetime: lt,
		})
		require.NoError(t, err)
		return d
	}
	d1 := mk("d1", 1, 2)
	d2 := mk("d2", 2, 1)
	require.NoError(t, d1.Stack(d2))

	// (1*2 + 2*1) / (2+1)
	for _, v := range d1.Aeff().Data() {
		assert.InDelta(t, 4./3, v, 1e-12)
	}
}

func TestStackEdispMaskedColumn(t *testing.T) {
	// one true bin, two reco bins, identical responses; the column
	// masked out in one dataset keeps only the other's weight share
	tr, err := maps.NewAxis("energy_true", []float64{.5, 2}, maps.InterpLog)
	require.NoError(t, err)
	ax, err := maps.NewAxis("energy", []float64{.5, 1, 2}, maps.InterpLog)
	require.NoError(t, err)
	geom := maps.NewGeom(ax)

	mk := func(name string, mask []bool) *dataset.SpectrumDataset {
		pdf := mat.NewDense(1, 2, []float64{.5, .5})
		ed, err := irf.NewEDispKernel(tr, ax, pdf)
		require.NoError(t, err)
		d, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
			Name:     name,
			Counts:   maps.NewNDMap(geom),
			Aeff:     irf.AeffFromConstant(tr, 1),
			Edisp:    ed,
			Livetime: 1,
			MaskSafe: mask,
		})
		require.NoError(t, err)
		return d
	}
	d1 := mk("d1", []bool{true, true})
	d2 := mk("d2", []bool{false, true})
	require.NoError(t, d1.Stack(d2))

	pdf := d1.Edisp().PDF()
	// equal weights: masked column keeps half its probability, the
	// unmasked one keeps all of it
	assert.InDelta(t, .25, pdf.At(0, 0), 1e-12)
	assert.InDelta(t, .5, pdf.At(0, 1), 1e-12)
}

func TestStackRequiresLivetime(t *testing.T) {
	ax := testAxis(t, 2)
	geom := maps.NewGeom(ax)
	c1, err := maps.NDMapFromData(geom, []float64{1, 2})
	require.NoError(t, err)
	d1, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Name: "d1", Counts: c1, Livetime: math.NaN(),
	})
	require.NoError(t, err)
	d2, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Name: "d2", Counts: maps.NewNDMap(geom), Livetime: 1,
	})
	require.NoError(t, err)

	err = d1.Stack(d2)
	require.Error(t, err)
	// failed stack leaves the receiver untouched
	assert.Equal(t, []float64{1, 2}, d1.Counts().Data)
	assert.True(t, math.IsNaN(d1.Livetime()))
}

func TestStackMissingResponse(t *testing.T) {
	ax := testAxis(t, 2)
	geom := maps.NewGeom(ax)
	src, err := model.NewSkyModel("src", model.NewPowerLaw(), nil)
	require.NoError(t, err)
	models, err := model.NewModels(src)
	require.NoError(t, err)

	d1, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Name:     "d1",
		Counts:   maps.NewNDMap(geom),
		Aeff:     irf.AeffFromConstant(ax, 1e9),
		Livetime: 3600,
		Models:   models,
	})
	require.NoError(t, err)
	bare, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Name: "bare", Counts: maps.NewNDMap(geom), Livetime: 3600,
	})
	require.NoError(t, err)

	// stacking would drop the effective area the models depend on
	require.Error(t, d1.Stack(bare))
	require.NotNil(t, d1.Aeff())
	assert.Equal(t, 3600.0, d1.Livetime())
	for _, v := range d1.StatArray() {
		assert.False(t, math.IsNaN(v))
	}

	// same for the energy dispersion
	tr := testTrueAxis(t, 3)
	withEdisp, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Name:     "we",
		Counts:   maps.NewNDMap(geom),
		Aeff:     irf.AeffFromConstant(tr, 1e9),
		Edisp:    irf.EDispFromDiagonal(tr, ax),
		Livetime: 3600,
		Models:   models,
	})
	require.NoError(t, err)
	noEdisp, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Name:     "ne",
		Counts:   maps.NewNDMap(geom),
		Aeff:     irf.AeffFromConstant(ax, 1e9),
		Livetime: 3600,
	})
	require.NoError(t, err)
	require.Error(t, withEdisp.Stack(noEdisp))
	require.NotNil(t, withEdisp.Edisp())
}

func TestStackTrueAxisMismatch(t *testing.T) {
	ax := testAxis(t, 2)
	geom := maps.NewGeom(ax)
	mk := func(name string, tr maps.MapAxis) *dataset.SpectrumDataset {
		d, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
			Name:     name,
			Counts:   maps.NewNDMap(geom),
			Aeff:     irf.AeffFromConstant(tr, 1),
			Edisp:    irf.EDispFromDiagonal(tr, ax),
			Livetime: 1,
		})
		require.NoError(t, err)
		return d
	}
	d1 := mk("d1", testTrueAxis(t, 3))
	d2 := mk("d2", testTrueAxis(t, 4))
	assert.Error(t, d1.Stack(d2))
}

func TestStackTypeMismatch(t *testing.T) {
	d := simpleSpectrum(t, "d", []float64{1, 2})
	fp, err := dataset.NewFluxPointsDataset(dataset.FluxPointsDatasetParams{
		Name: "fp", Energy: []float64{1}, Dnde: []float64{1e-12}, DndeErr: []float64{1e-13},
	})
	require.NoError(t, err)
	assert.Error(t, d.Stack(fp))
}

func TestStackReduceAdditiveCounts(t *testing.T) {
	// integer counts stay integer-exact through repeated stacking
	a := simpleSpectrum(t, "a", []float64{1, 2, 3})
	b := simpleSpectrum(t, "b", []float64{10, 20, 30})
	c := simpleSpectrum(t, "c", []float64{100, 200, 300})
	ds, err := dataset.NewDatasets(a, b, c)
	require.NoError(t, err)

	stacked, err := ds.StackReduce("sum")
	require.NoError(t, err)
	sd := stacked.(*dataset.SpectrumDataset)
	assert.Equal(t, []float64{111, 222, 333}, sd.Counts().Data)
	assert.Equal(t, 3*3600.0, sd.Livetime())
	// background adds too
	assert.Equal(t, []float64{3, 3, 3}, sd.Background().Data)
	// sources unchanged
	assert.Equal(t, []float64{1, 2, 3}, a.Counts().Data)
	assert.Equal(t, "sum", stacked.Name())
}

func mkOnOff(t *testing.T, name string, countsOff []float64, accOff float64) *dataset.SpectrumDatasetOnOff {
	t.Helper()
	ax := testAxis(t, len(countsOff))
	geom := maps.NewGeom(ax)
	off, err := maps.NDMapFromData(geom, countsOff)
	require.NoError(t, err)
	n := len(countsOff)
	acc := make([]float64, n)
	ao := make([]float64, n)
	for i := range acc {
		acc[i] = 1
		ao[i] = accOff
	}
	d, err := dataset.NewSpectrumDatasetOnOff(dataset.SpectrumDatasetOnOffParams{
		SpectrumDatasetParams: dataset.SpectrumDatasetParams{
			Name:     name,
			Counts:   maps.NewNDMap(geom),
			Livetime: 1800,
		},
		CountsOff:     off,
		Acceptance:    acc,
		AcceptanceOff: ao,
	})
	require.NoError(t, err)
	return d
}

func TestStackOnOffAlphaAverage(t *testing.T) {
	// alpha 0.5 with 1 off count, alpha 0.25 with 3 off counts:
	// weighted average (0.5*1 + 0.25*3) / 4
	d1 := mkOnOff(t, "d1", []float64{1, 0}, 2)
	d2 := mkOnOff(t, "d2", []float64{3, 0}, 4)
	require.NoError(t, d1.Stack(d2))

	assert.Equal(t, []float64{4, 0}, d1.CountsOff().Data)
	alpha := d1.Alpha()
	assert.InDelta(t, .3125, alpha[0], 1e-12)
	// zero off counts fall back to the total off counts weights,
	// which give the same average here
	assert.InDelta(t, .3125, alpha[1], 1e-12)
	// stacked acceptance convention
	assert.Equal(t, 1.0, d1.Acceptance()[0])
	assert.InDelta(t, 3.2, d1.AcceptanceOff()[0], 1e-12)
	assert.Equal(t, 3600.0, d1.Livetime())
}

func TestStackOnOffTotalsFallbackWeights(t *testing.T) {
	// different off totals shift the fallback alpha toward the
	// dataset with more off counts
	d1 := mkOnOff(t, "d1", []float64{9, 0}, 2)  // alpha 0.5, total 9
	d2 := mkOnOff(t, "d2", []float64{1, 0}, 10) // alpha 0.1, total 1
	require.NoError(t, d1.Stack(d2))

	alpha := d1.Alpha()
	want := (0.5*9 + 0.1*1) / 10
	assert.InDelta(t, want, alpha[0], 1e-12)
	assert.InDelta(t, want, alpha[1], 1e-12)
}

func TestOnOffStatSumMatchesMask(t *testing.T) {
	d := mkOnOff(t, "d", []float64{5, 8, 2}, 5)
	d.Counts().Data[0] = 3
	d.Counts().Data[1] = 1
	d.Counts().Data[2] = 4
	require.NoError(t, d.SetMaskSafe([]bool{true, true, false}))

	stat := d.StatArray()
	assert.InDelta(t, stat[0]+stat[1], d.StatSum(), 1e-12)
}

func TestOnOffInfo(t *testing.T) {
	d := mkOnOff(t, "d", []float64{10, 10}, 5)
	d.Counts().Data[0] = 12
	d.Counts().Data[1] = 2

	row := d.Info()
	assert.Equal(t, 14.0, row.NOn)
	assert.Equal(t, 20.0, row.NOff)
	assert.InDelta(t, .2, row.Alpha, 1e-12)
	assert.InDelta(t, 10.0, row.Excess, 1e-12)
	assert.Equal(t, 1800.0, row.Livetime)
}
