// Public domain.

package dataset_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registerrier/gammapy/dataset"
	"github.com/registerrier/gammapy/gti"
	"github.com/registerrier/gammapy/irf"
	"github.com/registerrier/gammapy/maps"
	"github.com/registerrier/gammapy/model"
)

func testAxis(t *testing.T, nbin int) maps.MapAxis {
	t.Helper()
	ax, err := maps.EnergyBounds("energy", .1, 10, nbin)
	require.NoError(t, err)
	return ax
}

func testTrueAxis(t *testing.T, nbin int) maps.MapAxis {
	t.Helper()
	ax, err := maps.EnergyBounds("energy_true", .05, 20, nbin)
	require.NoError(t, err)
	return ax
}

// simpleSpectrum builds a dataset with the given counts, a background
// of ones and a one hour livetime.
func simpleSpectrum(t *testing.T, name string, counts []float64) *dataset.SpectrumDataset {
	t.Helper()
	ax := testAxis(t, len(counts))
	geom := maps.NewGeom(ax)
	cm, err := maps.NDMapFromData(geom, counts)
	require.NoError(t, err)
	bkg := maps.NewNDMap(geom)
	for i := range bkg.Data {
		bkg.Data[i] = 1
	}
	d, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Name:       name,
		Counts:     cm,
		Background: bkg,
		Livetime:   3600,
	})
	require.NoError(t, err)
	return d
}

func TestConstructorValidation(t *testing.T) {
	ax := testAxis(t, 4)
	geom := maps.NewGeom(ax)
	counts := maps.NewNDMap(geom)

	_, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{})
	assert.Error(t, err, "missing counts")

	_, err = dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Counts:   counts,
		MaskSafe: make([]bool, 3),
	})
	assert.Error(t, err, "mask shape mismatch")

	otherGeom := maps.NewGeom(testAxis(t, 5))
	_, err = dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Counts:     counts,
		Background: maps.NewNDMap(otherGeom),
	})
	assert.Error(t, err, "background geometry mismatch")
}

func TestMaskCombination(t *testing.T) {
	d := simpleSpectrum(t, "m", []float64{1, 2, 3, 4})
	require.NoError(t, d.SetMaskSafe([]bool{true, true, true, false}))
	require.NoError(t, d.SetMaskFit([]bool{false, true, true, true}))
	assert.Equal(t, []bool{false, true, true, false}, d.Mask())

	require.NoError(t, d.SetMaskFit(nil))
	assert.Equal(t, []bool{true, true, true, false}, d.Mask())

	assert.Error(t, d.SetMaskSafe(make([]bool, 3)))
}

func TestStatSumEqualsMaskedSum(t *testing.T) {
	d := simpleSpectrum(t, "s", []float64{0, 5, 2, 7})
	require.NoError(t, d.SetMaskSafe([]bool{true, false, true, true}))

	stat := d.StatArray()
	var want float64
	for i, m := range d.Mask() {
		if m {
			want += stat[i]
		}
	}
	assert.Equal(t, want, d.StatSum())
}

func TestUniqueNames(t *testing.T) {
	a := simpleSpectrum(t, "obs", []float64{1, 2})
	b := simpleSpectrum(t, "obs", []float64{3, 4})

	_, err := dataset.NewDatasets(a, b)
	assert.Error(t, err)

	ds, err := dataset.NewDatasets(a)
	require.NoError(t, err)
	assert.Error(t, ds.Append(b))
	assert.Error(t, ds.Insert(0, b))

	c := simpleSpectrum(t, "other", []float64{5, 6})
	require.NoError(t, ds.Append(c))
	assert.Error(t, ds.Set(1, simpleSpectrum(t, "obs", []float64{0, 0})))
	require.NoError(t, ds.Set(1, simpleSpectrum(t, "obs2", []float64{0, 0})))

	assert.Equal(t, []string{"obs", "obs2"}, ds.Names())
	require.NoError(t, ds.Remove("obs"))
	assert.Error(t, ds.Remove("gone"))
}

func TestJointStatSum(t *testing.T) {
	a := simpleSpectrum(t, "a", []float64{1, 2, 3})
	b := simpleSpectrum(t, "b", []float64{4, 5, 6})
	ds, err := dataset.NewDatasets(a, b)
	require.NoError(t, err)
	assert.InDelta(t, a.StatSum()+b.StatSum(), ds.StatSum(), 1e-12)
}

func TestSharedParametersMergeOnce(t *testing.T) {
	pl := model.NewPowerLaw()
	src, err := model.NewSkyModel("src", pl, nil)
	require.NoError(t, err)
	models, err := model.NewModels(src)
	require.NoError(t, err)

	ax := testAxis(t, 2)
	geom := maps.NewGeom(ax)
	mk := func(name string) *dataset.SpectrumDataset {
		d, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
			Name:     name,
			Counts:   maps.NewNDMap(geom),
			Aeff:     irf.AeffFromConstant(ax, 1e9),
			Livetime: 3600,
			Models:   models,
		})
		require.NoError(t, err)
		return d
	}
	ds, err := dataset.NewDatasets(mk("a"), mk("b"))
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Parameters().Len())
}

func TestSetModelsRequiresResponse(t *testing.T) {
	ax := testAxis(t, 3)
	geom := maps.NewGeom(ax)
	d, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Counts:   maps.NewNDMap(geom),
		Livetime: 3600,
	})
	require.NoError(t, err)

	src, err := model.NewSkyModel("src", model.NewPowerLaw(), nil)
	require.NoError(t, err)
	models, err := model.NewModels(src)
	require.NoError(t, err)
	assert.Error(t, d.SetModels(models), "no effective area")

	d2, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Counts:   maps.NewNDMap(geom),
		Aeff:     irf.AeffFromConstant(ax, 1e9),
		Livetime: math.NaN(),
	})
	require.NoError(t, err)
	assert.Error(t, d2.SetModels(models), "no livetime")
}

func TestNpred(t *testing.T) {
	ax := testAxis(t, 4)
	geom := maps.NewGeom(ax)
	bkg := maps.NewNDMap(geom)
	for i := range bkg.Data {
		bkg.Data[i] = 2
	}
	src, err := model.NewSkyModel("src", model.NewPowerLaw(), nil)
	require.NoError(t, err)
	models, err := model.NewModels(src)
	require.NoError(t, err)

	d, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Counts:     maps.NewNDMap(geom),
		Background: bkg,
		Aeff:       irf.AeffFromConstant(ax, 1e9),
		Livetime:   3600,
		Models:     models,
	})
	require.NoError(t, err)

	npred := d.Npred()
	edges := ax.Edges()
	pl := src.Spectral
	for i := 0; i < ax.NBin(); i++ {
		want := pl.Integral(edges[i], edges[i+1])*1e9*3600 + 2
		assert.InEpsilon(t, want, npred.Data[i], 1e-9)
	}
}

func TestInfoTableCumulative(t *testing.T) {
	a := simpleSpectrum(t, "a", []float64{1, 2, 3})
	b := simpleSpectrum(t, "b", []float64{4, 5, 6})
	ds, err := dataset.NewDatasets(a, b)
	require.NoError(t, err)

	rows, err := ds.InfoTable(false)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 6.0, rows[0].NOn)
	assert.Equal(t, 15.0, rows[1].NOn)

	cum, err := ds.InfoTable(true)
	require.NoError(t, err)
	require.Len(t, cum, 2)
	assert.Equal(t, 6.0, cum[0].NOn)
	assert.Equal(t, 21.0, cum[1].NOn)
	assert.Equal(t, 7200.0, cum[1].Livetime)

	sum, err := dataset.Summarize(rows)
	require.NoError(t, err)
	assert.Equal(t, 21.0, sum.NOn)
	assert.Equal(t, 2, sum.Rows)
}

func TestFluxPointsDataset(t *testing.T) {
	pl := model.NewPowerLaw()
	pl.Amplitude.Value = 5e-12
	src, err := model.NewSkyModel("src", pl, nil)
	require.NoError(t, err)
	models, err := model.NewModels(src)
	require.NoError(t, err)

	energy := []float64{.5, 1, 2, 5}
	dnde := make([]float64, len(energy))
	errs := make([]float64, len(energy))
	for i, e := range energy {
		dnde[i] = pl.Evaluate(e)
		errs[i] = .1 * dnde[i]
	}
	d, err := dataset.NewFluxPointsDataset(dataset.FluxPointsDatasetParams{
		Name: "fp", Energy: energy, Dnde: dnde, DndeErr: errs, Models: models,
	})
	require.NoError(t, err)

	// data generated from the model: zero residuals, zero statistic
	assert.InDelta(t, 0, d.StatSum(), 1e-20)

	pl.Amplitude.Value = 6e-12
	assert.Greater(t, d.StatSum(), 0.0)

	assert.Error(t, d.Stack(d.Copy("other")))

	_, err = dataset.NewFluxPointsDataset(dataset.FluxPointsDatasetParams{
		Name: "bad", Energy: energy, Dnde: dnde, DndeErr: []float64{1, 1, 0, 1},
	})
	assert.Error(t, err, "non-positive error")
}

func TestStackReduceMixedTypes(t *testing.T) {
	a := simpleSpectrum(t, "a", []float64{1, 2})
	fp, err := dataset.NewFluxPointsDataset(dataset.FluxPointsDatasetParams{
		Name: "fp", Energy: []float64{1}, Dnde: []float64{1e-12}, DndeErr: []float64{1e-13},
	})
	require.NoError(t, err)

	ds, err := dataset.NewDatasets(a, fp)
	require.NoError(t, err)
	assert.False(t, ds.AllSameType())
	_, err = ds.StackReduce("stacked")
	assert.Error(t, err)

	empty, err := dataset.NewDatasets()
	require.NoError(t, err)
	_, err = empty.StackReduce("stacked")
	assert.Error(t, err)
}

func TestEmptyCollectionTypeChecks(t *testing.T) {
	empty, err := dataset.NewDatasets()
	require.NoError(t, err)
	// an empty collection has no common type or shape
	assert.False(t, empty.AllSameType())
	assert.False(t, empty.AllSameShape())
	rows, err := empty.InfoTable(false)
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestGTIPropagation(t *testing.T) {
	g, err := gti.New([]float64{0}, []float64{1800})
	require.NoError(t, err)
	ax := testAxis(t, 2)
	geom := maps.NewGeom(ax)
	d, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Name: "g", Counts: maps.NewNDMap(geom), Livetime: 1800, GTI: g,
	})
	require.NoError(t, err)
	c := d.Copy("copy").(*dataset.SpectrumDataset)
	require.NotNil(t, c.GTI())
	assert.Equal(t, 1800.0, c.GTI().Sum())
}
