// Public domain.

package fit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registerrier/gammapy/dataset"
	"github.com/registerrier/gammapy/fit"
	"github.com/registerrier/gammapy/irf"
	"github.com/registerrier/gammapy/maps"
	"github.com/registerrier/gammapy/model"
)

// spectrumForFit builds a dataset whose counts are exactly the
// predicted counts of a power law with the given parameters, so the
// statistic minimum sits at those values.
func spectrumForFit(t *testing.T, index, amplitude float64) (*dataset.SpectrumDataset, *model.PowerLaw) {
	t.Helper()
	ax, err := maps.EnergyBounds("energy", .1, 10, 12)
	require.NoError(t, err)
	geom := maps.NewGeom(ax)

	pl := model.NewPowerLaw()
	pl.Index.Value = index
	pl.Amplitude.Value = amplitude
	src, err := model.NewSkyModel("src", pl, nil)
	require.NoError(t, err)
	models, err := model.NewModels(src)
	require.NoError(t, err)

	d, err := dataset.NewSpectrumDataset(dataset.SpectrumDatasetParams{
		Name:     "fit",
		Counts:   maps.NewNDMap(geom),
		Aeff:     irf.AeffFromConstant(ax, 1e9),
		Livetime: 3600,
		Models:   models,
	})
	require.NoError(t, err)
	copy(d.Counts().Data, d.Npred().Data)
	return d, pl
}

func TestSimplexRecoversPowerLaw(t *testing.T) {
	d, pl := spectrumForFit(t, 2.3, 4e-12)

	// start away from the truth
	pl.Index.Value = 2
	pl.Amplitude.Value = 1e-12

	ds, err := dataset.NewDatasets(d)
	require.NoError(t, err)
	f := fit.New(ds)
	res, err := f.Optimize()
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	assert.InDelta(t, 2.3, pl.Index.Value, .01)
	assert.InEpsilon(t, 4e-12, pl.Amplitude.Value, .02)
	assert.Greater(t, res.NFev, 0)
}

func TestRunEstimatesErrors(t *testing.T) {
	d, pl := spectrumForFit(t, 2.3, 4e-12)
	pl.Index.Value = 2.1
	pl.Amplitude.Value = 2e-12

	ds, err := dataset.NewDatasets(d)
	require.NoError(t, err)
	f := fit.New(ds)
	res, err := f.Run()
	require.NoError(t, err)
	require.NotNil(t, res.Covariance)

	assert.Greater(t, pl.Index.Error, 0.0)
	assert.Greater(t, pl.Amplitude.Error, 0.0)
	// frozen reference gets no error
	assert.Equal(t, 0.0, pl.Reference.Error)
}

func TestLevMarFluxPoints(t *testing.T) {
	truth := model.NewPowerLaw()
	truth.Index.Value = 2.2
	truth.Amplitude.Value = 5e-12

	energy := []float64{.3, .6, 1, 2, 4, 8}
	dnde := make([]float64, len(energy))
	errs := make([]float64, len(energy))
	for i, e := range energy {
		dnde[i] = truth.Evaluate(e)
		errs[i] = .1 * dnde[i]
	}

	pl := model.NewPowerLaw()
	pl.Index.Value = 1.8
	pl.Amplitude.Value = 1e-12
	src, err := model.NewSkyModel("src", pl, nil)
	require.NoError(t, err)
	models, err := model.NewModels(src)
	require.NoError(t, err)

	d, err := dataset.NewFluxPointsDataset(dataset.FluxPointsDatasetParams{
		Name: "fp", Energy: energy, Dnde: dnde, DndeErr: errs, Models: models,
	})
	require.NoError(t, err)
	ds, err := dataset.NewDatasets(d)
	require.NoError(t, err)

	f := fit.New(ds)
	f.Backend = fit.BackendLevMar
	res, err := f.Optimize()
	require.NoError(t, err)

	assert.InDelta(t, 2.2, pl.Index.Value, 1e-3)
	assert.InEpsilon(t, 5e-12, pl.Amplitude.Value, 1e-3)
	assert.InDelta(t, 0, res.TotalStat, 1e-9)
}

func TestLevMarNeedsResiduals(t *testing.T) {
	d, _ := spectrumForFit(t, 2.3, 4e-12)
	ds, err := dataset.NewDatasets(d)
	require.NoError(t, err)
	f := fit.New(ds)
	f.Backend = fit.BackendLevMar
	_, err = f.Optimize()
	assert.Error(t, err)
}

func TestNoFreeParameters(t *testing.T) {
	d, pl := spectrumForFit(t, 2.3, 4e-12)
	pl.Index.Frozen = true
	pl.Amplitude.Frozen = true

	ds, err := dataset.NewDatasets(d)
	require.NoError(t, err)
	_, err = fit.New(ds).Optimize()
	assert.Error(t, err)
}

func TestStatProfileMinimum(t *testing.T) {
	d, pl := spectrumForFit(t, 2.3, 4e-12)
	ds, err := dataset.NewDatasets(d)
	require.NoError(t, err)
	f := fit.New(ds)

	// counts equal prediction: the profile minimum is at the truth
	values := []float64{2.1, 2.2, 2.3, 2.4, 2.5}
	stats, err := f.StatProfile(pl.Index, values, false)
	require.NoError(t, err)
	require.Len(t, stats, len(values))
	for i, s := range stats {
		if i != 2 {
			assert.Greater(t, s, stats[2])
		}
	}
	// parameter restored after profiling
	assert.Equal(t, 2.3, pl.Index.Value)
	assert.False(t, pl.Index.Frozen)
}

func TestUnknownBackend(t *testing.T) {
	d, _ := spectrumForFit(t, 2.3, 4e-12)
	ds, err := dataset.NewDatasets(d)
	require.NoError(t, err)
	f := fit.New(ds)
	f.Backend = "minuit"
	_, err = f.Optimize()
	assert.Error(t, err)
}
