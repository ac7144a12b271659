// Public domain.

package dataset

import (
	"fmt"
	"math"

	"github.com/registerrier/gammapy/maps"
	"github.com/registerrier/gammapy/stats"
)

// SpectrumDatasetOnOff measures the background from off regions
// instead of a model.  Acceptance is the relative exposure of the on
// region, acceptance_off that of the off regions; their per-bin ratio
// alpha scales off counts to the on region.  The fit statistic is
// WStat with the off background profiled out.
type SpectrumDatasetOnOff struct {
	SpectrumDataset
	countsOff     *maps.NDMap
	acceptance    []float64
	acceptanceOff []float64
}

// SpectrumDatasetOnOffParams collects the constructor arguments.
// CountsOff, Acceptance and AcceptanceOff are required in addition to
// the on parameters.
type SpectrumDatasetOnOffParams struct {
	SpectrumDatasetParams
	CountsOff     *maps.NDMap
	Acceptance    []float64
	AcceptanceOff []float64
}

// NewSpectrumDatasetOnOff validates shapes of the off quantities
// against the on counts geometry.
func NewSpectrumDatasetOnOff(p SpectrumDatasetOnOffParams) (*SpectrumDatasetOnOff, error) {
	on, err := NewSpectrumDataset(p.SpectrumDatasetParams)
	if err != nil {
		return nil, err
	}
	d := &SpectrumDatasetOnOff{
		SpectrumDataset: *on,
		countsOff:       p.CountsOff,
		acceptance:      p.Acceptance,
		acceptanceOff:   p.AcceptanceOff,
	}
	n := d.geom.Size()
	if d.countsOff == nil {
		return nil, fmt.Errorf("on-off dataset needs off counts")
	}
	if !d.countsOff.Geom().Equal(d.geom) {
		return nil, fmt.Errorf("off counts geometry does not match on counts")
	}
	if len(d.acceptance) != n {
		return nil, fmt.Errorf("acceptance length %d does not match data shape %d",
			len(d.acceptance), n)
	}
	if len(d.acceptanceOff) != n {
		return nil, fmt.Errorf("acceptance_off length %d does not match data shape %d",
			len(d.acceptanceOff), n)
	}
	return d, nil
}

func (d *SpectrumDatasetOnOff) CountsOff() *maps.NDMap   { return d.countsOff }
func (d *SpectrumDatasetOnOff) Acceptance() []float64    { return d.acceptance }
func (d *SpectrumDatasetOnOff) AcceptanceOff() []float64 { return d.acceptanceOff }

// Alpha returns the per-bin on/off exposure ratio.  Bins with zero off
// acceptance give zero.
func (d *SpectrumDatasetOnOff) Alpha() []float64 {
	alpha := make([]float64, len(d.acceptance))
	for i, a := range d.acceptance {
		if d.acceptanceOff[i] != 0 {
			alpha[i] = a / d.acceptanceOff[i]
		}
	}
	return alpha
}

// AlphaTimesOff returns the scaled off counts alpha * n_off, the
// background estimate in the on region.
func (d *SpectrumDatasetOnOff) AlphaTimesOff() *maps.NDMap {
	bkg := maps.NewNDMap(d.geom)
	alpha := d.Alpha()
	for i, off := range d.countsOff.Data {
		bkg.Data[i] = alpha[i] * off
	}
	return bkg
}

// StatArray returns the per-bin WStat statistic with the predicted
// signal from the attached models.
func (d *SpectrumDatasetOnOff) StatArray() []float64 {
	muSig := d.npredSig()
	alpha := d.Alpha()
	out := make([]float64, len(muSig))
	for i := range out {
		out[i] = stats.WstatBin(d.counts.Data[i], d.countsOff.Data[i], alpha[i], muSig[i])
	}
	return out
}

// StatSum returns the WStat statistic summed over the mask.
func (d *SpectrumDatasetOnOff) StatSum() float64 {
	return maskedSum(d.StatArray(), d.Mask())
}

func (d *SpectrumDatasetOnOff) copyOnOff(name string) *SpectrumDatasetOnOff {
	return &SpectrumDatasetOnOff{
		SpectrumDataset: *d.SpectrumDataset.copySpectrum(name),
		countsOff:       d.countsOff.Copy(),
		acceptance:      append([]float64(nil), d.acceptance...),
		acceptanceOff:   append([]float64(nil), d.acceptanceOff...),
	}
}

// Copy returns a deep copy under a new name.  Models are shared.
func (d *SpectrumDatasetOnOff) Copy(name string) Dataset {
	return d.copyOnOff(name)
}

// Stack merges other into d.  On top of the on-counts rules, off
// counts add under the safe masks and the stacked alpha is the
// off-counts weighted average of the inputs, so the background
// estimate alpha * n_off is additive.  Bins where the stacked off
// counts vanish fall back to weighting by each dataset's total off
// counts.  The stacked acceptance is set to one and acceptance_off to
// 1/alpha.  After stacking, WStat of the sum is no longer the sum of
// the WStats, because the per-observation backgrounds are profiled
// jointly.
func (d *SpectrumDatasetOnOff) Stack(other Dataset) error {
	o, ok := other.(*SpectrumDatasetOnOff)
	if !ok {
		return fmt.Errorf("cannot stack %T onto %T", other, d)
	}
	c := d.copyOnOff(d.name)

	// weighted alpha numerator per bin, and totals for the fallback
	n := c.geom.Size()
	num := make([]float64, n)
	den := make([]float64, n)
	a1, a2 := c.Alpha(), o.Alpha()
	var tot1, tot2 float64
	for i := 0; i < n; i++ {
		off1, off2 := 0.0, 0.0
		if c.maskSafe == nil || c.maskSafe[i] {
			off1 = c.countsOff.Data[i]
		}
		if o.maskSafe == nil || o.maskSafe[i] {
			off2 = o.countsOff.Data[i]
		}
		num[i] = a1[i]*off1 + a2[i]*off2
		den[i] = off1 + off2
		tot1 += off1
		tot2 += off2
	}

	c.countsOff.ZeroWhereNot(c.maskSafe)
	if err := c.countsOff.AddWhere(o.countsOff, o.maskSafe); err != nil {
		return err
	}

	if err := stackSpectrum(&c.SpectrumDataset, &o.SpectrumDataset); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		var alpha float64
		switch {
		case den[i] > 0:
			alpha = num[i] / den[i]
		case tot1+tot2 > 0:
			alpha = (a1[i]*tot1 + a2[i]*tot2) / (tot1 + tot2)
		}
		c.acceptance[i] = 1
		if alpha != 0 {
			c.acceptanceOff[i] = 1 / alpha
		} else {
			c.acceptanceOff[i] = 0
		}
	}

	*d = *c
	return nil
}

// Info returns the summary row used by info tables.  Alpha is the
// exposure-weighted average over the safe mask.
func (d *SpectrumDatasetOnOff) Info() InfoRow {
	nOn := d.counts.SumWhere(d.maskSafe)
	nOff := d.countsOff.SumWhere(d.maskSafe)
	bkg := d.AlphaTimesOff().SumWhere(d.maskSafe)
	alpha := math.NaN()
	if nOff > 0 {
		alpha = bkg / nOff
	}
	ws := stats.WStatCountsStatistic{NOn: nOn, NOff: nOff, Alpha: alpha}
	return InfoRow{
		Name:         d.name,
		NOn:          nOn,
		NOff:         nOff,
		Alpha:        alpha,
		Background:   bkg,
		Excess:       ws.Excess(),
		Significance: ws.Significance(),
		Livetime:     d.livetime,
	}
}
