// Public domain.

package dataset

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/registerrier/gammapy/gti"
	"github.com/registerrier/gammapy/irf"
	"github.com/registerrier/gammapy/maps"
	"github.com/registerrier/gammapy/model"
	"github.com/registerrier/gammapy/stats"
)

// SpectrumDataset holds counts binned in reconstructed energy over a
// single sky region, with a background model, instrument response and
// livetime.  The fit statistic is Cash.
type SpectrumDataset struct {
	name       string
	geom       maps.Geom
	counts     *maps.NDMap
	background *maps.NDMap
	aeff       *irf.EffectiveAreaTable
	edisp      *irf.EDispKernel
	livetime   float64 // s, NaN when unknown
	gtis       *gti.GTI
	maskSafe   []bool
	maskFit    []bool
	models     *model.Models
}

// SpectrumDatasetParams collects the constructor arguments.  Counts is
// required; everything else is optional.  Livetime is in seconds, NaN
// when unknown.
type SpectrumDatasetParams struct {
	Name       string
	Counts     *maps.NDMap
	Background *maps.NDMap
	Aeff       *irf.EffectiveAreaTable
	Edisp      *irf.EDispKernel
	Livetime   float64
	GTI        *gti.GTI
	MaskSafe   []bool
	MaskFit    []bool
	Models     *model.Models
}

// NewSpectrumDataset validates shapes and axis consistency.  Masks and
// the background must match the counts geometry exactly.
func NewSpectrumDataset(p SpectrumDatasetParams) (*SpectrumDataset, error) {
	if p.Counts == nil {
		return nil, fmt.Errorf("spectrum dataset needs counts")
	}
	geom := p.Counts.Geom()
	if nLon, nLat := geom.NPix(); nLon != 1 || nLat != 1 {
		return nil, fmt.Errorf("spectrum dataset needs a region geometry, got %dx%d pixels", nLon, nLat)
	}
	d := &SpectrumDataset{
		name:       makeName(p.Name),
		geom:       geom,
		counts:     p.Counts,
		background: p.Background,
		aeff:       p.Aeff,
		edisp:      p.Edisp,
		livetime:   p.Livetime,
		gtis:       p.GTI,
		maskSafe:   p.MaskSafe,
		maskFit:    p.MaskFit,
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	if p.Models != nil {
		if err := d.SetModels(p.Models); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *SpectrumDataset) validate() error {
	n := d.geom.Size()
	if d.background != nil && !d.background.Geom().Equal(d.geom) {
		return fmt.Errorf("background geometry does not match counts")
	}
	if d.maskSafe != nil && len(d.maskSafe) != n {
		return fmt.Errorf("mask_safe length %d does not match data shape %d", len(d.maskSafe), n)
	}
	if d.maskFit != nil && len(d.maskFit) != n {
		return fmt.Errorf("mask_fit length %d does not match data shape %d", len(d.maskFit), n)
	}
	if d.edisp != nil {
		if !d.edisp.AxisReco().Equal(d.geom.Axis()) {
			return fmt.Errorf("edisp reco axis does not match counts axis")
		}
		if d.aeff != nil && !d.edisp.AxisTrue().Equal(d.aeff.Axis()) {
			return fmt.Errorf("edisp true axis does not match effective area axis")
		}
	} else if d.aeff != nil && !d.aeff.Axis().Equal(d.geom.Axis()) {
		return fmt.Errorf("without edisp the effective area must be on the counts axis")
	}
	return nil
}

// CreateSpectrumDataset returns an empty dataset on the given reco and
// true energy axes: zero counts and background, zero effective area,
// diagonal energy dispersion, zero livetime, and an all-false safe
// mask.
func CreateSpectrumDataset(name string, eReco, eTrue maps.MapAxis) *SpectrumDataset {
	geom := maps.NewGeom(eReco)
	d := &SpectrumDataset{
		name:       makeName(name),
		geom:       geom,
		counts:     maps.NewNDMap(geom),
		background: maps.NewNDMap(geom),
		aeff:       irf.AeffFromConstant(eTrue, 0),
		edisp:      irf.EDispFromDiagonal(eTrue, eReco),
		livetime:   0,
		maskSafe:   make([]bool, geom.Size()),
	}
	return d
}

func (d *SpectrumDataset) Name() string { return d.name }

// DataShape returns the counts shape, energy bins first.
func (d *SpectrumDataset) DataShape() []int { return []int{d.geom.Axis().NBin()} }

func (d *SpectrumDataset) Counts() *maps.NDMap               { return d.counts }
func (d *SpectrumDataset) Background() *maps.NDMap           { return d.background }
func (d *SpectrumDataset) Aeff() *irf.EffectiveAreaTable     { return d.aeff }
func (d *SpectrumDataset) Edisp() *irf.EDispKernel           { return d.edisp }
func (d *SpectrumDataset) GTI() *gti.GTI                     { return d.gtis }
func (d *SpectrumDataset) Models() *model.Models             { return d.models }
func (d *SpectrumDataset) MaskSafe() []bool                  { return d.maskSafe }
func (d *SpectrumDataset) MaskFit() []bool                   { return d.maskFit }

// Livetime returns the livetime in seconds, NaN when unknown.
func (d *SpectrumDataset) Livetime() float64 { return d.livetime }

// HasLivetime reports whether the livetime is known.
func (d *SpectrumDataset) HasLivetime() bool { return !math.IsNaN(d.livetime) }

// SetLivetime sets the livetime in seconds.
func (d *SpectrumDataset) SetLivetime(s float64) { d.livetime = s }

// SetMaskSafe replaces the safe mask, validating its shape.
func (d *SpectrumDataset) SetMaskSafe(mask []bool) error {
	if mask != nil && len(mask) != d.geom.Size() {
		return fmt.Errorf("mask_safe length %d does not match data shape %d",
			len(mask), d.geom.Size())
	}
	d.maskSafe = mask
	return nil
}

// SetMaskFit replaces the fit mask, validating its shape.
func (d *SpectrumDataset) SetMaskFit(mask []bool) error {
	if mask != nil && len(mask) != d.geom.Size() {
		return fmt.Errorf("mask_fit length %d does not match data shape %d",
			len(mask), d.geom.Size())
	}
	d.maskFit = mask
	return nil
}

// SetModels attaches sky models.  Predicting signal counts needs an
// effective area and a livetime, so those must be present.
func (d *SpectrumDataset) SetModels(models *model.Models) error {
	if models.Len() > 0 {
		if d.aeff == nil {
			return fmt.Errorf("dataset %q: models need an effective area", d.name)
		}
		if !d.HasLivetime() {
			return fmt.Errorf("dataset %q: models need a livetime", d.name)
		}
	}
	d.models = models
	return nil
}

// Mask returns the combined safe and fit mask; nil means all bins.
func (d *SpectrumDataset) Mask() []bool {
	return maps.MaskAnd(d.maskSafe, d.maskFit)
}

// npredSig returns the predicted signal counts in reco bins.
func (d *SpectrumDataset) npredSig() []float64 {
	sig := make([]float64, d.geom.Size())
	if d.models.Len() == 0 {
		return sig
	}
	axTrue := d.aeff.Axis()
	edges := axTrue.Edges()
	trueCounts := make([]float64, axTrue.NBin())
	for _, m := range d.models.List() {
		for i := range trueCounts {
			flux := m.Spectral.Integral(edges[i], edges[i+1])
			trueCounts[i] += flux * d.aeff.Data()[i] * d.livetime
		}
	}
	if d.edisp != nil {
		reco, err := d.edisp.Apply(trueCounts)
		if err != nil {
			// axes are validated at construction
			panic(err)
		}
		return reco
	}
	copy(sig, trueCounts)
	return sig
}

// Npred returns the total predicted counts: folded signal plus
// background.
func (d *SpectrumDataset) Npred() *maps.NDMap {
	npred := maps.NewNDMap(d.geom)
	copy(npred.Data, d.npredSig())
	if d.background != nil {
		for i, v := range d.background.Data {
			npred.Data[i] += v
		}
	}
	return npred
}

// StatArray returns the per-bin Cash statistic.
func (d *SpectrumDataset) StatArray() []float64 {
	return stats.Cash(d.counts.Data, d.Npred().Data)
}

// StatSum returns the Cash statistic summed over the mask.
func (d *SpectrumDataset) StatSum() float64 {
	return maskedSum(d.StatArray(), d.Mask())
}

// Parameters returns the free and frozen parameters of the attached
// models.
func (d *SpectrumDataset) Parameters() *model.Parameters {
	if d.models == nil {
		return model.NewParameters()
	}
	return d.models.Parameters()
}

// Fake replaces the counts with a Poisson sample of the current
// predicted counts.
func (d *SpectrumDataset) Fake(src rand.Source) {
	npred := d.Npred()
	for i, mu := range npred.Data {
		if mu <= 0 {
			d.counts.Data[i] = 0
			continue
		}
		d.counts.Data[i] = distuv.Poisson{Lambda: mu, Src: src}.Rand()
	}
}

func (d *SpectrumDataset) copySpectrum(name string) *SpectrumDataset {
	c := &SpectrumDataset{
		name:     makeName(name),
		geom:     d.geom,
		counts:   d.counts.Copy(),
		livetime: d.livetime,
		models:   d.models,
	}
	if d.background != nil {
		c.background = d.background.Copy()
	}
	if d.aeff != nil {
		c.aeff = d.aeff.Copy()
	}
	if d.edisp != nil {
		c.edisp = d.edisp.Copy()
	}
	if d.gtis != nil {
		c.gtis = d.gtis.Copy()
	}
	if d.maskSafe != nil {
		c.maskSafe = append([]bool(nil), d.maskSafe...)
	}
	if d.maskFit != nil {
		c.maskFit = append([]bool(nil), d.maskFit...)
	}
	return c
}

// Copy returns a deep copy under a new name.  Models are shared, not
// copied, so a joint fit sees one parameter set.
func (d *SpectrumDataset) Copy(name string) Dataset {
	return d.copySpectrum(name)
}

// Stack merges other into d restricted to other's safe mask.  Counts
// and background add, with the receiver's own unsafe bins zeroed
// first; livetime adds; the effective area is combined as a
// livetime-weighted average and the energy dispersion as an
// area-times-livetime weighted average, so stacked responses preserve
// predicted counts rather than averaging rates twice.  Fails without
// touching the receiver when either livetime is unknown.
func (d *SpectrumDataset) Stack(other Dataset) error {
	o, ok := other.(*SpectrumDataset)
	if !ok {
		return fmt.Errorf("cannot stack %T onto %T", other, d)
	}
	c := d.copySpectrum(d.name)
	if err := stackSpectrum(c, o); err != nil {
		return err
	}
	*d = *c
	return nil
}

// stackSpectrum does the in-place merge on a scratch copy c.
func stackSpectrum(c *SpectrumDataset, o *SpectrumDataset) error {
	if !c.geom.Equal(o.geom) {
		return fmt.Errorf("cannot stack datasets with different geometries")
	}
	if !c.HasLivetime() || !o.HasLivetime() {
		return fmt.Errorf("cannot stack datasets without livetime")
	}

	// stacking drops a response one side lacks; refuse when attached
	// models still need it to predict counts
	if c.models.Len() > 0 {
		if o.aeff == nil {
			return fmt.Errorf("cannot stack dataset %q without effective area: models are attached", o.name)
		}
		if c.edisp != nil && o.edisp == nil {
			return fmt.Errorf("cannot stack dataset %q without energy dispersion: models are attached", o.name)
		}
	}

	switch {
	case c.aeff != nil && o.aeff != nil && !c.aeff.Axis().Equal(o.aeff.Axis()):
		return fmt.Errorf("cannot stack datasets with different true energy axes")
	case c.edisp != nil && o.edisp != nil && !c.edisp.AxisTrue().Equal(o.edisp.AxisTrue()):
		return fmt.Errorf("cannot stack datasets with different true energy axes")
	}

	// energy dispersion first, it needs the unstacked effective areas
	switch {
	case c.edisp != nil && o.edisp != nil:
		stackEdisp(c, o)
	default:
		c.edisp = nil
	}

	if c.aeff != nil && o.aeff != nil {
		lt := c.livetime + o.livetime
		ad, od := c.aeff.Data(), o.aeff.Data()
		for i := range ad {
			ad[i] = (ad[i]*c.livetime + od[i]*o.livetime) / lt
		}
	} else {
		c.aeff = nil
	}

	c.counts.ZeroWhereNot(c.maskSafe)
	if err := c.counts.AddWhere(o.counts, o.maskSafe); err != nil {
		return err
	}

	if c.background != nil && o.background != nil {
		c.background.ZeroWhereNot(c.maskSafe)
		if err := c.background.AddWhere(o.background, o.maskSafe); err != nil {
			return err
		}
	} else {
		c.background = nil
	}

	switch {
	case c.gtis != nil && o.gtis != nil:
		c.gtis.Stack(o.gtis)
	case o.gtis != nil:
		c.gtis = o.gtis.Copy()
	}

	c.maskSafe = maps.MaskOr(c.maskSafe, o.maskSafe)
	c.maskFit = nil
	c.livetime += o.livetime
	return nil
}

// stackEdisp combines the dispersion kernels weighted by effective
// area times livetime per true energy bin.  Reco columns outside each
// dataset's safe mask contribute zero probability, so migration into
// excluded bins is not carried over.
func stackEdisp(c *SpectrumDataset, o *SpectrumDataset) {
	nTrue := c.edisp.AxisTrue().NBin()
	nReco := c.edisp.AxisReco().NBin()
	p1, p2 := c.edisp.PDF(), o.edisp.PDF()
	for i := 0; i < nTrue; i++ {
		w1, w2 := c.livetime, o.livetime
		if c.aeff != nil && o.aeff != nil {
			w1 *= c.aeff.Data()[i]
			w2 *= o.aeff.Data()[i]
		}
		wsum := w1 + w2
		if wsum == 0 {
			continue
		}
		for j := 0; j < nReco; j++ {
			v1, v2 := p1.At(i, j), p2.At(i, j)
			if c.maskSafe != nil && !c.maskSafe[j] {
				v1 = 0
			}
			if o.maskSafe != nil && !o.maskSafe[j] {
				v2 = 0
			}
			p1.Set(i, j, (v1*w1+v2*w2)/wsum)
		}
	}
}

// Info returns the summary row used by info tables.
func (d *SpectrumDataset) Info() InfoRow {
	nOn := d.counts.SumWhere(d.maskSafe)
	var bkg float64
	if d.background != nil {
		bkg = d.background.SumWhere(d.maskSafe)
	}
	cs := stats.CashCountsStatistic{N: nOn, MuBkg: bkg}
	return InfoRow{
		Name:         d.name,
		NOn:          nOn,
		NOff:         math.NaN(),
		Alpha:        math.NaN(),
		Background:   bkg,
		Excess:       cs.Excess(),
		Significance: cs.Significance(),
		Livetime:     d.livetime,
	}
}
