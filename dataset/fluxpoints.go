// Public domain.

package dataset

import (
	"fmt"
	"math"

	"github.com/registerrier/gammapy/maps"
	"github.com/registerrier/gammapy/model"
)

// FluxPointsDataset fits spectral models to estimated flux points with
// symmetric Gaussian errors.  The fit statistic is chi square per
// point.
type FluxPointsDataset struct {
	name     string
	energy   []float64 // TeV, point positions
	dnde     []float64 // cm-2 s-1 TeV-1
	dndeErr  []float64
	maskSafe []bool
	maskFit  []bool
	models   *model.Models
}

// FluxPointsDatasetParams collects the constructor arguments.  Energy,
// Dnde and DndeErr must have equal lengths; errors must be positive.
type FluxPointsDatasetParams struct {
	Name     string
	Energy   []float64
	Dnde     []float64
	DndeErr  []float64
	MaskSafe []bool
	MaskFit  []bool
	Models   *model.Models
}

func NewFluxPointsDataset(p FluxPointsDatasetParams) (*FluxPointsDataset, error) {
	n := len(p.Energy)
	if n == 0 {
		return nil, fmt.Errorf("flux points dataset needs at least one point")
	}
	if len(p.Dnde) != n || len(p.DndeErr) != n {
		return nil, fmt.Errorf("flux point arrays disagree: %d energies, %d values, %d errors",
			n, len(p.Dnde), len(p.DndeErr))
	}
	for i, e := range p.DndeErr {
		if e <= 0 {
			return nil, fmt.Errorf("flux point %d: error must be positive, got %g", i, e)
		}
	}
	if p.MaskSafe != nil && len(p.MaskSafe) != n {
		return nil, fmt.Errorf("mask_safe length %d does not match data shape %d", len(p.MaskSafe), n)
	}
	if p.MaskFit != nil && len(p.MaskFit) != n {
		return nil, fmt.Errorf("mask_fit length %d does not match data shape %d", len(p.MaskFit), n)
	}
	return &FluxPointsDataset{
		name:     makeName(p.Name),
		energy:   p.Energy,
		dnde:     p.Dnde,
		dndeErr:  p.DndeErr,
		maskSafe: p.MaskSafe,
		maskFit:  p.MaskFit,
		models:   p.Models,
	}, nil
}

func (d *FluxPointsDataset) Name() string      { return d.name }
func (d *FluxPointsDataset) DataShape() []int  { return []int{len(d.energy)} }
func (d *FluxPointsDataset) Energy() []float64 { return d.energy }
func (d *FluxPointsDataset) Dnde() []float64   { return d.dnde }

func (d *FluxPointsDataset) Models() *model.Models          { return d.models }
func (d *FluxPointsDataset) SetModels(models *model.Models) { d.models = models }

// Mask returns the combined safe and fit mask; nil means all points.
func (d *FluxPointsDataset) Mask() []bool {
	return maps.MaskAnd(d.maskSafe, d.maskFit)
}

// FluxPred returns the model flux evaluated at the point energies.
func (d *FluxPointsDataset) FluxPred() []float64 {
	pred := make([]float64, len(d.energy))
	for _, m := range d.models.List() {
		for i, e := range d.energy {
			pred[i] += m.Spectral.Evaluate(e)
		}
	}
	return pred
}

// Residuals returns (data - model) / error per point, for least
// squares backends.
func (d *FluxPointsDataset) Residuals() []float64 {
	pred := d.FluxPred()
	res := make([]float64, len(d.dnde))
	for i := range res {
		res[i] = (d.dnde[i] - pred[i]) / d.dndeErr[i]
	}
	return res
}

// StatArray returns the per-point chi square.
func (d *FluxPointsDataset) StatArray() []float64 {
	res := d.Residuals()
	for i, r := range res {
		res[i] = r * r
	}
	return res
}

// StatSum returns chi square summed over the mask.
func (d *FluxPointsDataset) StatSum() float64 {
	return maskedSum(d.StatArray(), d.Mask())
}

func (d *FluxPointsDataset) Parameters() *model.Parameters {
	if d.models == nil {
		return model.NewParameters()
	}
	return d.models.Parameters()
}

// Copy returns a deep copy under a new name.  Models are shared.
func (d *FluxPointsDataset) Copy(name string) Dataset {
	c := &FluxPointsDataset{
		name:    makeName(name),
		energy:  append([]float64(nil), d.energy...),
		dnde:    append([]float64(nil), d.dnde...),
		dndeErr: append([]float64(nil), d.dndeErr...),
		models:  d.models,
	}
	if d.maskSafe != nil {
		c.maskSafe = append([]bool(nil), d.maskSafe...)
	}
	if d.maskFit != nil {
		c.maskFit = append([]bool(nil), d.maskFit...)
	}
	return c
}

// Stack is not defined for flux points: estimated points from
// different observations cannot be added.
func (d *FluxPointsDataset) Stack(other Dataset) error {
	return fmt.Errorf("flux points datasets cannot be stacked")
}

// Info returns the summary row used by info tables.  Counts based
// columns are NaN.
func (d *FluxPointsDataset) Info() InfoRow {
	return InfoRow{
		Name:         d.name,
		NOn:          math.NaN(),
		NOff:         math.NaN(),
		Alpha:        math.NaN(),
		Background:   math.NaN(),
		Excess:       math.NaN(),
		Significance: math.NaN(),
		Livetime:     math.NaN(),
	}
}
