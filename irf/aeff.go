// Public domain.

// Package irf implements the instrument response objects needed by
// counts datasets: effective area tables and energy dispersion
// kernels.
package irf

import (
	"fmt"
	"math"

	"github.com/registerrier/gammapy/maps"
)

// EffectiveAreaTable holds effective area values in cm2 on a true
// energy axis.
type EffectiveAreaTable struct {
	axis maps.MapAxis
	data []float64
}

// NewEffectiveAreaTable validates the data length against the axis.
func NewEffectiveAreaTable(axis maps.MapAxis, data []float64) (*EffectiveAreaTable, error) {
	if len(data) != axis.NBin() {
		return nil, fmt.Errorf("aeff: %d values for %d bins", len(data), axis.NBin())
	}
	return &EffectiveAreaTable{axis: axis, data: data}, nil
}

// AeffFromConstant returns a table with the same area in every bin.
func AeffFromConstant(axis maps.MapAxis, cm2 float64) *EffectiveAreaTable {
	data := make([]float64, axis.NBin())
	for i := range data {
		data[i] = cm2
	}
	return &EffectiveAreaTable{axis: axis, data: data}
}

// Instrument parametrization coefficients for
// aeff(E) = g1 (E/MeV)^-g2 exp(-g3 MeV/E), in cm2.
var aeffPars = map[string][3]float64{
	"HESS":  {6.85e9, 0.0891, 5e5},
	"HESS2": {2.05e9, 0.0891, 1e5},
	"CTA":   {1.71e11, 0.0891, 1e5},
}

// AeffFromParametrization evaluates a published instrument
// parametrization at the axis bin centers.
func AeffFromParametrization(axis maps.MapAxis, instrument string) (*EffectiveAreaTable, error) {
	g, ok := aeffPars[instrument]
	if !ok {
		return nil, fmt.Errorf("aeff: no parametrization for %q", instrument)
	}
	data := make([]float64, axis.NBin())
	for i := range data {
		x := axis.Center(i) * 1e6 // TeV to MeV
		data[i] = g[0] * math.Pow(x, -g[1]) * math.Exp(-g[2]/x)
	}
	return &EffectiveAreaTable{axis: axis, data: data}, nil
}

// Axis returns the true energy axis.
func (a *EffectiveAreaTable) Axis() maps.MapAxis { return a.axis }

// Data returns the area values in cm2.  The slice is live; callers
// stacking tables mutate through it deliberately.
func (a *EffectiveAreaTable) Data() []float64 { return a.data }

// Copy returns a deep copy.
func (a *EffectiveAreaTable) Copy() *EffectiveAreaTable {
	d := make([]float64, len(a.data))
	copy(d, a.data)
	return &EffectiveAreaTable{axis: a.axis, data: d}
}

// Max returns the largest area in the table.
func (a *EffectiveAreaTable) Max() float64 {
	m := math.Inf(-1)
	for _, v := range a.data {
		if v > m {
			m = v
		}
	}
	return m
}
