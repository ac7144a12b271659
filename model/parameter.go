// Public domain.

// Package model implements fit parameters and the spectral and spatial
// source models evaluated by counts datasets.
package model

import (
	"fmt"
	"math"
	"strings"
)

// Parameter is a named model parameter.  Optimizers work on the
// dimensionless factor value/scale; Autoscale picks a power of ten
// scale so factors stay near unity.
type Parameter struct {
	Name   string
	Value  float64
	Unit   string
	Min    float64 // NaN when unbounded
	Max    float64 // NaN when unbounded
	Frozen bool
	Error  float64

	scale float64
}

// NewParameter returns an unbounded free parameter with scale 1.
func NewParameter(name string, value float64, unit string) *Parameter {
	return &Parameter{
		Name:  name,
		Value: value,
		Unit:  unit,
		Min:   math.NaN(),
		Max:   math.NaN(),
		scale: 1,
	}
}

// Scale returns the current factor scale.
func (p *Parameter) Scale() float64 {
	if p.scale == 0 {
		return 1
	}
	return p.scale
}

// Factor returns value/scale.
func (p *Parameter) Factor() float64 { return p.Value / p.Scale() }

// SetFactor sets the value from a factor.
func (p *Parameter) SetFactor(f float64) { p.Value = f * p.Scale() }

// Autoscale sets the scale to the power of ten of the current value.
func (p *Parameter) Autoscale() {
	if p.Value == 0 {
		p.scale = 1
		return
	}
	p.scale = math.Pow(10, math.Floor(math.Log10(math.Abs(p.Value))))
}

// InBounds reports whether the value respects the min/max limits.
func (p *Parameter) InBounds() bool {
	if !math.IsNaN(p.Min) && p.Value < p.Min {
		return false
	}
	if !math.IsNaN(p.Max) && p.Value > p.Max {
		return false
	}
	return true
}

// Parameters is an ordered parameter set.  Joint fits merge the sets
// of several models; duplicates (same pointer) are kept once.
type Parameters struct {
	list []*Parameter
}

// NewParameters wraps a list of parameters.
func NewParameters(ps ...*Parameter) *Parameters {
	return &Parameters{list: ps}
}

// Merge returns the unique union of several sets, preserving order.
func Merge(sets ...*Parameters) *Parameters {
	seen := map[*Parameter]bool{}
	var out []*Parameter
	for _, s := range sets {
		if s == nil {
			continue
		}
		for _, p := range s.list {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return &Parameters{list: out}
}

// List returns the underlying slice.
func (ps *Parameters) List() []*Parameter { return ps.list }

func (ps *Parameters) Len() int { return len(ps.list) }

// Free returns the non-frozen parameters.
func (ps *Parameters) Free() []*Parameter {
	var f []*Parameter
	for _, p := range ps.list {
		if !p.Frozen {
			f = append(f, p)
		}
	}
	return f
}

// ByName returns the first parameter with the given name.
func (ps *Parameters) ByName(name string) (*Parameter, error) {
	for _, p := range ps.list {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no parameter named %q", name)
}

// Autoscale rescales every free parameter.
func (ps *Parameters) Autoscale() {
	for _, p := range ps.Free() {
		p.Autoscale()
	}
}

// Factors returns the factors of the free parameters.
func (ps *Parameters) Factors() []float64 {
	free := ps.Free()
	f := make([]float64, len(free))
	for i, p := range free {
		f[i] = p.Factor()
	}
	return f
}

// SetFactors sets the free parameters from an optimizer vector.
func (ps *Parameters) SetFactors(factors []float64) error {
	free := ps.Free()
	if len(factors) != len(free) {
		return fmt.Errorf("%d factors for %d free parameters", len(factors), len(free))
	}
	for i, p := range free {
		p.SetFactor(factors[i])
	}
	return nil
}

// InBounds reports whether all free parameters respect their limits.
func (ps *Parameters) InBounds() bool {
	for _, p := range ps.Free() {
		if !p.InBounds() {
			return false
		}
	}
	return true
}

// Table returns a plain text summary.
func (ps *Parameters) Table() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %14s %6s %-16s %10s\n",
		"name", "value", "frozen", "unit", "error")
	for _, p := range ps.list {
		fmt.Fprintf(&b, "%-12s %14.6e %6t %-16s %10.3e\n",
			p.Name, p.Value, p.Frozen, p.Unit, p.Error)
	}
	return b.String()
}
