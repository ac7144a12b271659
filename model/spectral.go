// Public domain.

package model

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// SpectralModel is a differential photon flux model.  Evaluate returns
// dN/dE in cm-2 s-1 TeV-1 at an energy in TeV; Integral returns the
// flux integrated between two energies, in cm-2 s-1.
type SpectralModel interface {
	Evaluate(energy float64) float64
	Integral(emin, emax float64) float64
	Parameters() *Parameters
}

// quadNodes is the fixed-order Legendre rule used for spectral models
// without a closed-form integral.
const quadNodes = 40

func numIntegral(m SpectralModel, emin, emax float64) float64 {
	return quad.Fixed(m.Evaluate, emin, emax, quadNodes, nil, 0)
}

// PowerLaw is amplitude (E/reference)^-index.
type PowerLaw struct {
	Index     *Parameter
	Amplitude *Parameter // cm-2 s-1 TeV-1
	Reference *Parameter // TeV, frozen by default
}

// NewPowerLaw returns a power law with the usual defaults:
// index 2, amplitude 1e-12 cm-2 s-1 TeV-1, reference 1 TeV.
func NewPowerLaw() *PowerLaw {
	ref := NewParameter("reference", 1, "TeV")
	ref.Frozen = true
	return &PowerLaw{
		Index:     NewParameter("index", 2, ""),
		Amplitude: NewParameter("amplitude", 1e-12, "cm-2 s-1 TeV-1"),
		Reference: ref,
	}
}

func (m *PowerLaw) Evaluate(energy float64) float64 {
	return m.Amplitude.Value * math.Pow(energy/m.Reference.Value, -m.Index.Value)
}

// Integral uses the closed form, falling back to a log integral when
// the index is 1.
func (m *PowerLaw) Integral(emin, emax float64) float64 {
	idx := m.Index.Value
	ref := m.Reference.Value
	amp := m.Amplitude.Value
	if math.Abs(idx-1) < 1e-9 {
		return amp * ref * math.Log(emax/emin)
	}
	g := 1 - idx
	return amp * ref / g *
		(math.Pow(emax/ref, g) - math.Pow(emin/ref, g))
}

func (m *PowerLaw) Parameters() *Parameters {
	return NewParameters(m.Index, m.Amplitude, m.Reference)
}

// ExpCutoffPowerLaw is a power law with exponential cutoff:
// amplitude (E/reference)^-index exp(-lambda E).
type ExpCutoffPowerLaw struct {
	Index     *Parameter
	Amplitude *Parameter
	Reference *Parameter
	Lambda    *Parameter // TeV-1
}

func NewExpCutoffPowerLaw() *ExpCutoffPowerLaw {
	ref := NewParameter("reference", 1, "TeV")
	ref.Frozen = true
	return &ExpCutoffPowerLaw{
		Index:     NewParameter("index", 1.5, ""),
		Amplitude: NewParameter("amplitude", 1e-12, "cm-2 s-1 TeV-1"),
		Reference: ref,
		Lambda:    NewParameter("lambda_", 0.1, "TeV-1"),
	}
}

func (m *ExpCutoffPowerLaw) Evaluate(energy float64) float64 {
	pwl := m.Amplitude.Value * math.Pow(energy/m.Reference.Value, -m.Index.Value)
	return pwl * math.Exp(-m.Lambda.Value*energy)
}

func (m *ExpCutoffPowerLaw) Integral(emin, emax float64) float64 {
	return numIntegral(m, emin, emax)
}

func (m *ExpCutoffPowerLaw) Parameters() *Parameters {
	return NewParameters(m.Index, m.Amplitude, m.Reference, m.Lambda)
}

// Constant is an energy-independent differential flux.
type Constant struct {
	Const *Parameter
}

func NewConstant(value float64) *Constant {
	return &Constant{Const: NewParameter("const", value, "cm-2 s-1 TeV-1")}
}

func (m *Constant) Evaluate(energy float64) float64 { return m.Const.Value }

func (m *Constant) Integral(emin, emax float64) float64 {
	return m.Const.Value * (emax - emin)
}

func (m *Constant) Parameters() *Parameters { return NewParameters(m.Const) }
