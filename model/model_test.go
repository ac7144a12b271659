// Public domain.

package model_test

import (
	"math"
	"testing"

	"github.com/soniakeys/unit"

	"github.com/registerrier/gammapy/model"
)

func TestPowerLawIntegral(t *testing.T) {
	pl := model.NewPowerLaw()
	// index 2: integral over [1, 10] is amp (1 - 1/10)
	want := 1e-12 * .9
	if got := pl.Integral(1, 10); math.Abs(got-want) > 1e-12*want {
		t.Fatal("integral", got, want)
	}
	// index 1 falls back to the log form
	pl.Index.Value = 1
	want = 1e-12 * math.Log(10)
	if got := pl.Integral(1, 10); math.Abs(got-want) > 1e-12*want {
		t.Fatal("log integral", got, want)
	}
}

func TestExpCutoffLimit(t *testing.T) {
	// with a negligible cutoff the numeric integral matches the
	// closed power law form
	ec := model.NewExpCutoffPowerLaw()
	ec.Index.Value = 2
	ec.Lambda.Value = 1e-12

	pl := model.NewPowerLaw()
	want := pl.Integral(1, 10)
	if got := ec.Integral(1, 10); math.Abs(got-want) > 1e-6*want {
		t.Fatal("cutoff limit", got, want)
	}
}

func TestParameterAutoscale(t *testing.T) {
	p := model.NewParameter("amplitude", 3e-12, "cm-2 s-1 TeV-1")
	p.Autoscale()
	if p.Scale() != 1e-12 {
		t.Fatal("scale", p.Scale())
	}
	if math.Abs(p.Factor()-3) > 1e-12 {
		t.Fatal("factor", p.Factor())
	}
	p.SetFactor(4)
	if math.Abs(p.Value-4e-12) > 1e-24 {
		t.Fatal("value after SetFactor", p.Value)
	}
}

func TestParameterBounds(t *testing.T) {
	p := model.NewParameter("index", 2, "")
	if !p.InBounds() {
		t.Fatal("unbounded parameter out of bounds")
	}
	p.Min = 0
	p.Max = 5
	p.Value = 6
	if p.InBounds() {
		t.Fatal("value above max in bounds")
	}
}

func TestMergeDedupe(t *testing.T) {
	shared := model.NewParameter("index", 2, "")
	a := model.NewParameters(shared, model.NewParameter("amplitude", 1, ""))
	b := model.NewParameters(shared)
	m := model.Merge(a, b)
	if m.Len() != 2 {
		t.Fatal("merged length", m.Len())
	}
	if m.List()[0] != shared {
		t.Fatal("order not preserved")
	}
}

func TestModelsUniqueNames(t *testing.T) {
	m1, err := model.NewSkyModel("src", model.NewPowerLaw(), nil)
	if err != nil {
		t.Fatal(err)
	}
	m2, _ := model.NewSkyModel("src", model.NewPowerLaw(), nil)
	ms, err := model.NewModels(m1)
	if err != nil {
		t.Fatal(err)
	}
	if err := ms.Append(m2); err == nil {
		t.Fatal("expected duplicate name rejection")
	}
	if _, err := model.NewSkyModel("", model.NewPowerLaw(), nil); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := model.NewSkyModel("x", nil, nil); err == nil {
		t.Fatal("expected error for missing spectral model")
	}
}

func TestAngularSeparation(t *testing.T) {
	sep := model.AngularSeparation(0, 0, 0, unit.AngleFromDeg(90))
	if math.Abs(sep.Deg()-90) > 1e-12 {
		t.Fatal("separation", sep.Deg())
	}
	// stable at tiny separations
	sep = model.AngularSeparation(0, 0, unit.AngleFromSec(.001), 0)
	if math.Abs(sep.Deg()*3600-.001) > 1e-9 {
		t.Fatal("small separation", sep.Deg()*3600)
	}
}

func TestSpatialNormalizationSigns(t *testing.T) {
	g := model.NewGaussian(0, 0, 1)
	center := g.Evaluate(0, 0)
	off := g.Evaluate(unit.AngleFromDeg(3), 0)
	if center <= 0 || off >= center {
		t.Fatal("gaussian profile not peaked at center")
	}

	d := model.NewDisk(0, 0, 1)
	if d.Evaluate(0, 0) <= 0 {
		t.Fatal("disk zero inside")
	}
	if d.Evaluate(unit.AngleFromDeg(2), 0) != 0 {
		t.Fatal("disk nonzero outside")
	}

	p := model.NewPointSource(10, 5)
	if p.Evaluate(unit.AngleFromDeg(10), unit.AngleFromDeg(5)) != 1 {
		t.Fatal("point source zero at its position")
	}
	if p.Evaluate(0, 0) != 0 {
		t.Fatal("point source nonzero away from its position")
	}
}
