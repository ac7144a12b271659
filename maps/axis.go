// Public domain.

// Package maps defines binning axes, data geometries and the flat
// binned data arrays that counts datasets are built on.
package maps

import (
	"errors"
	"fmt"
	"math"
)

// Axis interpolation modes.
const (
	InterpLog = "log"
	InterpLin = "lin"
)

// MapAxis is a named binning axis.  Edges are bin boundaries in
// increasing order, so an axis with n+1 edges has n bins.  Energy axes
// are in TeV and normally log-interpolated.
type MapAxis struct {
	name   string
	edges  []float64
	interp string
}

// NewAxis validates edges and returns an axis.
func NewAxis(name string, edges []float64, interp string) (MapAxis, error) {
	if len(edges) < 2 {
		return MapAxis{}, errors.New("axis needs at least two edges")
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return MapAxis{}, fmt.Errorf("axis %s: edges not increasing at %d", name, i)
		}
	}
	switch interp {
	case InterpLog, InterpLin:
	default:
		return MapAxis{}, fmt.Errorf("axis %s: unknown interp %q", name, interp)
	}
	if interp == InterpLog && edges[0] <= 0 {
		return MapAxis{}, fmt.Errorf("axis %s: log axis needs positive edges", name)
	}
	e := make([]float64, len(edges))
	copy(e, edges)
	return MapAxis{name: name, edges: e, interp: interp}, nil
}

// EnergyBounds returns a log-spaced energy axis with nbin bins between
// emin and emax, in TeV.
func EnergyBounds(name string, emin, emax float64, nbin int) (MapAxis, error) {
	if nbin < 1 || !(emax > emin) || emin <= 0 {
		return MapAxis{}, fmt.Errorf("invalid energy bounds [%g, %g] / %d", emin, emax, nbin)
	}
	edges := make([]float64, nbin+1)
	lmin, lmax := math.Log(emin), math.Log(emax)
	for i := range edges {
		edges[i] = math.Exp(lmin + (lmax-lmin)*float64(i)/float64(nbin))
	}
	edges[0] = emin
	edges[nbin] = emax
	return NewAxis(name, edges, InterpLog)
}

func (a MapAxis) Name() string { return a.name }

// Interp returns the interpolation mode, InterpLog or InterpLin.
func (a MapAxis) Interp() string { return a.interp }

// NBin returns the number of bins.
func (a MapAxis) NBin() int { return len(a.edges) - 1 }

// Edges returns a copy of the bin edges.
func (a MapAxis) Edges() []float64 {
	e := make([]float64, len(a.edges))
	copy(e, a.edges)
	return e
}

// Center returns the center of bin i, geometric for log axes.
func (a MapAxis) Center(i int) float64 {
	lo, hi := a.edges[i], a.edges[i+1]
	if a.interp == InterpLog {
		return math.Sqrt(lo * hi)
	}
	return .5 * (lo + hi)
}

// Centers returns all bin centers.
func (a MapAxis) Centers() []float64 {
	c := make([]float64, a.NBin())
	for i := range c {
		c[i] = a.Center(i)
	}
	return c
}

// BinWidth returns the width of bin i.
func (a MapAxis) BinWidth(i int) float64 { return a.edges[i+1] - a.edges[i] }

// EnergyMask returns a bool mask selecting the bins fully contained in
// [emin, emax].  Pass NaN to leave a boundary open.
func (a MapAxis) EnergyMask(emin, emax float64) []bool {
	m := make([]bool, a.NBin())
	for i := range m {
		ok := true
		if !math.IsNaN(emin) && a.edges[i] < emin {
			ok = false
		}
		if !math.IsNaN(emax) && a.edges[i+1] > emax {
			ok = false
		}
		m[i] = ok
	}
	return m
}

// Equal reports whether two axes have the same name, interp and edges.
func (a MapAxis) Equal(b MapAxis) bool {
	if a.name != b.name || a.interp != b.interp || len(a.edges) != len(b.edges) {
		return false
	}
	for i, e := range a.edges {
		if e != b.edges[i] {
			return false
		}
	}
	return true
}
