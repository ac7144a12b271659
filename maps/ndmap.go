// Public domain.

package maps

import (
	"fmt"
	"math"

	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/floats"
)

// Geom is a data geometry: an energy axis plus an optional spatial
// pixelization.  Spectrum data uses a single 1x1 "region" pixel.  The
// data layout is flat, energy-major, in the manner of a binned model
// lookup: index ((ie*nLat)+ilat)*nLon + ilon.
type Geom struct {
	axis       MapAxis
	nLon, nLat int
	binSz      unit.Angle // pixel size, image geoms only
}

// NewGeom returns a region geometry with a single spatial pixel.
func NewGeom(axis MapAxis) Geom {
	return Geom{axis: axis, nLon: 1, nLat: 1}
}

// NewImageGeom returns a geometry with nLon x nLat pixels of size
// binSz, centered on the origin of a local lon/lat frame.
func NewImageGeom(axis MapAxis, nLon, nLat int, binSz unit.Angle) (Geom, error) {
	if nLon < 1 || nLat < 1 {
		return Geom{}, fmt.Errorf("invalid pixelization %dx%d", nLon, nLat)
	}
	if binSz <= 0 {
		return Geom{}, fmt.Errorf("invalid pixel size %g", binSz.Deg())
	}
	return Geom{axis: axis, nLon: nLon, nLat: nLat, binSz: binSz}, nil
}

func (g Geom) Axis() MapAxis { return g.axis }

// NPix returns the spatial pixel counts.
func (g Geom) NPix() (nLon, nLat int) { return g.nLon, g.nLat }

// Size returns the flat data length.
func (g Geom) Size() int { return g.axis.NBin() * g.nLon * g.nLat }

// Idx returns the flat index for an (energy, lat, lon) bin.
func (g Geom) Idx(ie, ilat, ilon int) int {
	return (ie*g.nLat+ilat)*g.nLon + ilon
}

// PixCenter returns the center of a spatial pixel in the local frame.
func (g Geom) PixCenter(ilat, ilon int) (lon, lat unit.Angle) {
	lon = g.binSz * unit.Angle(float64(ilon)-.5*float64(g.nLon-1))
	lat = g.binSz * unit.Angle(float64(ilat)-.5*float64(g.nLat-1))
	return
}

// SolidAngle returns the per-pixel solid angle in steradians.  Region
// geometries have no defined pixel size and return 1, leaving spatial
// weighting to the caller.
func (g Geom) SolidAngle() float64 {
	if g.binSz == 0 {
		return 1
	}
	return g.binSz.Rad() * g.binSz.Rad()
}

// Equal reports whether two geometries match.
func (g Geom) Equal(o Geom) bool {
	return g.axis.Equal(o.axis) && g.nLon == o.nLon && g.nLat == o.nLat &&
		g.binSz == o.binSz
}

// NDMap is a data array over a geometry.  Data is flat; use Geom.Idx
// for multidimensional access.
type NDMap struct {
	geom Geom
	Data []float64
}

// NewNDMap returns a zero-filled map over geom.
func NewNDMap(geom Geom) *NDMap {
	return &NDMap{geom: geom, Data: make([]float64, geom.Size())}
}

// NDMapFromData wraps data over geom, validating the length.
func NDMapFromData(geom Geom, data []float64) (*NDMap, error) {
	if len(data) != geom.Size() {
		return nil, fmt.Errorf("data length %d does not match geometry size %d",
			len(data), geom.Size())
	}
	return &NDMap{geom: geom, Data: data}, nil
}

func (m *NDMap) Geom() Geom { return m.geom }

// Copy returns a deep copy.
func (m *NDMap) Copy() *NDMap {
	d := make([]float64, len(m.Data))
	copy(d, m.Data)
	return &NDMap{geom: m.geom, Data: d}
}

// Sum returns the total of all bins.
func (m *NDMap) Sum() float64 { return floats.Sum(m.Data) }

// SumWhere returns the total of the bins selected by mask.  A nil mask
// selects everything.
func (m *NDMap) SumWhere(mask []bool) float64 {
	if mask == nil {
		return m.Sum()
	}
	var s float64
	for i, ok := range mask {
		if ok {
			s += m.Data[i]
		}
	}
	return s
}

// AddWhere adds other into m, restricted to the bins selected by mask.
func (m *NDMap) AddWhere(other *NDMap, mask []bool) error {
	if len(other.Data) != len(m.Data) {
		return fmt.Errorf("map length mismatch %d != %d", len(other.Data), len(m.Data))
	}
	for i, v := range other.Data {
		if mask == nil || mask[i] {
			m.Data[i] += v
		}
	}
	return nil
}

// ZeroWhereNot clears the bins not selected by mask.
func (m *NDMap) ZeroWhereNot(mask []bool) {
	if mask == nil {
		return
	}
	for i, ok := range mask {
		if !ok {
			m.Data[i] = 0
		}
	}
}

// Scale multiplies all bins by c.
func (m *NDMap) Scale(c float64) { floats.Scale(c, m.Data) }

// AllFinite reports whether the map holds no NaN or Inf.
func (m *NDMap) AllFinite() bool {
	for _, v := range m.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MaskAnd combines two masks into a fresh slice, so writes through the
// result never reach the operands.  A nil operand means "all included";
// two nil masks give nil.
func MaskAnd(a, b []bool) []bool {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return append([]bool(nil), b...)
	case b == nil:
		return append([]bool(nil), a...)
	}
	m := make([]bool, len(a))
	for i := range a {
		m[i] = a[i] && b[i]
	}
	return m
}

// MaskOr combines two masks, nil meaning "all included".
func MaskOr(a, b []bool) []bool {
	if a == nil || b == nil {
		return nil
	}
	m := make([]bool, len(a))
	for i := range a {
		m[i] = a[i] || b[i]
	}
	return m
}

// MaskAll returns an all-true mask of length n.
func MaskAll(n int) []bool {
	m := make([]bool, n)
	for i := range m {
		m[i] = true
	}
	return m
}

// CountTrue returns the number of selected bins, n for a nil mask.
func CountTrue(mask []bool, n int) int {
	if mask == nil {
		return n
	}
	c := 0
	for _, ok := range mask {
		if ok {
			c++
		}
	}
	return c
}
