// Public domain.

package model

import (
	"math"

	"github.com/soniakeys/unit"
)

// SpatialModel is a surface brightness profile on the sky, normalized
// to integrate to one over the sphere.  Evaluate returns sr-1 at a
// lon/lat position in the local source frame.
type SpatialModel interface {
	Evaluate(lon, lat unit.Angle) float64
	Parameters() *Parameters
}

// AngularSeparation returns the on-sky angle between two positions,
// using the Vincenty formula for stability at small separations.
func AngularSeparation(lon1, lat1, lon2, lat2 unit.Angle) unit.Angle {
	sdlon, cdlon := math.Sincos(lon2.Rad() - lon1.Rad())
	slat1, clat1 := math.Sincos(lat1.Rad())
	slat2, clat2 := math.Sincos(lat2.Rad())

	num1 := clat2 * sdlon
	num2 := clat1*slat2 - slat1*clat2*cdlon
	den := slat1*slat2 + clat1*clat2*cdlon
	return unit.Angle(math.Atan2(math.Hypot(num1, num2), den))
}

// PointSource is a delta function source.  A tolerance of one
// arcsecond is accepted for numerical stability.
type PointSource struct {
	Lon0 *Parameter // deg
	Lat0 *Parameter // deg
}

func NewPointSource(lonDeg, latDeg float64) *PointSource {
	return &PointSource{
		Lon0: NewParameter("lon_0", lonDeg, "deg"),
		Lat0: NewParameter("lat_0", latDeg, "deg"),
	}
}

var pointTol = unit.AngleFromSec(1)

func (m *PointSource) Evaluate(lon, lat unit.Angle) float64 {
	sep := AngularSeparation(lon, lat,
		unit.AngleFromDeg(m.Lon0.Value), unit.AngleFromDeg(m.Lat0.Value))
	if sep <= pointTol {
		return 1
	}
	return 0
}

func (m *PointSource) Parameters() *Parameters {
	return NewParameters(m.Lon0, m.Lat0)
}

// Gaussian is a symmetric Gaussian profile of width sigma, normalized
// on the sphere:
// phi = exp(-(1-cos theta) / (2 (1-cos sigma))) / (4 pi a (1-e^(-1/a))),
// a = 1 - cos sigma.
type Gaussian struct {
	Lon0  *Parameter
	Lat0  *Parameter
	Sigma *Parameter // deg
}

func NewGaussian(lonDeg, latDeg, sigmaDeg float64) *Gaussian {
	sigma := NewParameter("sigma", sigmaDeg, "deg")
	sigma.Min = 0
	return &Gaussian{
		Lon0:  NewParameter("lon_0", lonDeg, "deg"),
		Lat0:  NewParameter("lat_0", latDeg, "deg"),
		Sigma: sigma,
	}
}

func (m *Gaussian) Evaluate(lon, lat unit.Angle) float64 {
	sep := AngularSeparation(lon, lat,
		unit.AngleFromDeg(m.Lon0.Value), unit.AngleFromDeg(m.Lat0.Value))
	a := 1 - math.Cos(unit.AngleFromDeg(m.Sigma.Value).Rad())
	norm := 1 / (4 * math.Pi * a * (1 - math.Exp(-1/a)))
	return norm * math.Exp(-.5*(1-math.Cos(sep.Rad()))/a)
}

func (m *Gaussian) Parameters() *Parameters {
	return NewParameters(m.Lon0, m.Lat0, m.Sigma)
}

// Disk is a constant brightness disk of radius r0:
// phi = 1 / (2 pi (1-cos r0)) inside, 0 outside.
type Disk struct {
	Lon0 *Parameter
	Lat0 *Parameter
	R0   *Parameter // deg
}

func NewDisk(lonDeg, latDeg, r0Deg float64) *Disk {
	r0 := NewParameter("r_0", r0Deg, "deg")
	r0.Min = 0
	return &Disk{
		Lon0: NewParameter("lon_0", lonDeg, "deg"),
		Lat0: NewParameter("lat_0", latDeg, "deg"),
		R0:   r0,
	}
}

func (m *Disk) Evaluate(lon, lat unit.Angle) float64 {
	sep := AngularSeparation(lon, lat,
		unit.AngleFromDeg(m.Lon0.Value), unit.AngleFromDeg(m.Lat0.Value))
	r0 := unit.AngleFromDeg(m.R0.Value)
	if sep > r0 {
		return 0
	}
	return 1 / (2 * math.Pi * (1 - math.Cos(r0.Rad())))
}

func (m *Disk) Parameters() *Parameters {
	return NewParameters(m.Lon0, m.Lat0, m.R0)
}

// Shell is a projected homogeneous spherical shell with inner radius
// and width, in the small angle approximation.
type Shell struct {
	Lon0   *Parameter
	Lat0   *Parameter
	Radius *Parameter // deg, inner
	Width  *Parameter // deg
}

func NewShell(lonDeg, latDeg, radiusDeg, widthDeg float64) *Shell {
	return &Shell{
		Lon0:   NewParameter("lon_0", lonDeg, "deg"),
		Lat0:   NewParameter("lat_0", latDeg, "deg"),
		Radius: NewParameter("radius", radiusDeg, "deg"),
		Width:  NewParameter("width", widthDeg, "deg"),
	}
}

func (m *Shell) Evaluate(lon, lat unit.Angle) float64 {
	sep := AngularSeparation(lon, lat,
		unit.AngleFromDeg(m.Lon0.Value), unit.AngleFromDeg(m.Lat0.Value)).Rad()
	rIn := unit.AngleFromDeg(m.Radius.Value).Rad()
	rOut := rIn + unit.AngleFromDeg(m.Width.Value).Rad()

	norm := 3 / (2 * math.Pi * (rOut*rOut*rOut - rIn*rIn*rIn))
	switch {
	case sep < rIn:
		return norm * (math.Sqrt(rOut*rOut-sep*sep) - math.Sqrt(rIn*rIn-sep*sep))
	case sep < rOut:
		return norm * math.Sqrt(rOut*rOut-sep*sep)
	}
	return 0
}

func (m *Shell) Parameters() *Parameters {
	return NewParameters(m.Lon0, m.Lat0, m.Radius, m.Width)
}
