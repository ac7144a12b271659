// Public domain.

package irf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/registerrier/gammapy/maps"
)

// EDispKernel is an energy dispersion kernel: the probability matrix
// P(reco bin | true bin).  Rows are true energy, columns reco energy;
// each row sums to at most one, the deficit being events migrating out
// of the reco range.
type EDispKernel struct {
	axisTrue maps.MapAxis
	axisReco maps.MapAxis
	pdf      *mat.Dense
}

// NewEDispKernel wraps a probability matrix, validating its shape.
func NewEDispKernel(axisTrue, axisReco maps.MapAxis, pdf *mat.Dense) (*EDispKernel, error) {
	r, c := pdf.Dims()
	if r != axisTrue.NBin() || c != axisReco.NBin() {
		return nil, fmt.Errorf("edisp: matrix %dx%d for %d true, %d reco bins",
			r, c, axisTrue.NBin(), axisReco.NBin())
	}
	return &EDispKernel{axisTrue: axisTrue, axisReco: axisReco, pdf: pdf}, nil
}

// EDispFromDiagonal returns the kernel of a perfect instrument: each
// true bin center is assigned entirely to the reco bin containing it.
func EDispFromDiagonal(axisTrue, axisReco maps.MapAxis) *EDispKernel {
	pdf := mat.NewDense(axisTrue.NBin(), axisReco.NBin(), nil)
	edges := axisReco.Edges()
	for i := 0; i < axisTrue.NBin(); i++ {
		c := axisTrue.Center(i)
		for j := 0; j < axisReco.NBin(); j++ {
			if c >= edges[j] && c < edges[j+1] {
				pdf.Set(i, j, 1)
				break
			}
		}
	}
	return &EDispKernel{axisTrue: axisTrue, axisReco: axisReco, pdf: pdf}
}

// EDispFromGauss returns a kernel with Gaussian migration
// mu = E_reco/E_true distributed as N(1+bias, sigma).
func EDispFromGauss(axisTrue, axisReco maps.MapAxis, sigma, bias float64) *EDispKernel {
	pdf := mat.NewDense(axisTrue.NBin(), axisReco.NBin(), nil)
	edges := axisReco.Edges()
	for i := 0; i < axisTrue.NBin(); i++ {
		et := axisTrue.Center(i)
		for j := 0; j < axisReco.NBin(); j++ {
			lo := edges[j]/et - (1 + bias)
			hi := edges[j+1]/et - (1 + bias)
			pdf.Set(i, j, gaussCDF(hi/sigma)-gaussCDF(lo/sigma))
		}
	}
	return &EDispKernel{axisTrue: axisTrue, axisReco: axisReco, pdf: pdf}
}

func gaussCDF(x float64) float64 {
	return .5 * (1 + math.Erf(x/math.Sqrt2))
}

// AxisTrue returns the true energy axis.
func (e *EDispKernel) AxisTrue() maps.MapAxis { return e.axisTrue }

// AxisReco returns the reco energy axis.
func (e *EDispKernel) AxisReco() maps.MapAxis { return e.axisReco }

// PDF returns the live probability matrix.
func (e *EDispKernel) PDF() *mat.Dense { return e.pdf }

// Copy returns a deep copy.
func (e *EDispKernel) Copy() *EDispKernel {
	pdf := mat.DenseCopyOf(e.pdf)
	return &EDispKernel{axisTrue: e.axisTrue, axisReco: e.axisReco, pdf: pdf}
}

// Apply folds a vector of counts on the true energy axis into reco
// space.
func (e *EDispKernel) Apply(trueCounts []float64) ([]float64, error) {
	if len(trueCounts) != e.axisTrue.NBin() {
		return nil, fmt.Errorf("edisp: %d true counts for %d bins",
			len(trueCounts), e.axisTrue.NBin())
	}
	in := mat.NewVecDense(len(trueCounts), trueCounts)
	out := mat.NewVecDense(e.axisReco.NBin(), nil)
	out.MulVec(e.pdf.T(), in)
	return out.RawVector().Data, nil
}

// Bias returns the mean fractional energy shift for the true bin
// containing energy, computed from the kernel moments.
func (e *EDispKernel) Bias(energy float64) float64 {
	mean, _ := e.moments(energy)
	return mean - 1
}

// Resolution returns the fractional energy resolution for the true bin
// containing energy.
func (e *EDispKernel) Resolution(energy float64) float64 {
	_, std := e.moments(energy)
	return std
}

func (e *EDispKernel) moments(energy float64) (mean, std float64) {
	i := binIndex(e.axisTrue, energy)
	if i < 0 {
		return math.NaN(), math.NaN()
	}
	et := e.axisTrue.Center(i)
	var norm, m1, m2 float64
	for j := 0; j < e.axisReco.NBin(); j++ {
		p := e.pdf.At(i, j)
		mu := e.axisReco.Center(j) / et
		norm += p
		m1 += p * mu
		m2 += p * mu * mu
	}
	if norm == 0 {
		return math.NaN(), math.NaN()
	}
	mean = m1 / norm
	v := m2/norm - mean*mean
	if v < 0 {
		v = 0
	}
	return mean, math.Sqrt(v)
}

func binIndex(axis maps.MapAxis, energy float64) int {
	edges := axis.Edges()
	for i := 0; i < axis.NBin(); i++ {
		if energy >= edges[i] && energy < edges[i+1] {
			return i
		}
	}
	return -1
}
