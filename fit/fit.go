// Public domain.

// Package fit estimates model parameters by minimizing the joint fit
// statistic of a dataset collection.
package fit

import (
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/registerrier/gammapy/dataset"
	"github.com/registerrier/gammapy/model"
)

// Fit backends.
const (
	BackendSimplex = "simplex"
	BackendLevMar  = "levmar"
)

// Fit minimizes the joint statistic of a dataset collection over the
// free model parameters.  Optimizers work on dimensionless parameter
// factors; Autoscale is applied before each run.
type Fit struct {
	Datasets *dataset.Datasets
	Backend  string
}

// New returns a fit with the default simplex backend.
func New(ds *dataset.Datasets) *Fit {
	return &Fit{Datasets: ds, Backend: BackendSimplex}
}

// Result holds the outcome of a fit.
type Result struct {
	Success    bool
	Message    string
	Backend    string
	NFev       int
	TotalStat  float64
	Parameters *model.Parameters
	Covariance *mat.Dense // free factor space, nil before Covariance
}

func (r *Result) String() string {
	return fmt.Sprintf("FitResult\n\n\tbackend    : %s\n\tsuccess    : %t\n\tmessage    : %s\n\tnfev       : %d\n\ttotal stat : %.2f\n",
		r.Backend, r.Success, r.Message, r.NFev, r.TotalStat)
}

// TotalStat sets the free parameter factors and returns the joint
// statistic.  Out of bounds factors give +Inf, which simplex moves
// away from.
func (f *Fit) TotalStat(factors []float64) float64 {
	pars := f.Datasets.Parameters()
	if err := pars.SetFactors(factors); err != nil {
		return math.Inf(1)
	}
	if !pars.InBounds() {
		return math.Inf(1)
	}
	return f.Datasets.StatSum()
}

// Optimize runs the backend and leaves the parameters at the best fit
// values.
func (f *Fit) Optimize() (*Result, error) {
	pars := f.Datasets.Parameters()
	free := pars.Free()
	if len(free) == 0 {
		return nil, fmt.Errorf("no free parameters to fit")
	}
	pars.Autoscale()

	switch f.Backend {
	case BackendSimplex, "":
		return f.optimizeSimplex(pars)
	case BackendLevMar:
		return f.optimizeLevMar(pars)
	}
	return nil, fmt.Errorf("unknown backend %q", f.Backend)
}

func (f *Fit) optimizeSimplex(pars *model.Parameters) (*Result, error) {
	problem := optimize.Problem{Func: f.TotalStat}
	res, err := optimize.Minimize(problem, pars.Factors(), nil, &optimize.NelderMead{})
	if err != nil {
		return nil, err
	}
	if err := pars.SetFactors(res.X); err != nil {
		return nil, err
	}
	return &Result{
		Success:    res.Status.Err() == nil,
		Message:    res.Status.String(),
		Backend:    BackendSimplex,
		NFev:       res.Stats.FuncEvaluations,
		TotalStat:  res.F,
		Parameters: pars,
	}, nil
}

// residualer is implemented by datasets whose statistic is a sum of
// squared residuals, which the Levenberg-Marquardt backend needs.
type residualer interface {
	Residuals() []float64
	Mask() []bool
}

func (f *Fit) optimizeLevMar(pars *model.Parameters) (*Result, error) {
	var rds []residualer
	size := 0
	for i := 0; i < f.Datasets.Len(); i++ {
		rd, ok := f.Datasets.Get(i).(residualer)
		if !ok {
			return nil, fmt.Errorf("backend %q needs residuals, %T has none",
				BackendLevMar, f.Datasets.Get(i))
		}
		rds = append(rds, rd)
		size += len(maskedResiduals(rd))
	}

	resFunc := func(dst, x []float64) {
		if err := pars.SetFactors(x); err != nil {
			panic(err)
		}
		k := 0
		for _, rd := range rds {
			for _, r := range maskedResiduals(rd) {
				dst[k] = r
				k++
			}
		}
	}
	jac := &lm.NumJac{Func: resFunc}
	problem := lm.LMProblem{
		Dim:        len(pars.Free()),
		Size:       size,
		Func:       resFunc,
		Jac:        jac.Jac,
		InitParams: pars.Factors(),
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}
	res, err := lm.LM(problem, &lm.Settings{Iterations: 100, ObjectiveTol: 1e-16})
	if err != nil {
		return nil, err
	}
	if err := pars.SetFactors(res.X); err != nil {
		return nil, err
	}
	return &Result{
		Success:    true,
		Message:    "terminated",
		Backend:    BackendLevMar,
		NFev:       0,
		TotalStat:  f.Datasets.StatSum(),
		Parameters: pars,
	}, nil
}

func maskedResiduals(rd residualer) []float64 {
	res := rd.Residuals()
	mask := rd.Mask()
	if mask == nil {
		return res
	}
	out := res[:0:0]
	for i, r := range res {
		if mask[i] {
			out = append(out, r)
		}
	}
	return out
}

// Run optimizes and estimates the covariance.
func (f *Fit) Run() (*Result, error) {
	res, err := f.Optimize()
	if err != nil {
		return nil, err
	}
	if err := f.Covariance(res); err != nil {
		return nil, err
	}
	return res, nil
}

// Covariance estimates parameter errors from the numeric Hessian of
// the statistic at the best fit: cov = 2 H^-1 for a statistic that is
// -2 log likelihood.  Parameter errors are written back in value
// space.
func (f *Fit) Covariance(res *Result) error {
	pars := f.Datasets.Parameters()
	free := pars.Free()
	n := len(free)
	if n == 0 {
		return fmt.Errorf("no free parameters")
	}
	x := pars.Factors()
	h := hessian(f.TotalStat, x)

	var inv mat.Dense
	if err := inv.Inverse(h); err != nil {
		return fmt.Errorf("covariance: %w", err)
	}
	cov := mat.NewDense(n, n, nil)
	cov.Scale(2, &inv)
	res.Covariance = cov

	for i, p := range free {
		v := cov.At(i, i)
		if v < 0 {
			p.Error = math.NaN()
			continue
		}
		p.Error = p.Scale() * math.Sqrt(v)
	}
	// evaluating the hessian moved the parameters, restore them
	return pars.SetFactors(x)
}

// hessian returns the symmetric matrix of second differences of fn
// at x.
func hessian(fn func([]float64) float64, x []float64) *mat.SymDense {
	n := len(x)
	h := mat.NewSymDense(n, nil)
	step := make([]float64, n)
	for i := range x {
		step[i] = 1e-4 * math.Max(math.Abs(x[i]), 1)
	}
	at := func(di, dj map[int]float64) float64 {
		y := make([]float64, n)
		copy(y, x)
		for k, v := range di {
			y[k] += v
		}
		for k, v := range dj {
			y[k] += v
		}
		return fn(y)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (at(map[int]float64{i: step[i]}, map[int]float64{j: step[j]}) -
				at(map[int]float64{i: step[i]}, map[int]float64{j: -step[j]}) -
				at(map[int]float64{i: -step[i]}, map[int]float64{j: step[j]}) +
				at(map[int]float64{i: -step[i]}, map[int]float64{j: -step[j]})) /
				(4 * step[i] * step[j])
			h.SetSym(i, j, v)
		}
	}
	return h
}

// StatProfile evaluates the statistic over a grid of values of one
// parameter.  With reoptimize, the other free parameters are fitted at
// each point; otherwise they stay at their current values.
func (f *Fit) StatProfile(p *model.Parameter, values []float64, reoptimize bool) ([]float64, error) {
	saved := p.Value
	frozen := p.Frozen
	defer func() {
		p.Value = saved
		p.Frozen = frozen
	}()
	p.Frozen = true

	stats := make([]float64, len(values))
	for i, v := range values {
		p.Value = v
		if reoptimize {
			if _, err := f.Optimize(); err != nil {
				return nil, err
			}
		}
		stats[i] = f.Datasets.StatSum()
	}
	return stats, nil
}
