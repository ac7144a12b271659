// Public domain.

package stats

import "math"

// CountsStatistic summarizes the signal significance of a counts
// measurement against its estimated background.
type CountsStatistic interface {
	Excess() float64
	TS() float64
	Significance() float64
	ErrorEstimate() float64
	ComputeErrn(nSigma float64) float64
	ComputeErrp(nSigma float64) float64
	ComputeUpperLimit(nSigma float64) float64
}

// CashCountsStatistic describes counts measured on top of a known
// background expectation, judged with the Cash statistic.
type CashCountsStatistic struct {
	N     float64 // observed counts
	MuBkg float64 // expected background counts
}

func (s CashCountsStatistic) Excess() float64 { return s.N - s.MuBkg }

// TS returns the statistic difference between the background-only
// hypothesis and the best-fit signal hypothesis.
func (s CashCountsStatistic) TS() float64 {
	statNull := CashBin(s.N, s.MuBkg)
	// best fit signal saturates the model at mu = n
	statMax := CashBin(s.N, s.N)
	return statNull - statMax
}

// Significance returns sqrt(TS) signed by the excess.
func (s CashCountsStatistic) Significance() float64 {
	return significance(s.TS(), s.Excess())
}

// ErrorEstimate returns a symmetric counting error, sqrt(n).
func (s CashCountsStatistic) ErrorEstimate() float64 { return math.Sqrt(s.N) }

func (s CashCountsStatistic) statFun(mu float64) float64 {
	return CashBin(s.N, s.MuBkg+mu)
}

// ComputeErrn returns the downward nSigma uncertainty on the excess,
// as a positive number.
func (s CashCountsStatistic) ComputeErrn(nSigma float64) float64 {
	return statErrn(s.statFun, s.Excess(), s.ErrorEstimate(), nSigma)
}

// ComputeErrp returns the upward nSigma uncertainty on the excess.
func (s CashCountsStatistic) ComputeErrp(nSigma float64) float64 {
	return statErrp(s.statFun, s.Excess(), s.ErrorEstimate(), nSigma)
}

// ComputeUpperLimit returns the nSigma upper limit on the excess.
func (s CashCountsStatistic) ComputeUpperLimit(nSigma float64) float64 {
	return statUpperLimit(s.statFun, s.Excess(), s.ErrorEstimate(), nSigma)
}

// WStatCountsStatistic describes an on/off counts measurement with
// background exposure ratio alpha, judged with WStat.
type WStatCountsStatistic struct {
	NOn   float64
	NOff  float64
	Alpha float64
}

func (s WStatCountsStatistic) Excess() float64 { return s.NOn - s.Alpha*s.NOff }

func (s WStatCountsStatistic) TS() float64 {
	statNull := WstatBin(s.NOn, s.NOff, s.Alpha, 0)
	statMax := WstatBin(s.NOn, s.NOff, s.Alpha, s.Excess())
	return statNull - statMax
}

func (s WStatCountsStatistic) Significance() float64 {
	return significance(s.TS(), s.Excess())
}

// ErrorEstimate returns the propagated counting error on the excess.
func (s WStatCountsStatistic) ErrorEstimate() float64 {
	return math.Sqrt(s.NOn + s.Alpha*s.Alpha*s.NOff)
}

func (s WStatCountsStatistic) statFun(muSig float64) float64 {
	return WstatBin(s.NOn, s.NOff, s.Alpha, muSig)
}

// ComputeErrn returns the downward nSigma uncertainty on the excess,
// as a positive number.
func (s WStatCountsStatistic) ComputeErrn(nSigma float64) float64 {
	return statErrn(s.statFun, s.Excess(), s.ErrorEstimate(), nSigma)
}

// ComputeErrp returns the upward nSigma uncertainty on the excess.
func (s WStatCountsStatistic) ComputeErrp(nSigma float64) float64 {
	return statErrp(s.statFun, s.Excess(), s.ErrorEstimate(), nSigma)
}

// ComputeUpperLimit returns the nSigma upper limit on the excess.
func (s WStatCountsStatistic) ComputeUpperLimit(nSigma float64) float64 {
	return statUpperLimit(s.statFun, s.Excess(), s.ErrorEstimate(), nSigma)
}

func significance(ts, excess float64) float64 {
	if ts < 0 {
		ts = 0
	}
	sig := math.Sqrt(ts)
	if excess < 0 {
		return -sig
	}
	return sig
}

// statAt evaluates a statistic, treating NaN (signal hypotheses the
// profiled background cannot accommodate) as infinitely disfavored.
func statAt(f func(float64) float64, mu float64) float64 {
	v := f(mu)
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

// statErrn finds how far below the best-fit excess the statistic rises
// nSigma^2 above its minimum.  scale sets the initial bracket.
func statErrn(f func(float64) float64, excess, scale, nSigma float64) float64 {
	target := statAt(f, excess) + nSigma*nSigma
	step := nSigma * (scale + 1)
	lo := excess - step
	for i := 0; i < 60 && statAt(f, lo) < target; i++ {
		step *= 2
		lo = excess - step
	}
	if statAt(f, lo) < target {
		// statistic flat on this side, no crossing
		return math.NaN()
	}
	return excess - bisectStat(f, target, lo, excess)
}

// statErrp is the upward counterpart of statErrn.
func statErrp(f func(float64) float64, excess, scale, nSigma float64) float64 {
	target := statAt(f, excess) + nSigma*nSigma
	step := nSigma * (scale + 1)
	hi := excess + step
	for i := 0; i < 60 && statAt(f, hi) < target; i++ {
		step *= 2
		hi = excess + step
	}
	if statAt(f, hi) < target {
		return math.NaN()
	}
	return bisectStat(f, target, hi, excess) - excess
}

// statUpperLimit finds the signal value above max(excess, 0) where the
// statistic rises nSigma^2 above its value there.
func statUpperLimit(f func(float64) float64, excess, scale, nSigma float64) float64 {
	start := math.Max(excess, 0)
	target := statAt(f, start) + nSigma*nSigma
	step := nSigma * (scale + 1)
	hi := start + step
	for i := 0; i < 60 && statAt(f, hi) < target; i++ {
		step *= 2
		hi = start + step
	}
	if statAt(f, hi) < target {
		return math.NaN()
	}
	return bisectStat(f, target, hi, start)
}

// bisectStat finds the crossing f(mu) == target between out, where the
// statistic is above target, and in, where it is at or below.
func bisectStat(f func(float64) float64, target, out, in float64) float64 {
	for i := 0; i < 100; i++ {
		mid := .5 * (out + in)
		if statAt(f, mid) > target {
			out = mid
		} else {
			in = mid
		}
	}
	return .5 * (out + in)
}
