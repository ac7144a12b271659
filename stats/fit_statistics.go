// Public domain.

// Package stats implements the Poisson fit statistics used by counts
// datasets: Cash for counts with a known background model and WStat
// for on/off counts with a profiled background, plus per-observation
// counts statistics (excess, significance).
package stats

import "math"

// Predicted counts below this are clipped before taking logs.
const truncation = 1e-25

// CashBin returns the Cash statistic for one bin: 2 (mu - n ln mu).
func CashBin(n, mu float64) float64 {
	if mu < truncation {
		mu = truncation
	}
	return 2 * (mu - n*math.Log(mu))
}

// Cash returns the per-bin Cash statistic array for observed counts n
// and predicted counts mu.  The two slices must have the same length.
func Cash(n, mu []float64) []float64 {
	stat := make([]float64, len(n))
	for i := range n {
		stat[i] = CashBin(n[i], mu[i])
	}
	return stat
}

// WstatMuBkg returns the profiled background estimate for one on/off
// bin given predicted signal counts muSig.
func WstatMuBkg(nOn, nOff, alpha, muSig float64) float64 {
	c := alpha*(nOn+nOff) - (1+alpha)*muSig
	d := math.Sqrt(c*c + 4*alpha*(1+alpha)*nOff*muSig)
	return (c + d) / (2 * alpha * (1 + alpha))
}

// WstatBin returns the WStat statistic for one on/off bin.  The extra
// terms make a perfect fit evaluate to approximately zero, so sums
// behave like a chi-square.
func WstatBin(nOn, nOff, alpha, muSig float64) float64 {
	muBkg := WstatMuBkg(nOn, nOff, alpha, muSig)

	stat := muSig + (1+alpha)*muBkg
	if nOn > 0 {
		stat -= nOn * math.Log(math.Max(muSig+alpha*muBkg, truncation))
	}
	if nOff > 0 {
		stat -= nOff * math.Log(math.Max(muBkg, truncation))
	}
	stat *= 2

	// extra terms: subtract the saturated log likelihood
	if nOn > 0 {
		stat -= 2 * nOn * (1 - math.Log(nOn))
	}
	if nOff > 0 {
		stat -= 2 * nOff * (1 - math.Log(nOff))
	}
	return stat
}

// Wstat returns the per-bin WStat array.  All slices must have the
// same length.
func Wstat(nOn, nOff, alpha, muSig []float64) []float64 {
	stat := make([]float64, len(nOn))
	for i := range nOn {
		stat[i] = WstatBin(nOn[i], nOff[i], alpha[i], muSig[i])
	}
	return stat
}
