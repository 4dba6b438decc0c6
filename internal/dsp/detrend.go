package dsp

import (
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Demean subtracts the arithmetic mean in place.
func Demean(x []float64) {
	if len(x) == 0 {
		return
	}
	floats.AddConst(-stat.Mean(x, nil), x)
}

// DetrendLinear removes the least-squares straight line in place.
func DetrendLinear(x []float64) {
	n := len(x)
	if n < 2 {
		Demean(x)
		return
	}
	idx := make([]float64, n)
	floats.Span(idx, 0, float64(n-1))
	alpha, beta := stat.LinearRegression(idx, x, nil, false)
	for i := range x {
		x[i] -= alpha + beta*idx[i]
	}
}

// CosineTaper multiplies both ends of x by a half-cosine ramp covering
// int(maxPercentage*len(x)) samples each.
func CosineTaper(x []float64, maxPercentage float64) {
	w := cosineTaperWindow(len(x), maxPercentage)
	if w == nil {
		return
	}
	vecmath.MulBlockInPlace(x, w)
}

// cosineTaperWindow returns nil when the ramp length is zero.
func cosineTaperWindow(n int, maxPercentage float64) []float64 {
	half := int(maxPercentage * float64(n))
	if half > n/2 {
		half = n / 2
	}
	if half <= 0 {
		return nil
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	for i := 0; i < half; i++ {
		v := 0.5 * (1 - math.Cos(math.Pi*float64(i)/float64(half)))
		w[i] = v
		w[n-1-i] = v
	}
	return w
}

// Scale multiplies x by s in place.
func Scale(x []float64, s float64) {
	vecmath.ScaleBlockInPlace(x, s)
}

// MaxAbs returns the largest absolute sample value.
func MaxAbs(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return vecmath.MaxAbs(x)
}

// Integrate returns the cumulative trapezoidal integral of x sampled every dt
// seconds, starting at zero.
func Integrate(x []float64, dt float64) []float64 {
	out := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		out[i] = out[i-1] + 0.5*(x[i-1]+x[i])*dt
	}
	return out
}
