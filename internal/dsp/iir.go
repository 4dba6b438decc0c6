package dsp

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"sort"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

var ErrCorner = errors.New("dsp: invalid corner frequency")

// Cascade is a series of second-order sections, a0 normalised to 1.
type Cascade []biquad.Coefficients

// Filter runs x through every section in place, starting from rest.
func (c Cascade) Filter(x []float64) {
	biquad.NewChain(c).ProcessBlock(x)
}

// FilterZeroPhase filters forward, then backward, cancelling the phase
// shift. The effective magnitude response is the square of one pass.
func (c Cascade) FilterZeroPhase(x []float64) {
	ch := biquad.NewChain(c)
	ch.ProcessBlock(x)
	reverse(x)
	ch.Reset()
	ch.ProcessBlock(x)
	reverse(x)
}

// Response evaluates the cascade's transfer function at f Hz.
func (c Cascade) Response(f, sampleRate float64) complex128 {
	return biquad.NewChain(c).Response(f, sampleRate)
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

// zpk is a transfer function in zeros/poles/gain form.
type zpk struct {
	z, p []complex128
	k    float64
}

// butterPrototype returns the analog lowpass prototype with cutoff 1 rad/s.
func butterPrototype(order int) zpk {
	p := make([]complex128, order)
	for i := range p {
		m := float64(-order + 1 + 2*i)
		p[i] = -cmplx.Exp(complex(0, math.Pi*m/float64(2*order)))
	}
	return zpk{p: p, k: 1}
}

// warp pre-warps f (Hz) for the bilinear transform at sampleRate.
func warp(f, sampleRate float64) float64 {
	return 2 * sampleRate * math.Tan(math.Pi*f/sampleRate)
}

func (a zpk) toBandpass(w0, bw float64) zpk {
	degree := len(a.p) - len(a.z)
	out := zpk{k: a.k * math.Pow(bw, float64(degree))}
	w02 := complex(w0*w0, 0)
	split := func(r complex128) (complex128, complex128) {
		h := r * complex(bw/2, 0)
		d := cmplx.Sqrt(h*h - w02)
		return h + d, h - d
	}
	for _, z := range a.z {
		z1, z2 := split(z)
		out.z = append(out.z, z1, z2)
	}
	for _, p := range a.p {
		p1, p2 := split(p)
		out.p = append(out.p, p1, p2)
	}
	for i := 0; i < degree; i++ {
		out.z = append(out.z, 0)
	}
	return out
}

// bilinear maps an analog zpk to the z-plane; zeros at infinity land on -1.
func (a zpk) bilinear(sampleRate float64) zpk {
	fs2 := complex(2*sampleRate, 0)
	out := zpk{}
	num, den := complex(1, 0), complex(1, 0)
	for _, z := range a.z {
		out.z = append(out.z, (fs2+z)/(fs2-z))
		num *= fs2 - z
	}
	for _, p := range a.p {
		out.p = append(out.p, (fs2+p)/(fs2-p))
		den *= fs2 - p
	}
	for len(out.z) < len(out.p) {
		out.z = append(out.z, -1)
	}
	out.k = a.k * real(num/den)
	return out
}

// sections groups a digital zpk with real zeros into biquads. Complex poles
// are paired with their conjugates; leftover real poles are paired together
// and an odd one becomes a first-order section.
func (a zpk) sections() Cascade {
	const eps = 1e-10
	var complexPoles []complex128
	var realPoles []float64
	for _, p := range a.p {
		switch {
		case imag(p) > eps*math.Max(1, cmplx.Abs(p)):
			complexPoles = append(complexPoles, p)
		case imag(p) < -eps*math.Max(1, cmplx.Abs(p)):
			// conjugate of an upper-half pole
		default:
			realPoles = append(realPoles, real(p))
		}
	}
	sort.Float64s(realPoles)

	zeros := make([]float64, len(a.z))
	for i, z := range a.z {
		zeros[i] = real(z)
	}
	sort.Float64s(zeros)
	nextZeros := func(n int) (float64, float64) {
		var z1, z2 float64
		if len(zeros) > 0 {
			z1, zeros = zeros[0], zeros[1:]
		}
		if n == 2 && len(zeros) > 0 {
			z2, zeros = zeros[0], zeros[1:]
		}
		return z1, z2
	}

	var c Cascade
	for _, p := range complexPoles {
		z1, z2 := nextZeros(2)
		c = append(c, biquad.Coefficients{
			B0: 1, B1: -(z1 + z2), B2: z1 * z2,
			A1: -2 * real(p), A2: real(p)*real(p) + imag(p)*imag(p),
		})
	}
	for len(realPoles) >= 2 {
		r1, r2 := realPoles[0], realPoles[1]
		realPoles = realPoles[2:]
		z1, z2 := nextZeros(2)
		c = append(c, biquad.Coefficients{
			B0: 1, B1: -(z1 + z2), B2: z1 * z2,
			A1: -(r1 + r2), A2: r1 * r2,
		})
	}
	if len(realPoles) == 1 {
		z1, _ := nextZeros(1)
		c = append(c, biquad.Coefficients{B0: 1, B1: -z1, A1: -realPoles[0]})
	}
	if len(c) > 0 {
		c[0].B0 *= a.k
		c[0].B1 *= a.k
		c[0].B2 *= a.k
	}
	return c
}

// ButterworthBandpass designs a digital Butterworth bandpass between fmin and
// fmax (Hz) with the given number of corners (prototype order).
func ButterworthBandpass(corners int, fmin, fmax, sampleRate float64) (Cascade, error) {
	nyq := sampleRate / 2
	if corners <= 0 {
		return nil, fmt.Errorf("%w: corners %d", ErrCorner, corners)
	}
	if fmin <= 0 || fmin >= fmax || fmax >= nyq {
		return nil, fmt.Errorf("%w: band %g-%g Hz at %g Hz sampling", ErrCorner, fmin, fmax, sampleRate)
	}
	w1, w2 := warp(fmin, sampleRate), warp(fmax, sampleRate)
	return butterPrototype(corners).toBandpass(math.Sqrt(w1*w2), w2-w1).bilinear(sampleRate).sections(), nil
}

// ButterworthHighpass designs a digital Butterworth highpass at f Hz.
func ButterworthHighpass(corners int, f, sampleRate float64) (Cascade, error) {
	if corners <= 0 || f <= 0 || f >= sampleRate/2 {
		return nil, fmt.Errorf("%w: highpass %g Hz at %g Hz sampling", ErrCorner, f, sampleRate)
	}
	return design.ButterworthHP(f, corners, sampleRate), nil
}

// ButterworthLowpass designs a digital Butterworth lowpass at f Hz.
func ButterworthLowpass(corners int, f, sampleRate float64) (Cascade, error) {
	if corners <= 0 || f <= 0 || f >= sampleRate/2 {
		return nil, fmt.Errorf("%w: lowpass %g Hz at %g Hz sampling", ErrCorner, f, sampleRate)
	}
	return design.ButterworthLP(f, corners, sampleRate), nil
}

// Bandpass filters x in place. When fmax reaches the Nyquist frequency the
// filter degrades to a highpass at fmin.
func Bandpass(x []float64, sampleRate, fmin, fmax float64, corners int, zeroPhase bool) error {
	var (
		c   Cascade
		err error
	)
	if fmax/(sampleRate/2)-1 > -1e-6 {
		log.Printf("Warning: upper corner %g Hz is at or above Nyquist (%g Hz), applying highpass instead", fmax, sampleRate/2)
		c, err = ButterworthHighpass(corners, fmin, sampleRate)
	} else {
		c, err = ButterworthBandpass(corners, fmin, fmax, sampleRate)
	}
	if err != nil {
		return err
	}
	if zeroPhase {
		c.FilterZeroPhase(x)
	} else {
		c.Filter(x)
	}
	return nil
}
