package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

// DefaultWaterLevel is the water level in dB below the response maximum used
// when inverting an instrument response.
const DefaultWaterLevel = 60.0

// ResponseFunc evaluates an instrument response (counts per physical unit)
// at the given frequencies.
type ResponseFunc func(freqs []float64) ([]complex128, error)

// PreFilter holds the four corner frequencies (Hz) of the frequency-domain
// cosine taper applied during deconvolution: zero below F1 and above F4,
// unity between F2 and F3.
type PreFilter [4]float64

func (p PreFilter) Validate() error {
	for i := 1; i < 4; i++ {
		if p[i] <= p[i-1] {
			return fmt.Errorf("pre-filter corners must increase: %v", [4]float64(p))
		}
	}
	if p[0] < 0 {
		return fmt.Errorf("pre-filter corners must be non-negative: %v", [4]float64(p))
	}
	return nil
}

// At returns the taper weight at frequency f.
func (p PreFilter) At(f float64) float64 {
	switch {
	case f < p[0] || f > p[3]:
		return 0
	case f < p[1]:
		return 0.5 * (1 - math.Cos(math.Pi*(f-p[0])/(p[1]-p[0])))
	case f <= p[2]:
		return 1
	default:
		return 0.5 * (1 + math.Cos(math.Pi*(f-p[2])/(p[3]-p[2])))
	}
}

// RemoveResponseOptions controls RemoveResponse.
type RemoveResponseOptions struct {
	PreFilter *PreFilter
	// WaterLevel in dB; zero or negative disables the water level.
	WaterLevel float64
	// TaperFraction is the total fraction of the trace tapered before the
	// transform (half at each end).
	TaperFraction float64
}

// DefaultRemoveResponseOptions mirrors common seismological practice: 5 %
// time-domain taper and a 60 dB water level.
func DefaultRemoveResponseOptions() RemoveResponseOptions {
	return RemoveResponseOptions{WaterLevel: DefaultWaterLevel, TaperFraction: 0.05}
}

var ErrEmptyInput = errors.New("dsp: empty input")

// RemoveResponse deconvolves an instrument response from x sampled at
// sampleRate Hz. The data are zero-padded to the next power of two of twice
// their length; the spectrum is multiplied by the inverse response (clipped
// by the water level) and by the pre-filter taper.
func RemoveResponse(x []float64, sampleRate float64, resp ResponseFunc, opts RemoveResponseOptions) ([]float64, error) {
	n := len(x)
	if n == 0 {
		return nil, ErrEmptyInput
	}
	if opts.PreFilter != nil {
		if err := opts.PreFilter.Validate(); err != nil {
			return nil, err
		}
	}

	data := append([]float64(nil), x...)
	if opts.TaperFraction > 0 {
		CosineTaper(data, opts.TaperFraction/2)
	}

	nfft := nextPowerOf2(2 * n)
	fft, err := newRealFFT(nfft)
	if err != nil {
		return nil, err
	}
	spec, err := fft.forward(data)
	if err != nil {
		return nil, err
	}

	// One-sided frequency axis, 0..Nyquist inclusive.
	half := nfft/2 + 1
	freqs := make([]float64, half)
	df := sampleRate / float64(nfft)
	for i := range freqs {
		freqs[i] = float64(i) * df
	}
	h, err := resp(freqs)
	if err != nil {
		return nil, fmt.Errorf("evaluate response: %w", err)
	}
	if len(h) != half {
		return nil, fmt.Errorf("response returned %d values for %d frequencies", len(h), half)
	}
	inv := invertSpectrum(h, opts.WaterLevel)

	for i := 0; i < half; i++ {
		g := inv[i]
		if opts.PreFilter != nil {
			g *= complex(opts.PreFilter.At(freqs[i]), 0)
		}
		spec[i] *= g
		if i > 0 && i < nfft-i {
			spec[nfft-i] *= cmplx.Conj(g)
		}
	}
	// The Nyquist bin of a real signal must be real.
	spec[nfft/2] = complex(real(spec[nfft/2]), 0)

	return fft.inverseReal(spec, n)
}

// invertSpectrum returns 1/h, raising magnitudes below the water level
// (dB below the maximum magnitude) to that level while keeping the phase.
func invertSpectrum(h []complex128, waterLevel float64) []complex128 {
	out := make([]complex128, len(h))
	var floor float64
	if waterLevel > 0 {
		var peak float64
		for _, v := range h {
			if a := cmplx.Abs(v); a > peak && !math.IsInf(a, 0) {
				peak = a
			}
		}
		floor = peak * math.Pow(10, -waterLevel/20)
	}
	for i, v := range h {
		a := cmplx.Abs(v)
		switch {
		case a == 0 && floor == 0:
			out[i] = 0
		case a < floor:
			if a == 0 {
				out[i] = complex(1/floor, 0)
			} else {
				out[i] = 1 / (v * complex(floor/a, 0))
			}
		default:
			out[i] = 1 / v
		}
	}
	return out
}
