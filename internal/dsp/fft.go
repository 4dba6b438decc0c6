// Package dsp holds the signal processing steps applied to seismic traces:
// detrending, tapering, Butterworth filtering, integration, instrument
// response removal and spectrogram estimation.
package dsp

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// nextPowerOf2 returns the smallest power of two >= n.
func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func isPowerOf2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// realFFT holds a plan and scratch buffers for repeated transforms of real
// input at one size.
type realFFT struct {
	size int
	plan *algofft.Plan[complex128]
	buf  []complex128
	out  []complex128
}

func newRealFFT(size int) (*realFFT, error) {
	if !isPowerOf2(size) {
		return nil, fmt.Errorf("dsp: fft size %d is not a power of two", size)
	}
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("dsp: create FFT plan: %w", err)
	}
	return &realFFT{
		size: size,
		plan: plan,
		buf:  make([]complex128, size),
		out:  make([]complex128, size),
	}, nil
}

// forward zero-pads x to the plan size and returns the full complex spectrum.
// The returned slice is reused by the next call.
func (f *realFFT) forward(x []float64) ([]complex128, error) {
	for i := range f.buf {
		f.buf[i] = 0
	}
	for i, v := range x {
		if i >= f.size {
			break
		}
		f.buf[i] = complex(v, 0)
	}
	if err := f.plan.Forward(f.out, f.buf); err != nil {
		return nil, fmt.Errorf("dsp: forward FFT: %w", err)
	}
	return f.out, nil
}

// inverseReal transforms spec back to the time domain and returns the real
// part of the first n samples.
func (f *realFFT) inverseReal(spec []complex128, n int) ([]float64, error) {
	if err := f.plan.Inverse(f.buf, spec); err != nil {
		return nil, fmt.Errorf("dsp: inverse FFT: %w", err)
	}
	if n > f.size {
		n = f.size
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = real(f.buf[i])
	}
	return out, nil
}
