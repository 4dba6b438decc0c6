package dsp

import (
	"fmt"
	"log"

	"github.com/cwbudde/algo-dsp/dsp/window"
	vecmath "github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
)

// SpectrogramTukeyAlpha is the taper ratio of the segment window.
const SpectrogramTukeyAlpha = 0.25

// Spectrogram is a one-sided power spectral density estimate over
// overlapping segments. Power is indexed [frequency][time].
type Spectrogram struct {
	Freqs []float64
	Times []float64 // segment centres, seconds from the first sample
	Power [][]float64

	fmin, fmax float64
}

// ComputeSpectrogram estimates the PSD of x (density scaling, units²/Hz)
// with nperseg-sample Tukey windows overlapping by noverlap samples. Each
// segment has its mean removed before windowing.
func ComputeSpectrogram(x []float64, sampleRate float64, nperseg, noverlap int) (*Spectrogram, error) {
	if len(x) == 0 {
		return nil, ErrEmptyInput
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("dsp: invalid sample rate %g", sampleRate)
	}
	if nperseg <= 0 || noverlap < 0 || noverlap >= nperseg {
		return nil, fmt.Errorf("dsp: invalid segment %d with overlap %d", nperseg, noverlap)
	}
	if len(x) < nperseg {
		log.Printf("Warning: %d samples is shorter than the %d-sample window, using %d", len(x), nperseg, len(x))
		noverlap = noverlap * len(x) / nperseg
		nperseg = len(x)
	}

	nfft := nextPowerOf2(nperseg)
	fft, err := newRealFFT(nfft)
	if err != nil {
		return nil, err
	}
	win, err := window.Tukey(nperseg, SpectrogramTukeyAlpha, window.WithPeriodic())
	if err != nil {
		return nil, err
	}
	scale := 1 / (sampleRate * floats.Dot(win, win))

	step := nperseg - noverlap
	nseg := (len(x) - noverlap) / step
	half := nfft/2 + 1

	sg := &Spectrogram{
		Freqs: make([]float64, half),
		Times: make([]float64, nseg),
		Power: make([][]float64, half),
		fmin:  0,
		fmax:  sampleRate / 2,
	}
	for i := range sg.Freqs {
		sg.Freqs[i] = float64(i) * sampleRate / float64(nfft)
		sg.Power[i] = make([]float64, nseg)
	}

	seg := make([]float64, nperseg)
	re := make([]float64, half)
	im := make([]float64, half)
	pw := make([]float64, half)
	for k := 0; k < nseg; k++ {
		start := k * step
		copy(seg, x[start:start+nperseg])
		Demean(seg)
		vecmath.MulBlockInPlace(seg, win)

		spec, err := fft.forward(seg)
		if err != nil {
			return nil, err
		}
		for i := 0; i < half; i++ {
			re[i], im[i] = real(spec[i]), imag(spec[i])
		}
		vecmath.Power(pw, re, im)
		for i := 0; i < half; i++ {
			v := pw[i] * scale
			// One-sided: fold negative frequencies except DC and Nyquist.
			if i > 0 && !(nfft%2 == 0 && i == nfft/2) {
				v *= 2
			}
			sg.Power[i][k] = v
		}
		sg.Times[k] = (float64(nperseg)/2 + float64(start)) / sampleRate
	}
	return sg, nil
}

// Clip keeps the frequency rows within [fmin, fmax] and records those bounds
// as the spectrogram's display range.
func (s *Spectrogram) Clip(fmin, fmax float64) *Spectrogram {
	out := &Spectrogram{Times: s.Times, fmin: fmin, fmax: fmax}
	for i, f := range s.Freqs {
		if f < fmin || f > fmax {
			continue
		}
		out.Freqs = append(out.Freqs, f)
		out.Power = append(out.Power, s.Power[i])
	}
	return out
}

// Bounds returns the displayed frequency range.
func (s *Spectrogram) Bounds() (fmin, fmax float64) {
	return s.fmin, s.fmax
}

// Shift adds dt seconds to every segment time.
func (s *Spectrogram) Shift(dt float64) {
	times := make([]float64, len(s.Times))
	for i, t := range s.Times {
		times[i] = t + dt
	}
	s.Times = times
}
