package stationxml

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

// Output selects the ground-motion quantity a response is expressed in.
type Output int

const (
	Displacement Output = iota
	Velocity
	Acceleration
)

// ParseOutput accepts the DISP/VEL/ACC names used by seismology toolkits.
func ParseOutput(s string) (Output, error) {
	switch strings.ToUpper(s) {
	case "DISP":
		return Displacement, nil
	case "VEL":
		return Velocity, nil
	case "ACC":
		return Acceleration, nil
	}
	return 0, fmt.Errorf("unknown output %q", s)
}

func (o Output) String() string {
	switch o {
	case Displacement:
		return "DISP"
	case Velocity:
		return "VEL"
	case Acceleration:
		return "ACC"
	}
	return fmt.Sprintf("output(%d)", int(o))
}

// unitOutput maps SEED unit names to the derivative order of displacement.
func unitOutput(name string) (Output, bool) {
	switch strings.ToUpper(strings.ReplaceAll(name, " ", "")) {
	case "M", "NM", "CM", "MM":
		return Displacement, true
	case "M/S", "NM/S", "CM/S", "MM/S", "M/SEC":
		return Velocity, true
	case "M/S**2", "M/S2", "M/S/S", "M/SEC**2", "NM/S**2", "CM/S**2", "MM/S**2", "GAL":
		return Acceleration, true
	}
	return 0, false
}

// InputOutput returns the ground-motion quantity the sensor responds to.
func (r *Response) InputOutput() (Output, error) {
	for _, st := range r.Stages {
		var units string
		switch {
		case st.PolesZeros != nil:
			units = st.PolesZeros.InputUnits.Name
		case st.Coefficients != nil:
			units = st.Coefficients.InputUnits.Name
		case st.FIR != nil:
			units = st.FIR.InputUnits.Name
		}
		if units != "" {
			if o, ok := unitOutput(units); ok {
				return o, nil
			}
			return 0, fmt.Errorf("unsupported input units %q", units)
		}
	}
	if r.InstrumentSensitivity != nil {
		if o, ok := unitOutput(r.InstrumentSensitivity.InputUnits.Name); ok {
			return o, nil
		}
		return 0, fmt.Errorf("unsupported input units %q", r.InstrumentSensitivity.InputUnits.Name)
	}
	return 0, fmt.Errorf("response declares no input units")
}

// Eval returns the complex response at each frequency (Hz), in counts per
// unit of output. The product of every stage gain scales the poles/zeros
// stages; digital FIR stages contribute their gain only. Without stage gains
// the instrument sensitivity is used.
func (r *Response) Eval(freqs []float64, output Output) ([]complex128, error) {
	in, err := r.InputOutput()
	if err != nil {
		return nil, err
	}

	gain := 1.0
	var haveGain bool
	for _, st := range r.Stages {
		if st.StageGain != nil && st.StageGain.Value != 0 {
			gain *= st.StageGain.Value
			haveGain = true
		}
	}
	if !haveGain {
		if r.InstrumentSensitivity == nil {
			return nil, fmt.Errorf("response has neither stage gains nor sensitivity")
		}
		gain = r.InstrumentSensitivity.Value
	}

	out := make([]complex128, len(freqs))
	for i, f := range freqs {
		h := complex(gain, 0)
		for _, st := range r.Stages {
			if st.PolesZeros == nil {
				continue
			}
			v, err := st.PolesZeros.eval(f, st.Decimation)
			if err != nil {
				return nil, fmt.Errorf("stage %d: %w", st.Number, err)
			}
			h *= v
		}
		out[i] = convert(h, f, in, output)
	}
	return out, nil
}

// convert re-expresses h, defined for ground motion of kind in, for kind
// out: R_out = R_in * (iω)^(in-out).
func convert(h complex128, f float64, in, out Output) complex128 {
	order := int(in) - int(out)
	if order == 0 {
		return h
	}
	if f == 0 {
		return 0
	}
	iw := complex(0, 2*math.Pi*f)
	return h * cmplx.Pow(iw, complex(float64(order), 0))
}

func (pz *PolesZeros) eval(f float64, dec *Decimation) (complex128, error) {
	var s complex128
	switch strings.ToUpper(strings.TrimSpace(pz.TransferFunctionType)) {
	case "LAPLACE (RADIANS/SECOND)":
		s = complex(0, 2*math.Pi*f)
	case "LAPLACE (HERTZ)":
		s = complex(0, f)
	case "DIGITAL (Z-TRANSFORM)":
		if dec == nil || dec.InputSampleRate <= 0 {
			return 0, fmt.Errorf("digital poles/zeros stage without decimation sample rate")
		}
		s = cmplx.Exp(complex(0, 2*math.Pi*f/dec.InputSampleRate))
	default:
		return 0, fmt.Errorf("unsupported transfer function type %q", pz.TransferFunctionType)
	}

	a0 := pz.NormalizationFactor
	if a0 == 0 {
		a0 = 1
	}
	h := complex(a0, 0)
	for _, z := range pz.Zeros {
		h *= s - z.Complex()
	}
	for _, p := range pz.Poles {
		h /= s - p.Complex()
	}
	return h, nil
}
