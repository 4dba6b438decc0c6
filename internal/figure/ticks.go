package figure

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/plot"
)

// intervalTicks places a major tick every step seconds, where axis value 0
// is origin. Absolute ticks fall on multiples of step in wall-clock time,
// otherwise on multiples of step from origin. Labels may be suppressed while
// keeping the tick marks.
type intervalTicks struct {
	origin   time.Time
	step     float64
	absolute bool
	format   func(v float64, at time.Time) string
	hide     bool
}

func (t intervalTicks) Ticks(min, max float64) []plot.Tick {
	if t.step <= 0 || max < min {
		return nil
	}
	var base float64
	if t.absolute {
		base = float64(t.origin.UnixNano()) / 1e9
	}
	first := math.Ceil((base+min)/t.step-1e-9)*t.step - base
	if first == 0 {
		first = 0 // ceil of a tiny negative is -0
	}
	var ticks []plot.Tick
	for v := first; v <= max+1e-9; v += t.step {
		tick := plot.Tick{Value: v}
		if !t.hide {
			tick.Label = t.format(v, t.origin.Add(time.Duration(math.Round(v*1e9))))
		}
		ticks = append(ticks, tick)
	}
	return ticks
}

// clockTicks labels ticks with the UTC wall-clock time.
func clockTicks(origin time.Time, step time.Duration, hide bool) intervalTicks {
	return intervalTicks{
		origin:   origin,
		step:     step.Seconds(),
		absolute: true,
		hide:     hide,
		format:   func(_ float64, at time.Time) string { return at.UTC().Round(time.Millisecond).Format("15:04:05") },
	}
}

// offsetTicks labels ticks with seconds from origin.
func offsetTicks(origin time.Time, step time.Duration, hide bool) intervalTicks {
	return intervalTicks{
		origin: origin,
		step:   step.Seconds(),
		hide:   hide,
		format: func(v float64, _ time.Time) string { return fmt.Sprintf("%g", math.Round(v*1000)/1000) },
	}
}
