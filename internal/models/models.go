package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

type Group int

const (
	Translational Group = iota
	Rotational
)

func (g Group) String() string {
	switch g {
	case Translational:
		return "translational"
	case Rotational:
		return "rotational"
	}
	return fmt.Sprintf("group(%d)", int(g))
}

// Unit is the physical unit of a group's samples after processing.
func (g Group) Unit() string {
	if g == Rotational {
		return "rad"
	}
	return "m/s"
}

// Trace is a single-channel, uniformly sampled time series.
type Trace struct {
	Network    string
	Station    string
	Location   string
	Channel    string
	StartTime  time.Time
	SampleRate float64 // Hz
	Data       []float64
}

// ID returns the NET.STA.LOC.CHA identifier.
func (t *Trace) ID() string {
	return t.Network + "." + t.Station + "." + t.Location + "." + t.Channel
}

// Delta returns the sample interval in seconds.
func (t *Trace) Delta() float64 {
	if t.SampleRate <= 0 {
		return 0
	}
	return 1 / t.SampleRate
}

// SampleTime returns the time of sample i.
func (t *Trace) SampleTime(i int) time.Time {
	return t.StartTime.Add(Seconds(float64(i) * t.Delta()))
}

// EndTime returns the time of the last sample.
func (t *Trace) EndTime() time.Time {
	if len(t.Data) == 0 {
		return t.StartTime
	}
	return t.SampleTime(len(t.Data) - 1)
}

// Group classifies the trace by its instrument code: H?J is a rotation-rate
// sensor, everything else is treated as translational.
func (t *Trace) Group() Group {
	if len(t.Channel) >= 2 && t.Channel[1] == 'J' {
		return Rotational
	}
	return Translational
}

// Slice returns the part of the trace between start and end using the
// nearest samples, or nil when the window does not overlap the trace. Zero
// bounds are open.
func (t *Trace) Slice(start, end time.Time) *Trace {
	n := len(t.Data)
	if n == 0 {
		return nil
	}
	first, last := 0, n-1
	if !start.IsZero() {
		first = int(math.Round(start.Sub(t.StartTime).Seconds() * t.SampleRate))
		if first < 0 {
			first = 0
		}
	}
	if !end.IsZero() {
		last = int(math.Round(end.Sub(t.StartTime).Seconds() * t.SampleRate))
		if last > n-1 {
			last = n - 1
		}
	}
	if first > last || first >= n || last < 0 {
		return nil
	}
	out := *t
	out.StartTime = t.SampleTime(first)
	out.Data = append([]float64(nil), t.Data[first:last+1]...)
	return &out
}

// Copy returns a deep copy of the trace.
func (t *Trace) Copy() *Trace {
	c := *t
	c.Data = append([]float64(nil), t.Data...)
	return &c
}

func (t *Trace) String() string {
	return fmt.Sprintf("%s | %s - %s | %g Hz, %d samples",
		t.ID(),
		t.StartTime.UTC().Format("2006-01-02T15:04:05.000000Z"),
		t.EndTime().UTC().Format("2006-01-02T15:04:05.000000Z"),
		t.SampleRate, len(t.Data))
}

// Stream is an ordered collection of traces.
type Stream []*Trace

// Sort orders traces by identifier, then start time.
func (s Stream) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		if a, b := s[i].ID(), s[j].ID(); a != b {
			return a < b
		}
		return s[i].StartTime.Before(s[j].StartTime)
	})
}

// Select returns the traces belonging to group g, preserving order.
func (s Stream) Select(g Group) Stream {
	var out Stream
	for _, tr := range s {
		if tr.Group() == g {
			out = append(out, tr)
		}
	}
	return out
}

func (s Stream) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d Trace(s) in Stream:", len(s))
	for _, tr := range s {
		b.WriteString("\n")
		b.WriteString(tr.String())
	}
	return b.String()
}

// AmplitudeScale holds the per-group peak absolute amplitude used for
// seismogram y-limits.
type AmplitudeScale struct {
	Translational float64
	Rotational    float64
}

func (a AmplitudeScale) For(g Group) float64 {
	if g == Rotational {
		return a.Rotational
	}
	return a.Translational
}

// Seconds converts fractional seconds to a time.Duration, rounded to the
// nearest nanosecond.
func Seconds(s float64) time.Duration {
	if s < 0 {
		return -time.Duration(-s*float64(time.Second) + 0.5)
	}
	return time.Duration(s*float64(time.Second) + 0.5)
}
