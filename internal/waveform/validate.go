package waveform

import (
	"strings"
	"time"

	"github.com/lox/etna6c/internal/models"
)

const (
	FlagChannelCount    = "channel_count"
	FlagWrongGroup      = "wrong_group"
	FlagMixedSampleRate = "mixed_sample_rate"
	FlagGap             = "gap"
	FlagEmptyTrace      = "empty_trace"
	FlagIncomplete      = "incomplete_window"
)

// ComponentsPerGroup is the number of channels each sensor contributes.
const ComponentsPerGroup = 3

// Fatal reports whether a flag makes the stream unusable for a figure.
// Incomplete coverage only shortens the plotted trace.
func Fatal(flag string) bool {
	return flag != FlagIncomplete
}

// ValidateStream checks that st holds one gap-free trace for each of the
// three components of group g, at a common sampling rate, covering
// [start, end].
func ValidateStream(st models.Stream, g models.Group, start, end time.Time) []string {
	var flags []string
	add := func(f string) {
		for _, have := range flags {
			if have == f {
				return
			}
		}
		flags = append(flags, f)
	}

	ids := make(map[string]int)
	var rate float64
	for _, tr := range st {
		ids[tr.ID()]++
		if tr.Group() != g {
			add(FlagWrongGroup)
		}
		if len(tr.Data) == 0 {
			add(FlagEmptyTrace)
			continue
		}
		if rate == 0 {
			rate = tr.SampleRate
		} else if tr.SampleRate != rate {
			add(FlagMixedSampleRate)
		}
		tol := time.Duration(tr.Delta() * float64(time.Second))
		if tr.StartTime.After(start.Add(tol)) || tr.EndTime().Before(end.Add(-tol)) {
			add(FlagIncomplete)
		}
	}
	for _, n := range ids {
		if n > 1 {
			add(FlagGap)
		}
	}
	if len(ids) != ComponentsPerGroup {
		add(FlagChannelCount)
	}
	return flags
}

// FatalFlags filters flags down to those that abort processing.
func FatalFlags(flags []string) []string {
	var out []string
	for _, f := range flags {
		if Fatal(f) {
			out = append(out, f)
		}
	}
	return out
}

func formatFlags(flags []string) string {
	return strings.Join(flags, ", ")
}
