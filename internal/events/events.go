// Package events lists the event windows that get a figure.
package events

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Kind string

const (
	VolcanoTectonic Kind = "VT"
	LongPeriod      Kind = "LP"
	Tremor          Kind = "tremor"
	NoTremor        Kind = "no tremor"
)

func (k Kind) Valid() bool {
	switch k {
	case VolcanoTectonic, LongPeriod, Tremor, NoTremor:
		return true
	}
	return false
}

// Event is one time window of interest.
type Event struct {
	Kind     Kind
	Start    time.Time
	Duration time.Duration
	Note     string
}

func (e Event) End() time.Time {
	return e.Start.Add(e.Duration)
}

func (e Event) String() string {
	s := fmt.Sprintf("%s %s +%gs", e.Kind, e.Start.UTC().Format("2006-01-02 15:04:05"), e.Duration.Seconds())
	if e.Note != "" {
		s += " (" + e.Note + ")"
	}
	return s
}

// FigureName returns the PNG file name for the event filtered between fmin
// and fmax Hz. Date fields are not zero padded.
func (e Event) FigureName(fmin, fmax float64) string {
	t := e.Start.UTC()
	return fmt.Sprintf("seismogram_%d_%d_%d_h%d-%d-%d_f%s-%s.png",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(),
		FormatFrequency(fmin), FormatFrequency(fmax))
}

// FormatFrequency prints f in its shortest decimal form.
func FormatFrequency(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func at(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}

// Defaults returns the six windows recorded at ZR.RS1 in 2019.
func Defaults() []Event {
	return []Event{
		{Kind: VolcanoTectonic, Start: at(2019, time.September, 4, 15, 52, 0), Duration: 120 * time.Second},
		{Kind: VolcanoTectonic, Start: at(2019, time.September, 17, 18, 40, 30), Duration: 120 * time.Second,
			Note: "ML 3.1 at 18:40:52.4, 37.735N 14.873E, 4.1 km depth, 0.2 km SE of Monte Minardo (CT)"},
		{Kind: LongPeriod, Start: at(2019, time.August, 27, 14, 21, 0), Duration: 90 * time.Second},
		{Kind: LongPeriod, Start: at(2019, time.August, 27, 12, 18, 0), Duration: 90 * time.Second},
		{Kind: NoTremor, Start: at(2019, time.September, 8, 12, 18, 0), Duration: 120 * time.Second},
		{Kind: Tremor, Start: at(2019, time.September, 9, 12, 18, 0), Duration: 120 * time.Second},
	}
}

type catalogFile struct {
	Events []struct {
		Kind     string    `yaml:"kind"`
		Start    time.Time `yaml:"start"`
		Duration float64   `yaml:"duration"` // seconds
		Note     string    `yaml:"note"`
	} `yaml:"events"`
}

var ErrEmptyCatalog = errors.New("catalog has no events")

// Load decodes a YAML catalog:
//
//	events:
//	  - kind: VT
//	    start: 2019-09-04T15:52:00Z
//	    duration: 120
//	    note: optional text
func Load(r io.Reader) ([]Event, error) {
	var f catalogFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyCatalog
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(f.Events) == 0 {
		return nil, ErrEmptyCatalog
	}

	out := make([]Event, 0, len(f.Events))
	for i, fe := range f.Events {
		ev := Event{
			Kind:     Kind(fe.Kind),
			Start:    fe.Start.UTC(),
			Duration: time.Duration(fe.Duration * float64(time.Second)),
			Note:     fe.Note,
		}
		if !ev.Kind.Valid() {
			return nil, fmt.Errorf("event %d: unknown kind %q", i+1, fe.Kind)
		}
		if fe.Start.IsZero() {
			return nil, fmt.Errorf("event %d: missing start", i+1)
		}
		if ev.Duration <= 0 {
			return nil, fmt.Errorf("event %d: duration must be positive, got %g", i+1, fe.Duration)
		}
		out = append(out, ev)
	}
	return out, nil
}

func LoadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Select returns the events at the given 1-based positions, in the order
// requested. No indices selects everything.
func Select(all []Event, indices []int) ([]Event, error) {
	if len(indices) == 0 {
		return all, nil
	}
	out := make([]Event, 0, len(indices))
	for _, i := range indices {
		if i < 1 || i > len(all) {
			return nil, fmt.Errorf("event index %d out of range 1-%d", i, len(all))
		}
		out = append(out, all[i-1])
	}
	return out, nil
}
