package figure

import (
	"fmt"
	"time"

	"github.com/lox/etna6c/internal/models"
)

// channelNames maps channel codes to the component shown on the axis. The
// rotation sensor reports its axes as 1/2/3, which are east, north and up.
var channelNames = map[string]string{
	"HHE": "HHE", "HHN": "HHN", "HHZ": "HHZ",
	"HJ1": "HJE", "HJE": "HJE",
	"HJ2": "HJN", "HJN": "HJN",
	"HJ3": "HJZ", "HJZ": "HJZ",
}

// ChannelLabel is the seismogram y-axis label, e.g. "RS1: HHE (m/s)".
func ChannelLabel(tr *models.Trace) string {
	name, ok := channelNames[tr.Channel]
	if !ok {
		name = tr.Channel
	}
	return fmt.Sprintf("%s: %s (%s)", tr.Station, name, tr.Group().Unit())
}

// The date is taken two seconds after t so a window starting just before
// midnight is labelled with the day it mostly covers.
func clockAxisLabel(t time.Time) string {
	t = t.UTC()
	d := t.Add(2 * time.Second)
	return fmt.Sprintf("Time on %d/%d/%d (hh:mm:ss)", d.Day(), int(t.Month()), t.Year())
}

func offsetAxisLabel(t time.Time) string {
	t = t.UTC()
	d := t.Add(2 * time.Second)
	return fmt.Sprintf("Time from %d/%d/%d %d:%d:%d(s)", d.Day(), int(t.Month()), t.Year(), t.Hour(), t.Minute(), t.Second())
}

const (
	frequencyLabel = "Frequency (Hz)"
	transBarLabel  = "Spectral density ((m/s)^2/Hz)"
	rotBarLabel    = "Spectral density ((rad)^2/Hz)"
)

func colourBarLabel(g models.Group) string {
	if g == models.Rotational {
		return rotBarLabel
	}
	return transBarLabel
}
