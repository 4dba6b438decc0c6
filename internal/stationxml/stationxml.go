// Package stationxml reads FDSN StationXML inventories and evaluates channel
// frequency responses.
package stationxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

var ErrNoEpoch = errors.New("stationxml: no channel epoch")

type Inventory struct {
	XMLName  xml.Name  `xml:"FDSNStationXML"`
	Source   string    `xml:"Source"`
	Networks []Network `xml:"Network"`
}

type Network struct {
	Code     string    `xml:"code,attr"`
	Stations []Station `xml:"Station"`
}

type Station struct {
	Code      string    `xml:"code,attr"`
	StartDate string    `xml:"startDate,attr"`
	EndDate   string    `xml:"endDate,attr"`
	Latitude  float64   `xml:"Latitude"`
	Longitude float64   `xml:"Longitude"`
	Elevation float64   `xml:"Elevation"`
	Channels  []Channel `xml:"Channel"`
}

type Channel struct {
	Code         string   `xml:"code,attr"`
	LocationCode string   `xml:"locationCode,attr"`
	StartDate    string   `xml:"startDate,attr"`
	EndDate      string   `xml:"endDate,attr"`
	SampleRate   float64  `xml:"SampleRate"`
	Response     Response `xml:"Response"`
}

type Response struct {
	InstrumentSensitivity *Sensitivity `xml:"InstrumentSensitivity"`
	Stages                []Stage      `xml:"Stage"`
}

type Sensitivity struct {
	Value       float64 `xml:"Value"`
	Frequency   float64 `xml:"Frequency"`
	InputUnits  Units   `xml:"InputUnits"`
	OutputUnits Units   `xml:"OutputUnits"`
}

type Units struct {
	Name        string `xml:"Name"`
	Description string `xml:"Description"`
}

type Stage struct {
	Number       int           `xml:"number,attr"`
	PolesZeros   *PolesZeros   `xml:"PolesZeros"`
	Coefficients *Coefficients `xml:"Coefficients"`
	FIR          *FIR          `xml:"FIR"`
	Decimation   *Decimation   `xml:"Decimation"`
	StageGain    *Gain         `xml:"StageGain"`
}

type PolesZeros struct {
	InputUnits             Units   `xml:"InputUnits"`
	OutputUnits            Units   `xml:"OutputUnits"`
	TransferFunctionType   string  `xml:"PzTransferFunctionType"`
	NormalizationFactor    float64 `xml:"NormalizationFactor"`
	NormalizationFrequency float64 `xml:"NormalizationFrequency"`
	Zeros                  []Root  `xml:"Zero"`
	Poles                  []Root  `xml:"Pole"`
}

type Root struct {
	Number    int     `xml:"number,attr"`
	Real      float64 `xml:"Real"`
	Imaginary float64 `xml:"Imaginary"`
}

func (r Root) Complex() complex128 { return complex(r.Real, r.Imaginary) }

type Coefficients struct {
	InputUnits           Units  `xml:"InputUnits"`
	OutputUnits          Units  `xml:"OutputUnits"`
	TransferFunctionType string `xml:"CfTransferFunctionType"`
}

type FIR struct {
	InputUnits  Units  `xml:"InputUnits"`
	OutputUnits Units  `xml:"OutputUnits"`
	Symmetry    string `xml:"Symmetry"`
}

type Decimation struct {
	InputSampleRate float64 `xml:"InputSampleRate"`
	Factor          int     `xml:"Factor"`
	Offset          int     `xml:"Offset"`
	Delay           float64 `xml:"Delay"`
	Correction      float64 `xml:"Correction"`
}

type Gain struct {
	Value     float64 `xml:"Value"`
	Frequency float64 `xml:"Frequency"`
}

// Parse decodes a StationXML document.
func Parse(r io.Reader) (*Inventory, error) {
	var inv Inventory
	if err := xml.NewDecoder(r).Decode(&inv); err != nil {
		return nil, fmt.Errorf("unmarshal stationxml: %w", err)
	}
	return &inv, nil
}

// ReadFile parses the StationXML file at path.
func ReadFile(path string) (*Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	defer f.Close()

	inv, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inv, nil
}

// Response returns the response of the channel epoch active at t.
func (inv *Inventory) Response(network, station, location, channel string, t time.Time) (*Response, error) {
	for _, n := range inv.Networks {
		if n.Code != network {
			continue
		}
		for _, s := range n.Stations {
			if s.Code != station {
				continue
			}
			for i := range s.Channels {
				c := &s.Channels[i]
				if c.Code != channel || strings.TrimSpace(c.LocationCode) != location {
					continue
				}
				ok, err := covers(c.StartDate, c.EndDate, t)
				if err != nil {
					return nil, fmt.Errorf("%s.%s.%s.%s: %w", network, station, location, channel, err)
				}
				if ok {
					return &c.Response, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: %s.%s.%s.%s at %s", ErrNoEpoch, network, station, location, channel, t.UTC().Format(time.RFC3339))
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q", s)
}

func covers(start, end string, t time.Time) (bool, error) {
	if start != "" {
		s, err := parseDate(start)
		if err != nil {
			return false, err
		}
		if t.Before(s) {
			return false, nil
		}
	}
	if end != "" {
		e, err := parseDate(end)
		if err != nil {
			return false, err
		}
		if !t.Before(e) {
			return false, nil
		}
	}
	return true, nil
}
