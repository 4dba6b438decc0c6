package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lox/etna6c/internal/config"
	"github.com/lox/etna6c/internal/events"
	"github.com/lox/etna6c/internal/models"
	"github.com/lox/etna6c/internal/mseed"
	"github.com/lox/etna6c/internal/waveform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lp = events.Event{
	Kind:     events.LongPeriod,
	Start:    time.Date(2019, 8, 27, 14, 21, 0, 0, time.UTC),
	Duration: 90 * time.Second,
}

func channelXML(code string) string {
	return fmt.Sprintf(`      <Channel code="%s" locationCode="" startDate="2019-01-01T00:00:00">
        <SampleRate>100</SampleRate>
        <Response>
          <InstrumentSensitivity>
            <Value>1000</Value>
            <Frequency>1</Frequency>
            <InputUnits><Name>M/S</Name></InputUnits>
          </InstrumentSensitivity>
        </Response>
      </Channel>
`, code)
}

func writeInventory(t *testing.T, path string) {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<FDSNStationXML xmlns="http://www.fdsn.org/xml/station/1" schemaVersion="1.1">
  <Source>test</Source>
  <Network code="ZR">
    <Station code="RS1">
`)
	for _, cha := range []string{"HHE", "HHN", "HHZ"} {
		b.WriteString(channelXML(cha))
	}
	b.WriteString("    </Station>\n  </Network>\n</FDSNStationXML>\n")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func writeChannel(t *testing.T, dir, channel string, amp float64) {
	t.Helper()
	const rate = 100.0
	tr := &models.Trace{
		Network: "ZR", Station: "RS1", Channel: channel,
		StartTime: lp.Start.Add(-time.Minute), SampleRate: rate,
		Data: make([]float64, 240*int(rate)+1),
	}
	for i := range tr.Data {
		ts := float64(i) / rate
		tr.Data[i] = amp * (math.Sin(2*math.Pi*2*ts) + 0.3*math.Sin(2*math.Pi*7*ts))
	}
	require.NoError(t, mseed.WriteFile(filepath.Join(dir, tr.ID()+".D.2019.239"), models.Stream{tr}))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Data.Dir = filepath.Join(root, "2019_Etna")
	cfg.Figure.OutputDir = filepath.Join(root, "figure_output")
	cfg.Figure.DPI = 30
	require.NoError(t, os.MkdirAll(cfg.Data.Dir, 0755))

	for _, cha := range []string{"HHE", "HHN", "HHZ"} {
		writeChannel(t, cfg.Data.Dir, cha, 1000)
	}
	for _, cha := range []string{"HJ1", "HJ2", "HJ3"} {
		writeChannel(t, cfg.Data.Dir, cha, 50)
	}
	writeInventory(t, cfg.Data.InventoryPath())
	return cfg
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	r, err := Open(cfg, Options{PreviewWidth: 120, Export: true})
	require.NoError(t, err)

	sum, err := r.Run(context.Background(), []events.Event{lp})
	require.NoError(t, err)
	assert.Equal(t, Summary{Written: 1}, sum)

	name := "seismogram_2019_8_27_h14-21-0_f0.5-20.png"
	assert.FileExists(t, filepath.Join(cfg.Figure.OutputDir, name))
	assert.FileExists(t, filepath.Join(cfg.Figure.OutputDir, "preview_"+name))

	exported, err := mseed.ReadFile(filepath.Join(cfg.Figure.OutputDir, "seismogram_2019_8_27_h14-21-0_f0.5-20.mseed"))
	require.NoError(t, err)
	require.Len(t, exported, 6)
	for _, tr := range exported {
		assert.True(t, tr.StartTime.Equal(lp.Start), "%s starts %s", tr.ID(), tr.StartTime)
		assert.Len(t, tr.Data, 9001)
	}

	r, err = Open(cfg, Options{SkipExisting: true})
	require.NoError(t, err)
	sum, err = r.Run(context.Background(), []events.Event{lp})
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1}, sum)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	cfg := testConfig(t)
	r, err := Open(cfg, Options{})
	require.NoError(t, err)

	missing := lp
	missing.Start = lp.Start.Add(24 * time.Hour)
	sum, err := r.Run(context.Background(), []events.Event{missing, lp})
	assert.ErrorIs(t, err, waveform.ErrNoData)
	assert.Equal(t, Summary{}, sum)

	entries, err := os.ReadDir(cfg.Figure.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "later events are not attempted")
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	r, err := Open(cfg, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, []events.Event{lp})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrace(t *testing.T) {
	cfg := testConfig(t)
	r, err := Open(cfg, Options{Export: true})
	require.NoError(t, err)

	paths, err := r.Trace(lp, "hj2")
	require.NoError(t, err)
	require.Len(t, paths, 3)
	base := filepath.Join(cfg.Figure.OutputDir, "seismogram_2019_8_27_h14-21-0_f0.5-20_HJ2")
	assert.Equal(t, []string{base + "_seismogram.png", base + "_spectrogram.png", base + ".mseed"}, paths)
	for _, p := range paths {
		assert.FileExists(t, p)
	}

	_, err = r.Trace(lp, "BHZ")
	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestOpenErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.Inventory = "missing.xml"
	_, err := Open(cfg, Options{})
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Processing.FMax = 0
	_, err = Open(cfg, Options{})
	assert.ErrorIs(t, err, config.ErrInvalid)
}
