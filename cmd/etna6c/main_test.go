package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lox/etna6c/internal/config"
	"github.com/lox/etna6c/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*CLI, string) {
	t.Helper()
	var cli CLI
	parser, err := newParser(&cli)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, kctx.Command()
}

func TestDefaultsMatchConfig(t *testing.T) {
	cli, cmd := parse(t, "events")
	assert.Equal(t, "events", cmd)

	cfg, err := cli.Config()
	require.NoError(t, err)
	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFlags(t *testing.T) {
	cli, cmd := parse(t, "--fmin=1", "--fmax=10", "--dpi=100", "--pre-filt=0.01,0.02,40,45",
		"--log-frequency", "-o", "out", "run", "2", "3", "--skip-existing", "--preview=0")
	assert.Equal(t, "run <events>", cmd)
	assert.Equal(t, []int{2, 3}, cli.Run.Events)
	assert.True(t, cli.Run.SkipExisting)
	assert.Equal(t, 0, cli.Run.Preview)

	cfg, err := cli.Config()
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Processing.FMin)
	assert.Equal(t, 10.0, cfg.Processing.FMax)
	assert.Equal(t, 100, cfg.Figure.DPI)
	assert.Equal(t, "out", cfg.Figure.OutputDir)
	assert.True(t, cfg.Figure.LogFrequency)
	assert.Equal(t, 45.0, cfg.Processing.PreFilter[3])
}

func TestEnvironment(t *testing.T) {
	t.Setenv("ETNA6C_FMAX", "15")
	t.Setenv("ETNA6C_DATA_DIR", "/data/etna")

	cli, _ := parse(t, "events")
	cfg, err := cli.Config()
	require.NoError(t, err)
	assert.Equal(t, 15.0, cfg.Processing.FMax)
	assert.Equal(t, "/data/etna", cfg.Data.Dir)
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"pre-filter corners", []string{"--pre-filt=1,2,3"}},
		{"colour range", []string{"--rotational-range=1"}},
		{"band", []string{"--fmin=30"}},
		{"window", []string{"--window=100"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, _ := parse(t, append(tt.args, "events")...)
			_, err := cli.Config()
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestSelectEvents(t *testing.T) {
	cli, _ := parse(t, "events")
	evs, err := cli.SelectEvents([]int{2})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, events.Defaults()[1], evs[0])

	catalog := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(`events:
  - kind: tremor
    start: 2019-09-09T12:18:00Z
    duration: 60
`), 0644))
	cli, _ = parse(t, "--catalog", catalog, "events")
	evs, err = cli.SelectEvents(nil)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, events.Tremor, evs[0].Kind)
	assert.Equal(t, time.Minute, evs[0].Duration)
}
