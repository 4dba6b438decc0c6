package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/etna6c/internal/config"
	"github.com/lox/etna6c/internal/dsp"
	"github.com/lox/etna6c/internal/events"
	"github.com/lox/etna6c/internal/fetch"
	"github.com/lox/etna6c/internal/metrics"
	"github.com/lox/etna6c/internal/pipeline"
	"github.com/lox/etna6c/internal/preview"
)

type Globals struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name='env-file',help='Load environment variables from a .env file.'"`

	DataDir           string        `help:"Directory holding miniSEED and StationXML files." default:"${data_dir}"`
	TranslationalGlob string        `help:"File pattern of the translational channels." default:"${trans_glob}"`
	RotationalGlob    string        `help:"File pattern of the rotational channels." default:"${rot_glob}"`
	Inventory         string        `help:"StationXML file, relative to the data directory." default:"${inventory}"`
	Pad               time.Duration `help:"Extra translational data read either side of the window." default:"${pad}"`
	Catalog           string        `help:"YAML event catalog replacing the built-in events." type:"existingfile" optional:""`

	FMin          float64   `name:"fmin" help:"Bandpass lower corner (Hz)." default:"${fmin}"`
	FMax          float64   `name:"fmax" help:"Bandpass upper corner (Hz)." default:"${fmax}"`
	Corners       int       `help:"Butterworth corners." default:"${corners}"`
	Taper         float64   `help:"Cosine taper fraction per side." default:"${taper}"`
	PreFilt       []float64 `name:"pre-filt" help:"Response pre-filter corners (Hz)." default:"${pre_filt}"`
	WaterLevel    float64   `help:"Water level for response deconvolution (dB)." default:"${water_level}"`
	RotationScale float64   `help:"Factor from raw rotational samples to rad/s." default:"${rotation_scale}"`

	Output             string        `short:"o" help:"Figure output directory." default:"${output}"`
	Width              float64       `help:"Figure width (inches)." default:"${width}"`
	Height             float64       `help:"Figure height (inches)." default:"${height}"`
	DPI                int           `name:"dpi" help:"Figure resolution." default:"${dpi}"`
	FontSize           float64       `help:"Font size (points)." default:"${font_size}"`
	TickInterval       time.Duration `help:"Seismogram tick spacing." default:"${tick_interval}"`
	Window             int           `help:"Spectrogram window length (samples)." default:"${window}"`
	Overlap            int           `help:"Spectrogram window overlap (samples)." default:"${overlap}"`
	LogFrequency       bool          `help:"Logarithmic spectrogram frequency axis."`
	TranslationalRange []float64     `help:"Translational colour bounds ((m/s)^2/Hz)." default:"${trans_range}"`
	RotationalRange    []float64     `help:"Rotational colour bounds (rad^2/Hz)." default:"${rot_range}"`

	Metrics string `help:"Write Prometheus metrics in textfile format to this path." type:"path" optional:""`
}

type CLI struct {
	Globals

	Run    RunCmd    `cmd:"" default:"withargs" help:"Write the six-component figure of each event."`
	Trace  TraceCmd  `cmd:"" help:"Write the seismogram and spectrogram of one channel."`
	Events EventsCmd `cmd:"" help:"List the event windows."`
	Fetch  FetchCmd  `cmd:"" help:"Mirror waveform and station files from an FTP archive."`
}

type RunCmd struct {
	Events       []int `arg:"" optional:"" help:"1-based event numbers (default all)."`
	SkipExisting bool  `help:"Skip events whose figure already exists."`
	Preview      int   `help:"Preview width in pixels, 0 to disable." default:"${preview_width}"`
	Export       bool  `help:"Also write the processed traces as miniSEED."`
}

func (c *RunCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.Config()
	if err != nil {
		return err
	}
	evs, err := g.SelectEvents(c.Events)
	if err != nil {
		return err
	}
	r, err := pipeline.Open(cfg, pipeline.Options{
		SkipExisting: c.SkipExisting,
		PreviewWidth: c.Preview,
		Export:       c.Export,
	})
	if err != nil {
		return err
	}
	sum, err := r.Run(ctx, evs)
	if err != nil {
		return err
	}
	log.Printf("Done: %d figures written, %d skipped", sum.Written, sum.Skipped)
	return nil
}

type TraceCmd struct {
	Event   int    `arg:"" help:"1-based event number."`
	Channel string `arg:"" help:"Channel code, e.g. HHZ or HJ1."`
	Export  bool   `help:"Also write the processed trace as miniSEED."`
}

func (c *TraceCmd) Run(g *Globals) error {
	cfg, err := g.Config()
	if err != nil {
		return err
	}
	evs, err := g.SelectEvents([]int{c.Event})
	if err != nil {
		return err
	}
	r, err := pipeline.Open(cfg, pipeline.Options{Export: c.Export})
	if err != nil {
		return err
	}
	_, err = r.Trace(evs[0], c.Channel)
	return err
}

type EventsCmd struct{}

func (c *EventsCmd) Run(g *Globals) error {
	cfg, err := g.Config()
	if err != nil {
		return err
	}
	evs, err := g.SelectEvents(nil)
	if err != nil {
		return err
	}
	store, err := preview.NewStore(cfg.Figure.OutputDir)
	if err != nil {
		return err
	}
	for i, ev := range evs {
		name := ev.FigureName(cfg.Processing.FMin, cfg.Processing.FMax)
		mark := " "
		if store.Exists(name) {
			mark = "*"
		}
		fmt.Printf("%d %s %s\n    %s\n", i+1, mark, ev, name)
	}
	names, err := store.List()
	if err != nil {
		return err
	}
	fmt.Printf("%d figures in %s\n", len(names), store.Dir())
	return nil
}

type FetchCmd struct {
	Addr      string        `help:"FTP server host:port." required:""`
	User      string        `help:"FTP user (anonymous if empty)." env:"ETNA6C_FTP_USER"`
	Password  string        `help:"FTP password." env:"ETNA6C_FTP_PASSWORD"`
	RemoteDir string        `help:"Remote directory to mirror." default:"/"`
	Timeout   time.Duration `help:"Connection timeout." default:"30s"`
	Retry     time.Duration `help:"Total retry budget per file." default:"2m"`
}

func (c *FetchCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.Config()
	if err != nil {
		return err
	}
	opts := fetch.Options{
		Addr:       c.Addr,
		User:       c.User,
		Password:   c.Password,
		RemoteDir:  c.RemoteDir,
		Timeout:    c.Timeout,
		MaxElapsed: c.Retry,
	}
	remote, err := fetch.Dial(ctx, opts)
	if err != nil {
		return err
	}
	defer remote.Quit()

	res, err := fetch.NewMirror(remote, opts, cfg.Data).Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("Fetched %d files (%d bytes), %d up to date", res.Downloaded, res.Bytes, res.Skipped)
	return nil
}

// Config assembles the run configuration from the flags.
func (g *Globals) Config() (config.Config, error) {
	var cfg config.Config
	if len(g.PreFilt) != 4 {
		return cfg, fmt.Errorf("%w: --pre-filt needs 4 corners, got %d", config.ErrInvalid, len(g.PreFilt))
	}
	trans, err := pair("translational-range", g.TranslationalRange)
	if err != nil {
		return cfg, err
	}
	rot, err := pair("rotational-range", g.RotationalRange)
	if err != nil {
		return cfg, err
	}

	cfg = config.Config{
		Data: config.Data{
			Dir:               g.DataDir,
			TranslationalGlob: g.TranslationalGlob,
			RotationalGlob:    g.RotationalGlob,
			Inventory:         g.Inventory,
			TranslationalPad:  g.Pad,
		},
		Processing: config.Processing{
			FMin:            g.FMin,
			FMax:            g.FMax,
			Corners:         g.Corners,
			TaperPercentage: g.Taper,
			PreFilter:       dsp.PreFilter(g.PreFilt),
			WaterLevel:      g.WaterLevel,
			RotationScale:   g.RotationScale,
		},
		Figure: config.Figure{
			OutputDir:          g.Output,
			WidthInches:        g.Width,
			HeightInches:       g.Height,
			DPI:                g.DPI,
			FontSize:           g.FontSize,
			TickInterval:       g.TickInterval,
			WindowLength:       g.Window,
			Overlap:            g.Overlap,
			LogFrequency:       g.LogFrequency,
			TranslationalRange: trans,
			RotationalRange:    rot,
		},
	}
	return cfg, cfg.Validate()
}

func pair(flag string, v []float64) ([2]float64, error) {
	if len(v) != 2 {
		return [2]float64{}, fmt.Errorf("%w: --%s needs 2 values, got %d", config.ErrInvalid, flag, len(v))
	}
	return [2]float64{v[0], v[1]}, nil
}

// SelectEvents returns the catalog, or the built-in windows, narrowed to indices.
func (g *Globals) SelectEvents(indices []int) ([]events.Event, error) {
	all := events.Defaults()
	if g.Catalog != "" {
		var err error
		if all, err = events.LoadFile(g.Catalog); err != nil {
			return nil, err
		}
	}
	return events.Select(all, indices)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func joinFloats(v []float64) string {
	s := make([]string, len(v))
	for i, f := range v {
		s[i] = formatFloat(f)
	}
	return strings.Join(s, ",")
}

// defaultVars exposes config.Default to the flag defaults.
func defaultVars() kong.Vars {
	d := config.Default()
	return kong.Vars{
		"data_dir":       d.Data.Dir,
		"trans_glob":     d.Data.TranslationalGlob,
		"rot_glob":       d.Data.RotationalGlob,
		"inventory":      d.Data.Inventory,
		"pad":            d.Data.TranslationalPad.String(),
		"fmin":           formatFloat(d.Processing.FMin),
		"fmax":           formatFloat(d.Processing.FMax),
		"corners":        strconv.Itoa(d.Processing.Corners),
		"taper":          formatFloat(d.Processing.TaperPercentage),
		"pre_filt":       joinFloats(d.Processing.PreFilter[:]),
		"water_level":    formatFloat(d.Processing.WaterLevel),
		"rotation_scale": formatFloat(d.Processing.RotationScale),
		"output":         d.Figure.OutputDir,
		"width":          formatFloat(d.Figure.WidthInches),
		"height":         formatFloat(d.Figure.HeightInches),
		"dpi":            strconv.Itoa(d.Figure.DPI),
		"font_size":      formatFloat(d.Figure.FontSize),
		"tick_interval":  d.Figure.TickInterval.String(),
		"window":         strconv.Itoa(d.Figure.WindowLength),
		"overlap":        strconv.Itoa(d.Figure.Overlap),
		"trans_range":    joinFloats(d.Figure.TranslationalRange[:]),
		"rot_range":      joinFloats(d.Figure.RotationalRange[:]),
		"preview_width":  strconv.Itoa(preview.DefaultWidth),
	}
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("etna6c"),
		kong.Description("Six-component seismogram and spectrogram figures for the 2019 Etna events."),
		kong.DefaultEnvars("ETNA6C"),
		kong.UsageOnError(),
		defaultVars(),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		log.Fatalf("cli: %v", err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	kctx.BindTo(ctx, (*context.Context)(nil))

	runErr := kctx.Run(&cli.Globals)
	if cli.Metrics != "" {
		if err := metrics.WriteTextfile(cli.Metrics); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	if runErr != nil {
		log.Fatalf("%s: %v", kctx.Command(), runErr)
	}
}
