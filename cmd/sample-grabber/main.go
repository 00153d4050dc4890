package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	samplegrabber "github.com/pmiettinen/piksi-sample-grabber"
	"github.com/pmiettinen/piksi-sample-grabber/internal/config"
	"github.com/pmiettinen/piksi-sample-grabber/internal/emitter"
	"github.com/pmiettinen/piksi-sample-grabber/internal/ftdi"
	"github.com/pmiettinen/piksi-sample-grabber/internal/health"
	"github.com/pmiettinen/piksi-sample-grabber/internal/manifest"
	"github.com/pmiettinen/piksi-sample-grabber/internal/progress"
	"github.com/pmiettinen/piksi-sample-grabber/internal/replay"
	"github.com/pmiettinen/piksi-sample-grabber/internal/retry"
	"github.com/pmiettinen/piksi-sample-grabber/internal/sink"
)

// Version information
const version = "v0.1.0"

const usageText = `Usage: sample-grabber [flags] [filename]

  If a filename is given, decoded samples are written to it, one signed
  8-bit sample per byte. Without a filename the capture runs for statistics
  only. Progress is printed each second. End capture with ^C.

  The FT232H on the Piksi must be in FIFO mode (set_fifo_mode) before
  capturing, and set back to UART mode (set_uart_mode) afterwards.

Flags:
`

// options holds the parsed command line.
type options struct {
	configPath string
	debug      bool
	logJSON    bool
	version    bool
	output     string
	set        map[string]bool

	source       string
	input        string
	format       string
	sampleRate   int
	warmup       uint64
	slice        int
	capacity     int
	openAttempts int
	mqttBroker   string
	httpAddr     string
	manifest     bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return 1
	}
	if opts.version {
		fmt.Fprintf(stderr, "sample-grabber %s\n", version)
		return 0
	}

	setupLogging(stderr, opts.debug, opts.logJSON)

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	config.ApplySessionID(cfg, uuid.New().String())

	slog.Info("starting sample grabber",
		"version", version,
		"session_id", cfg.SessionID,
		"source", cfg.Source.Kind,
		"output", cfg.Output.Path,
		"format", cfg.Output.Format,
		"debug", opts.debug,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := capture(ctx, cfg, stderr); err != nil {
		slog.Error("capture failed", "error", err)
		return 1
	}
	return 0
}

// parseArgs parses flags and the optional output filename. Any parse error,
// -h, or more than one positional argument prints usage and fails.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("sample-grabber", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "Path to YAML configuration file (optional)")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&opts.logJSON, "log-json", false, "Log as JSON instead of text")
	fs.BoolVar(&opts.version, "version", false, "Show version and exit")
	fs.StringVar(&opts.source, "source", "ftdi", "Sample source: ftdi, file")
	fs.StringVar(&opts.input, "input", "", "Raw device dump to replay with -source file (- for stdin)")
	fs.StringVar(&opts.format, "format", "raw", "Output format: raw, wav")
	fs.IntVar(&opts.sampleRate, "sample-rate", sink.DefaultSampleRate, "Sample rate written to WAV headers (Hz)")
	fs.Uint64Var(&opts.warmup, "warmup", samplegrabber.DefaultConfig().WarmupBytes, "Raw bytes discarded before capture starts")
	fs.IntVar(&opts.slice, "slice", samplegrabber.DefaultConfig().SliceBytes, "Bytes written to disk per write")
	fs.IntVar(&opts.capacity, "capacity", 0, "Handoff channel capacity in bytes (0 = unbounded)")
	fs.IntVar(&opts.openAttempts, "open-attempts", 1, "Attempts to open the FTDI device")
	fs.StringVar(&opts.mqttBroker, "mqtt", "", "MQTT broker host:port for progress reports (optional)")
	fs.StringVar(&opts.httpAddr, "http", "", "Address for /health and /stats endpoints (optional)")
	fs.BoolVar(&opts.manifest, "manifest", false, "Write <filename>.yaml describing the capture")

	// -h is a usage error like any other (flag.ErrHelp)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		opts.output = fs.Arg(0)
	default:
		fmt.Fprintf(stderr, "Error: too many arguments: %v\n\n", fs.Args())
		fs.Usage()
		return nil, fmt.Errorf("too many arguments")
	}

	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	return opts, nil
}

// loadConfig builds the configuration: file (or defaults), then flags that
// were explicitly set, then the positional filename.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.set["source"] {
		cfg.Source.Kind = opts.source
	}
	if opts.set["input"] {
		cfg.Source.Path = opts.input
		if !opts.set["source"] {
			cfg.Source.Kind = "file"
		}
	}
	if opts.set["format"] {
		cfg.Output.Format = opts.format
	}
	if opts.set["sample-rate"] {
		cfg.Output.SampleRateHz = opts.sampleRate
	}
	if opts.set["warmup"] {
		cfg.Pipeline.WarmupBytes = opts.warmup
	}
	if opts.set["slice"] {
		cfg.Pipeline.SliceBytes = opts.slice
	}
	if opts.set["capacity"] {
		cfg.Pipeline.ChannelCapacityBytes = opts.capacity
	}
	if opts.set["open-attempts"] {
		cfg.Source.OpenAttempts = opts.openAttempts
	}
	if opts.set["mqtt"] {
		cfg.MQTT.Broker = opts.mqttBroker
	}
	if opts.set["http"] {
		cfg.HTTP.Addr = opts.httpAddr
	}
	if opts.set["manifest"] {
		cfg.Output.Manifest = opts.manifest
	}
	if opts.output != "" {
		cfg.Output.Path = opts.output
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(w io.Writer, debug, asJSON bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if asJSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

// capture runs one session end to end.
func capture(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("closing source failed", "error", err)
		}
	}()

	format, err := sink.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	out, err := sink.Open(cfg.Output.Path, sink.Options{
		Format:     format,
		BufferSize: cfg.Output.BufferBytes,
		SampleRate: cfg.Output.SampleRateHz,
	})
	if err != nil {
		return err
	}
	if cfg.Output.Path == "" {
		slog.Warn("no output file given, samples will be decoded and discarded")
	}

	var reporterOpts []progress.Option
	if cfg.MQTT.Broker != "" {
		mqttEmitter := emitter.NewMQTTEmitter(emitter.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
			ClientID: "sample-grabber-" + cfg.SessionID,
		})
		if err := mqttEmitter.Connect(); err != nil {
			slog.Warn("mqtt unavailable, progress will not be published", "error", err)
		} else {
			defer mqttEmitter.Disconnect()
			reporterOpts = append(reporterOpts, progress.WithPublisher(mqttEmitter))
		}
	}
	reporter := progress.New(stderr, reporterOpts...)

	g, err := samplegrabber.New(samplegrabber.Config{
		WarmupBytes:     cfg.Pipeline.WarmupBytes,
		SliceBytes:      cfg.Pipeline.SliceBytes,
		ChannelCapacity: cfg.Pipeline.ChannelCapacityBytes,
		SessionID:       cfg.SessionID,
	}, src, out, samplegrabber.WithProgress(reporter.Emit))
	if err != nil {
		out.Close()
		reporter.Close()
		return err
	}

	if cfg.HTTP.Addr != "" {
		srv := health.NewServer(cfg.HTTP.Addr, healthProbe{g})
		if err := srv.Start(); err != nil {
			slog.Warn("health server unavailable", "addr", cfg.HTTP.Addr, "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
		}
	}

	// Signal path only requests shutdown, cleanup happens after Run
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	stopSignals := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig)
			g.Stop()
		case <-stopSignals:
		}
	}()

	started := time.Now()
	runErr := g.Run(ctx)

	// Restore default signal disposition
	signal.Stop(sigChan)
	close(stopSignals)
	reporter.Close()

	st := g.Stats()
	printFinalStats(stderr, st, reporter)
	fmt.Fprintln(stderr, "Capture ended.")

	if cfg.Output.Manifest {
		writeManifest(cfg, st, started, runErr)
	}
	return runErr
}

func openSource(ctx context.Context, cfg *config.Config) (samplegrabber.Source, error) {
	switch cfg.Source.Kind {
	case "file":
		return replay.Open(cfg.Source.Path, cfg.Source.BlockBytes, cfg.Source.ReportInterval)
	default:
		return ftdi.Open(ctx, ftdi.Config{
			VendorID:       cfg.Source.VendorID,
			ProductID:      cfg.Source.ProductID,
			Interface:      cfg.Source.Interface,
			LatencyMS:      cfg.Source.LatencyMS,
			ReportInterval: cfg.Source.ReportInterval,
			Open: retry.Config{
				Attempts: cfg.Source.OpenAttempts,
				Delay:    cfg.Source.OpenRetryDelay,
				MaxDelay: 30 * time.Second,
			},
		})
	}
}

func writeManifest(cfg *config.Config, st samplegrabber.Stats, started time.Time, runErr error) {
	m := &manifest.Manifest{
		SessionID:         cfg.SessionID,
		Output:            cfg.Output.Path,
		Format:            cfg.Output.Format,
		SampleRateHz:      cfg.Output.SampleRateHz,
		SampleType:        "int8",
		Source:            cfg.Source.Kind,
		StartedAt:         started,
		EndedAt:           started.Add(st.Elapsed),
		Duration:          st.Elapsed,
		WarmupBytes:       cfg.Pipeline.WarmupBytes,
		BytesObserved:     st.BytesObserved,
		RawBytesPersisted: st.RawBytesPersisted,
		SamplesWritten:    st.BytesWritten,
		Overflows:         st.Overflows,
		EndReason:         st.Reason,
		Warmup:            st.Warmup,
	}
	if runErr != nil {
		m.Error = runErr.Error()
	}

	path := manifest.PathFor(cfg.Output.Path)
	if err := manifest.Write(path, m); err != nil {
		slog.Error("writing manifest failed", "path", path, "error", err)
		return
	}
	slog.Info("manifest written", "path", path)
}

// healthProbe adapts a Grabber to the health endpoints.
type healthProbe struct {
	g *samplegrabber.Grabber
}

func (p healthProbe) State() string {
	switch p.g.State() {
	case samplegrabber.StateWarmingUp, samplegrabber.StateIdle:
		return health.StatusWarmingUp
	case samplegrabber.StateCapturing:
		return health.StatusCapturing
	default:
		return health.StatusStopping
	}
}

func (p healthProbe) Snapshot() any {
	return p.g.Stats()
}
