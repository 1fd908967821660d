package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/opd-ai/fskmodem"
	"github.com/opd-ai/fskmodem/alsa"
	"github.com/opd-ai/fskmodem/config"
	"github.com/opd-ai/fskmodem/factory"
	"github.com/opd-ai/fskmodem/interfaces"
	"github.com/opd-ai/fskmodem/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// CLI configuration
type CLIConfig struct {
	configPath   string
	backend      string
	baudRate     int
	mtu          int
	inputDevice  string
	outputDevice string
	inputDesc    string
	outputDesc   string
	checksum     bool
	logLevel     string
	logFormat    string
	metricsAddr  string
	listDevices  string
	help         bool

	flags *pflag.FlagSet
}

// parseCLIFlags parses args and returns the CLI configuration.
func parseCLIFlags(args []string) (*CLIConfig, error) {
	cli := &CLIConfig{}
	defaults := config.Default()

	fs := pflag.NewFlagSet("fskchat", pflag.ContinueOnError)
	fs.StringVarP(&cli.configPath, "config", "c", "", "YAML or TOML config file")

	// Link configuration
	fs.StringVar(&cli.backend, "backend", defaults.Device.Backend, "Device backend (minimodem, serial, simulation; default from FSKMODEM_BACKEND or minimodem)")
	fs.IntVarP(&cli.baudRate, "baud", "b", defaults.Modem.BaudRate, "Modem baud rate")
	fs.IntVar(&cli.mtu, "mtu", defaults.Modem.MTU, "Maximum frame payload in bytes")
	fs.BoolVar(&cli.checksum, "checksum", defaults.Modem.Checksum, "Add and verify a CRC16 trailer on every frame")

	// Device selection
	fs.StringVar(&cli.inputDevice, "input-device", "", "Receive device (ALSA card,device or serial port)")
	fs.StringVar(&cli.outputDevice, "output-device", "", "Transmit device (default: input device)")
	fs.StringVar(&cli.inputDesc, "input-desc", "", "Resolve the receive device by ALSA description")
	fs.StringVar(&cli.outputDesc, "output-desc", "", "Resolve the transmit device by ALSA description")

	// Logging and metrics
	fs.StringVar(&cli.logLevel, "log-level", defaults.Logging.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&cli.logFormat, "log-format", defaults.Logging.Format, "Log format (text, json)")
	fs.StringVar(&cli.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	fs.StringVar(&cli.listDevices, "list-devices", "", "List ALSA devices for rx or tx and exit")
	fs.BoolVarP(&cli.help, "help", "h", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cli.flags = fs
	return cli, nil
}

// printUsage prints the usage information.
func printUsage(w io.Writer, cli *CLIConfig) {
	fmt.Fprintln(w, "fskchat - line chat over an FSK audio modem")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s [options]\n", os.Args[0])
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprint(w, cli.flags.FlagUsages())
}

// loadConfig reads the config file, if any, and applies explicitly set flags
// over it.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	cfg := config.Default()
	if cli.configPath != "" {
		loaded, err := config.Load(cli.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cli.flags.Changed
	if changed("backend") {
		cfg.Device.Backend = cli.backend
	}
	if changed("baud") {
		cfg.Modem.BaudRate = cli.baudRate
	}
	if changed("mtu") {
		cfg.Modem.MTU = cli.mtu
	}
	if changed("checksum") {
		cfg.Modem.Checksum = cli.checksum
	}
	if changed("input-device") {
		cfg.Device.InputDevice = cli.inputDevice
	}
	if changed("output-device") {
		cfg.Device.OutputDevice = cli.outputDevice
	}
	if changed("input-desc") {
		cfg.Device.InputDescription = cli.inputDesc
	}
	if changed("output-desc") {
		cfg.Device.OutputDescription = cli.outputDesc
	}
	if changed("log-level") {
		cfg.Logging.Level = cli.logLevel
	}
	if changed("log-format") {
		cfg.Logging.Format = cli.logFormat
	}
	if changed("metrics-addr") {
		cfg.Metrics.Address = cli.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveDevices fills empty device identifiers from their descriptions.
// Descriptions name ALSA devices, so only the minimodem backend resolves them.
func resolveDevices(cfg *config.Config, backend string, resolver *alsa.Resolver) error {
	if backend != factory.BackendMinimodem {
		if cfg.Device.InputDescription != "" || cfg.Device.OutputDescription != "" {
			logrus.WithFields(logrus.Fields{
				"function": "resolveDevices",
				"backend":  backend,
			}).Warn("Ignoring device descriptions for non-ALSA backend")
		}
		return nil
	}

	lookups := []struct {
		desc string
		dir  interfaces.Direction
		dst  *string
	}{
		{cfg.Device.InputDescription, interfaces.DirectionRX, &cfg.Device.InputDevice},
		{cfg.Device.OutputDescription, interfaces.DirectionTX, &cfg.Device.OutputDevice},
	}

	for _, l := range lookups {
		if l.desc == "" || *l.dst != "" {
			continue
		}
		dev, ok, err := resolver.Resolve(l.desc, l.dir)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no %s device matches %q", l.dir, l.desc)
		}
		*l.dst = dev
	}
	return nil
}

// listDevices prints the ALSA devices for the named direction.
func listDevices(ctx context.Context, w io.Writer, direction string, resolver *alsa.Resolver) error {
	dir, err := interfaces.ParseDirection(direction)
	if err != nil {
		return err
	}
	devices, err := resolver.List(ctx, dir)
	if err != nil {
		return err
	}
	for _, dev := range devices {
		fmt.Fprintf(w, "%-6s %s\n", dev.ID, dev.Line)
	}
	return nil
}

// newLauncher overlays cfg on the factory's environment-derived defaults,
// resolves device descriptions and creates the launcher.
func newLauncher(cfg *config.Config, f *factory.LauncherFactory, resolver *alsa.Resolver) (interfaces.Launcher, error) {
	if err := f.UpdateConfig(cfg.FactoryConfig(f.GetCurrentConfig())); err != nil {
		return nil, err
	}
	if f.IsUsingSimulation() {
		logrus.WithFields(logrus.Fields{
			"function": "newLauncher",
		}).Warn("Using simulated devices, nothing reaches the sound card")
	}

	if err := resolveDevices(cfg, f.GetCurrentConfig().Backend, resolver); err != nil {
		return nil, err
	}
	return f.CreateLauncher("")
}

// startMetricsServer serves reg on addr until ctx is done.
func startMetricsServer(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logrus.WithFields(logrus.Fields{
			"function": "startMetricsServer",
			"address":  addr,
		}).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "startMetricsServer",
				"error":    err.Error(),
			}).Error("Metrics server failed")
		}
	}()
}

// lockedWriter serializes callback output with the rest of the program.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) println(payload []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s\n", payload)
}

// run sends each line of in until in is exhausted or ctx is done, printing
// received frames to out.
func run(ctx context.Context, opts *fskmodem.Options, in io.Reader, out io.Writer) error {
	modem, err := fskmodem.New(opts)
	if err != nil {
		return err
	}

	w := &lockedWriter{w: out}
	modem.OnReceive(w.println)

	if err := modem.Start(); err != nil {
		return err
	}
	defer func() {
		if err := modem.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "run",
				"error":    err.Error(),
			}).Warn("Modem teardown did not finish")
		}
	}()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			if line == "" {
				continue
			}
			if err := modem.Send([]byte(line)); err != nil {
				return err
			}
		}
	}
}

// setupSignalHandling cancels ctx on SIGINT or SIGTERM.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logrus.WithFields(logrus.Fields{
			"function": "setupSignalHandling",
			"signal":   sig.String(),
		}).Info("Received signal, shutting down")
		cancel()
	}()
}

func main() {
	cli, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Use --help for usage information.\n")
		os.Exit(2)
	}
	if cli.help {
		printUsage(os.Stdout, cli)
		os.Exit(0)
	}
	if cli.listDevices != "" {
		if err := listDevices(context.Background(), os.Stdout, cli.listDevices, alsa.NewResolver()); err != nil {
			fmt.Fprintf(os.Stderr, "Device error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Logging.Apply(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	launcher, err := newLauncher(cfg, factory.NewLauncherFactory(), alsa.NewResolver())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Device error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	opts := cfg.Options()
	opts.Launcher = launcher
	if cfg.Metrics.Address != "" {
		reg := prometheus.NewRegistry()
		opts.Metrics = metrics.NewPrometheus(reg)
		startMetricsServer(ctx, cfg.Metrics.Address, reg)
	}

	if err := run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fskchat: %v\n", err)
		os.Exit(1)
	}
}
