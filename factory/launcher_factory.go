package factory

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opd-ai/fskmodem/interfaces"
	"github.com/opd-ai/fskmodem/real"
	"github.com/opd-ai/fskmodem/testing"
	"github.com/sirupsen/logrus"
)

// Backend names accepted by CreateLauncher.
const (
	BackendMinimodem  = "minimodem"
	BackendSerial     = "serial"
	BackendSimulation = "simulation"
)

// Validation constants for configuration bounds checking.
const (
	// MinSerialReadTimeout is the minimum serial read timeout in milliseconds.
	MinSerialReadTimeout = 10
	// MaxSerialReadTimeout is the maximum serial read timeout in milliseconds.
	MaxSerialReadTimeout = 10000
)

// ErrUnknownBackend indicates a backend name that is not recognised.
var ErrUnknownBackend = errors.New("unknown backend")

// Config selects and parameterises the device backend.
type Config struct {
	// Backend is one of the Backend* names
	Backend string

	// MinimodemPath is the minimodem program name or path
	MinimodemPath string

	// SerialReadTimeout is the serial read timeout in milliseconds
	SerialReadTimeout int
}

// LauncherFactory creates launchers based on configuration.
type LauncherFactory struct {
	mu            sync.RWMutex
	defaultConfig *Config
}

// NewLauncherFactory creates a factory with default configuration and
// environment overrides applied.
func NewLauncherFactory() *LauncherFactory {
	defaultConfig := createDefaultConfig()
	applyEnvironmentOverrides(defaultConfig)
	logConfigurationInfo(defaultConfig)

	return &LauncherFactory{
		defaultConfig: defaultConfig,
	}
}

// createDefaultConfig returns the production defaults: the minimodem
// backend found on PATH and a serial read timeout short enough for a
// responsive Stop.
func createDefaultConfig() *Config {
	return &Config{
		Backend:           BackendMinimodem,
		MinimodemPath:     real.DefaultExecutable,
		SerialReadTimeout: int(real.DefaultSerialReadTimeout / time.Millisecond),
	}
}

// applyEnvironmentOverrides updates config from FSKMODEM_* variables.
func applyEnvironmentOverrides(config *Config) {
	parseBackendSetting(config)
	parseMinimodemPathSetting(config)
	parseSerialTimeoutSetting(config)
}

// parseBackendSetting reads FSKMODEM_BACKEND. Unknown names are logged and ignored.
func parseBackendSetting(config *Config) {
	if backend := os.Getenv("FSKMODEM_BACKEND"); backend != "" {
		normalized, err := normalizeBackend(backend)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parseBackendSetting",
				"env_var":     "FSKMODEM_BACKEND",
				"value":       backend,
				"error":       err.Error(),
				"using_value": config.Backend,
			}).Warn("Failed to parse FSKMODEM_BACKEND environment variable, using default")
			return
		}
		config.Backend = normalized
	}
}

func parseMinimodemPathSetting(config *Config) {
	if path := strings.TrimSpace(os.Getenv("FSKMODEM_MINIMODEM_PATH")); path != "" {
		config.MinimodemPath = path
	}
}

// parseSerialTimeoutSetting reads FSKMODEM_SERIAL_READ_TIMEOUT and keeps the
// default unless the value is an integer within
// [MinSerialReadTimeout, MaxSerialReadTimeout].
func parseSerialTimeoutSetting(config *Config) {
	if timeoutStr := os.Getenv("FSKMODEM_SERIAL_READ_TIMEOUT"); timeoutStr != "" {
		timeout, err := strconv.Atoi(timeoutStr)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parseSerialTimeoutSetting",
				"env_var":     "FSKMODEM_SERIAL_READ_TIMEOUT",
				"value":       timeoutStr,
				"error":       err.Error(),
				"using_value": config.SerialReadTimeout,
			}).Warn("Failed to parse FSKMODEM_SERIAL_READ_TIMEOUT environment variable, using default")
			return
		}
		if timeout < MinSerialReadTimeout || timeout > MaxSerialReadTimeout {
			logrus.WithFields(logrus.Fields{
				"function":    "parseSerialTimeoutSetting",
				"env_var":     "FSKMODEM_SERIAL_READ_TIMEOUT",
				"value":       timeout,
				"min":         MinSerialReadTimeout,
				"max":         MaxSerialReadTimeout,
				"using_value": config.SerialReadTimeout,
			}).Warn("FSKMODEM_SERIAL_READ_TIMEOUT value out of bounds, using default")
			return
		}
		config.SerialReadTimeout = timeout
	}
}

func logConfigurationInfo(config *Config) {
	logrus.WithFields(logrus.Fields{
		"function":            "NewLauncherFactory",
		"backend":             config.Backend,
		"minimodem_path":      config.MinimodemPath,
		"serial_read_timeout": config.SerialReadTimeout,
	}).Info("Created launcher factory with configuration")
}

func normalizeBackend(name string) (string, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case BackendMinimodem, BackendSerial, BackendSimulation:
		return n, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// CreateLauncher creates the launcher for backend. An empty backend selects
// the configured default.
func (f *LauncherFactory) CreateLauncher(backend string) (interfaces.Launcher, error) {
	config := f.GetCurrentConfig()
	if backend != "" {
		config.Backend = backend
	}
	return f.CreateLauncherWithConfig(config)
}

// CreateLauncherWithConfig creates a launcher from an explicit configuration.
// A nil config uses the factory defaults.
func (f *LauncherFactory) CreateLauncherWithConfig(config *Config) (interfaces.Launcher, error) {
	if config == nil {
		config = f.GetCurrentConfig()
	}

	backend, err := normalizeBackend(config.Backend)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "CreateLauncherWithConfig",
		"backend":  backend,
	}).Info("Creating device launcher")

	switch backend {
	case BackendSimulation:
		return testing.NewSimulatedLauncher(), nil
	case BackendSerial:
		timeout := time.Duration(config.SerialReadTimeout) * time.Millisecond
		return real.NewSerialLauncher(timeout), nil
	default:
		l := real.NewMinimodemLauncher()
		if config.MinimodemPath != "" {
			l.Executable = config.MinimodemPath
		}
		return l, nil
	}
}

// GetCurrentConfig returns a copy of the default configuration.
func (f *LauncherFactory) GetCurrentConfig() *Config {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c := *f.defaultConfig
	return &c
}

// UpdateConfig replaces the default configuration.
func (f *LauncherFactory) UpdateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	backend, err := normalizeBackend(config.Backend)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "UpdateConfig",
		"old_backend": f.defaultConfig.Backend,
		"new_backend": backend,
	}).Info("Updating factory configuration")

	c := *config
	c.Backend = backend
	f.defaultConfig = &c
	return nil
}

// IsUsingSimulation reports whether the default backend is the simulation.
func (f *LauncherFactory) IsUsingSimulation() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.defaultConfig.Backend == BackendSimulation
}
