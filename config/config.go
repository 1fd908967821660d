package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/opd-ai/fskmodem"
	"github.com/opd-ai/fskmodem/factory"
	"github.com/opd-ai/fskmodem/limits"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat indicates a config file extension that is not
// .yaml, .yml or .toml.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Config is the complete file configuration.
type Config struct {
	Modem   ModemConfig   `yaml:"modem" toml:"modem"`
	Device  DeviceConfig  `yaml:"device" toml:"device"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// ModemConfig holds link parameters.
type ModemConfig struct {
	BaudRate       int  `yaml:"baud_rate" toml:"baud_rate"`
	MTU            int  `yaml:"mtu" toml:"mtu"`
	Checksum       bool `yaml:"checksum" toml:"checksum"`
	PollIntervalMS int  `yaml:"poll_interval_ms" toml:"poll_interval_ms"`
	StopTimeoutMS  int  `yaml:"stop_timeout_ms" toml:"stop_timeout_ms"`
}

// DeviceConfig selects the backend and the devices it drives. Empty backend
// settings defer to the launcher factory and its FSKMODEM_* environment.
type DeviceConfig struct {
	Backend             string `yaml:"backend" toml:"backend"`
	MinimodemPath       string `yaml:"minimodem_path" toml:"minimodem_path"`
	SerialReadTimeoutMS int    `yaml:"serial_read_timeout_ms" toml:"serial_read_timeout_ms"`

	// InputDevice and OutputDevice are concrete identifiers ("2,0", "/dev/ttyUSB0")
	InputDevice  string `yaml:"input_device" toml:"input_device"`
	OutputDevice string `yaml:"output_device" toml:"output_device"`

	// InputDescription and OutputDescription are resolved through alsa when
	// the matching identifier is empty
	InputDescription  string `yaml:"input_description" toml:"input_description"`
	OutputDescription string `yaml:"output_description" toml:"output_description"`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Address disables it.
type MetricsConfig struct {
	Address string `yaml:"address" toml:"address"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Modem: ModemConfig{
			BaudRate:       limits.DefaultBaudRate,
			MTU:            limits.DefaultMTU,
			PollIntervalMS: int(fskmodem.DefaultPollInterval / time.Millisecond),
			StopTimeoutMS:  5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"path":     path,
		"backend":  cfg.Device.Backend,
	}).Debug("Loaded configuration file")
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Modem.Validate(); err != nil {
		return fmt.Errorf("modem config: %w", err)
	}
	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates modem configuration
func (m *ModemConfig) Validate() error {
	if err := limits.ValidateBaudRate(m.BaudRate); err != nil {
		return err
	}
	if err := limits.ValidateMTU(m.MTU); err != nil {
		return err
	}
	if m.PollIntervalMS < 0 {
		return fmt.Errorf("poll_interval_ms must not be negative, got %d", m.PollIntervalMS)
	}
	if m.StopTimeoutMS < 0 {
		return fmt.Errorf("stop_timeout_ms must not be negative, got %d", m.StopTimeoutMS)
	}
	return nil
}

// Validate validates device configuration
func (d *DeviceConfig) Validate() error {
	switch d.Backend {
	case "", factory.BackendMinimodem, factory.BackendSimulation:
	case factory.BackendSerial:
		if d.InputDevice == "" {
			return fmt.Errorf("serial backend requires input_device")
		}
	default:
		return fmt.Errorf("%w: %q", factory.ErrUnknownBackend, d.Backend)
	}
	if d.SerialReadTimeoutMS == 0 {
		return nil
	}
	if d.SerialReadTimeoutMS < factory.MinSerialReadTimeout || d.SerialReadTimeoutMS > factory.MaxSerialReadTimeout {
		return fmt.Errorf("serial_read_timeout_ms must be between %d and %d, got %d",
			factory.MinSerialReadTimeout, factory.MaxSerialReadTimeout, d.SerialReadTimeoutMS)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return err
	}
	switch l.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}
}

// Apply configures the standard logrus logger.
func (l *LoggingConfig) Apply() error {
	if err := l.Validate(); err != nil {
		return err
	}
	level, _ := logrus.ParseLevel(l.Level)
	logrus.SetLevel(level)

	if l.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// Options converts the file settings to link options. Launcher and Metrics
// are left for the caller.
func (c *Config) Options() *fskmodem.Options {
	opts := fskmodem.NewOptions()
	opts.BaudRate = c.Modem.BaudRate
	opts.MTU = c.Modem.MTU
	opts.Checksum = c.Modem.Checksum
	opts.PollInterval = time.Duration(c.Modem.PollIntervalMS) * time.Millisecond
	opts.StopTimeout = time.Duration(c.Modem.StopTimeoutMS) * time.Millisecond
	opts.InputDevice = c.Device.InputDevice
	opts.OutputDevice = c.Device.OutputDevice
	return opts
}

// FactoryConfig overlays the device section on base, normally the factory's
// environment-derived defaults. Unset fields keep the base value.
func (c *Config) FactoryConfig(base *factory.Config) *factory.Config {
	var fc factory.Config
	if base != nil {
		fc = *base
	}
	if c.Device.Backend != "" {
		fc.Backend = c.Device.Backend
	}
	if c.Device.MinimodemPath != "" {
		fc.MinimodemPath = c.Device.MinimodemPath
	}
	if c.Device.SerialReadTimeoutMS != 0 {
		fc.SerialReadTimeout = c.Device.SerialReadTimeoutMS
	}
	return &fc
}
