package alsa

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/opd-ai/fskmodem/interfaces"
	"github.com/sirupsen/logrus"
)

// ErrResolution indicates the device listing command could not be run.
var ErrResolution = errors.New("device resolution failed")

// CommandRunner runs a listing command and returns its standard output.
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Output implements CommandRunner.
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Resolver looks up ALSA devices by description.
type Resolver struct {
	runner CommandRunner
}

// NewResolver creates a Resolver backed by ExecRunner.
func NewResolver() *Resolver {
	return &Resolver{runner: ExecRunner{}}
}

// NewResolverWithRunner creates a Resolver using runner.
func NewResolverWithRunner(runner CommandRunner) *Resolver {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Resolver{runner: runner}
}

// ListCommand returns the program and arguments that list devices for dir.
func ListCommand(dir interfaces.Direction) (string, []string, error) {
	switch dir {
	case interfaces.DirectionRX:
		return "arecord", []string{"-l"}, nil
	case interfaces.DirectionTX:
		return "aplay", []string{"-l"}, nil
	default:
		return "", nil, fmt.Errorf("%w: %v", interfaces.ErrUnknownDirection, dir)
	}
}

// Resolve is ResolveContext with a background context.
func (r *Resolver) Resolve(desc string, dir interfaces.Direction) (string, bool, error) {
	return r.ResolveContext(context.Background(), desc, dir)
}

// Device is one listed ALSA card and device.
type Device struct {
	// ID is the "card,device" identifier passed to minimodem --alsa
	ID string

	// Line is the listing line the device was parsed from
	Line string
}

// List runs the listing command for dir and returns every device line in
// listing order. Lines without a card and device field are skipped.
func (r *Resolver) List(ctx context.Context, dir interfaces.Direction) ([]Device, error) {
	name, args, err := ListCommand(dir)
	if err != nil {
		return nil, err
	}

	out, err := r.runner.Output(ctx, name, args...)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Resolver.List",
			"command":  name,
			"error":    err.Error(),
		}).Warn("Device listing failed")
		return nil, fmt.Errorf("%w: %s %s: %v", ErrResolution, name, strings.Join(args, " "), err)
	}

	var devices []Device
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		id, ok := ParseDeviceLine(line)
		if !ok {
			continue
		}
		devices = append(devices, Device{ID: id, Line: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s output: %v", ErrResolution, name, err)
	}
	return devices, nil
}

// ResolveContext returns the "card,device" identifier of the first listed
// device whose line contains desc. ok is false when no line matches.
func (r *Resolver) ResolveContext(ctx context.Context, desc string, dir interfaces.Direction) (string, bool, error) {
	devices, err := r.List(ctx, dir)
	if err != nil {
		return "", false, err
	}

	for _, dev := range devices {
		if !strings.Contains(dev.Line, desc) {
			continue
		}
		logrus.WithFields(logrus.Fields{
			"function":    "Resolver.Resolve",
			"description": desc,
			"direction":   dir.String(),
			"device":      dev.ID,
		}).Info("Resolved audio device")
		return dev.ID, true, nil
	}
	return "", false, nil
}

var deviceLine = regexp.MustCompile(`card\s+(\d+)\s*:.*\bdevice\s+(\d+)\s*:`)

// ParseDeviceLine extracts "card,device" from one listing line.
func ParseDeviceLine(line string) (string, bool) {
	m := deviceLine.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1] + "," + m[2], true
}
