// Package envscan probes the host before a session: operating system and
// version, Python and installed packages, USB device listing, and visible
// VISA resources. The probe is best effort; a failed command leaves that
// part of the environment at its zero value.
package envscan

import (
	"context"
	"encoding/json"
	osexec "os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Yash-Prakash1/connector/internal/model"
)

// Runner executes one probe command. Injectable for tests.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// Scanner gathers a model.Environment snapshot.
type Scanner struct {
	run Runner
	log *zap.Logger
}

// New creates a scanner. A nil runner uses the real command runner; a nil
// logger discards probe warnings.
func New(run Runner, log *zap.Logger) *Scanner {
	if run == nil {
		run = runProbe
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{run: run, log: log}
}

// Scan probes the host and returns what it could observe.
func (s *Scanner) Scan(ctx context.Context) model.Environment {
	env := model.Environment{
		OS:              HostOS(),
		PackageVersions: map[string]string{},
	}
	env.OSVersion = s.osVersion(ctx, env.OS)
	env.PythonVersion = s.pythonVersion(ctx)
	s.scanPackages(ctx, &env)
	env.USBDevices = s.usbDevices(ctx, env.OS)
	env.VISAResources = s.visaResources(ctx)
	return env
}

// HostOS maps the build target to the OS family vocabulary.
func HostOS() model.OS {
	switch runtime.GOOS {
	case "darwin":
		return model.MacOS
	case "windows":
		return model.Windows
	}
	return model.Linux
}

func (s *Scanner) osVersion(ctx context.Context, os model.OS) string {
	var out string
	var err error
	switch os {
	case model.MacOS:
		out, err = s.run(ctx, "sw_vers", "-productVersion")
	case model.Windows:
		out, err = s.run(ctx, "cmd", "/c", "ver")
	default:
		out, err = s.run(ctx, "uname", "-r")
	}
	if err != nil {
		s.log.Warn("os version probe failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(out)
}

func (s *Scanner) pythonVersion(ctx context.Context) string {
	out, err := s.run(ctx, "python3", "--version")
	if err != nil {
		s.log.Warn("python probe failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "Python "))
}

func (s *Scanner) scanPackages(ctx context.Context, env *model.Environment) {
	out, err := s.run(ctx, "python3", "-m", "pip", "list", "--format=json")
	if err != nil {
		s.log.Warn("pip list probe failed", zap.Error(err))
		return
	}
	var listed []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		s.log.Warn("pip list output unparseable", zap.Error(err))
		return
	}
	for _, p := range listed {
		env.PackageVersions[strings.ToLower(p.Name)] = p.Version
	}
}

func (s *Scanner) usbDevices(ctx context.Context, os model.OS) []string {
	var out string
	var err error
	switch os {
	case model.MacOS:
		out, err = s.run(ctx, "system_profiler", "SPUSBDataType")
	case model.Windows:
		return nil
	default:
		out, err = s.run(ctx, "lsusb")
	}
	if err != nil {
		s.log.Warn("usb probe failed", zap.Error(err))
		return nil
	}
	var devices []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			devices = append(devices, line)
		}
	}
	return devices
}

func (s *Scanner) visaResources(ctx context.Context) []string {
	out, err := s.run(ctx, "python3", "-c",
		"import pyvisa\nfor r in pyvisa.ResourceManager('@py').list_resources(): print(r)")
	if err != nil {
		// pyvisa commonly absent before a first successful session.
		return nil
	}
	var resources []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			resources = append(resources, line)
		}
	}
	return resources
}

func runProbe(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := osexec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}
