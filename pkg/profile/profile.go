// pkg/profile/profile.go

// Package profile inspects the host and produces the immutable DeviceProfile
// every later stage is a pure function of. Profiling is the single
// non-determinism boundary of the pipeline: it never returns an error, and
// every probe degrades independently to an unknown or zero value.
package profile

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-version"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vision-edge/mpsetup/pkg/execute"
	"github.com/vision-edge/mpsetup/pkg/mpio"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	deviceTreeModelPath = "/proc/device-tree/model"
	cameraDevicePath    = "/dev/video0"
	interpreterBinary   = "python3"
)

// probedTools are the PATH lookups captured into DeviceProfile.Tools.
var probedTools = []string{"python3", "pip3", "python3-config"}

// Profiler gathers host facts. Detection sources are injectable so tests
// use fixtures instead of environment mocking.
type Profiler struct {
	goarch string
	goos   string

	unameMachine  func() string
	readFile      func(string) ([]byte, error)
	virtualMemory func() (*mem.VirtualMemoryStat, error)
	lookPath      func(string) (string, error)
	statPath      func(string) (os.FileInfo, error)
	runProbe      func(context.Context, execute.Options) (string, error)
}

// New returns a Profiler wired to the real host.
func New() *Profiler {
	return &Profiler{
		goarch:        runtime.GOARCH,
		goos:          runtime.GOOS,
		unameMachine:  unameMachineString,
		readFile:      os.ReadFile,
		virtualMemory: mem.VirtualMemory,
		lookPath:      exec.LookPath,
		statPath:      os.Stat,
		runProbe:      execute.Run,
	}
}

// Profile takes the host snapshot. It never fails; unreadable facts are
// logged at debug level and degrade to unknown.
func (p *Profiler) Profile(rc *mpio.RuntimeContext) *DeviceProfile {
	logger := otelzap.Ctx(rc.Ctx)
	logger.Debug("Assessing host environment")

	arch, variant := p.detectArchitecture(rc)
	model := p.readModelString(rc)

	prof := &DeviceProfile{
		Architecture:       arch,
		ArchVariant:        variant,
		OSFamily:           detectOSFamily(p.goos),
		DeviceClass:        inferDeviceClass(arch, model),
		InterpreterVersion: p.detectInterpreterVersion(rc),
		TotalMemoryMiB:     p.detectMemoryMiB(rc),
		HasCameraSubsystem: p.detectCamera(),
		ModelString:        model,
		Tools:              p.detectTools(),
	}

	logger.Info("Host profile assembled",
		zap.String("architecture", prof.ArchKey()),
		zap.String("os_family", string(prof.OSFamily)),
		zap.String("device_class", string(prof.DeviceClass)),
		zap.String("interpreter_version", prof.InterpreterVersionString()),
		zap.Uint64("total_memory_mib", prof.TotalMemoryMiB),
		zap.Bool("camera", prof.HasCameraSubsystem))

	return prof
}

// detectArchitecture prefers the kernel's machine string, which describes
// the host rather than this binary's build target, and falls back to
// runtime.GOARCH when uname is unavailable or unrecognized.
func (p *Profiler) detectArchitecture(rc *mpio.RuntimeContext) (Architecture, string) {
	if machine := p.unameMachine(); machine != "" {
		if arch, variant, ok := classifyMachine(machine); ok {
			return arch, variant
		}
		otelzap.Ctx(rc.Ctx).Debug("Unrecognized machine string, falling back to GOARCH",
			zap.String("machine", machine))
	}
	return mapGoArch(p.goarch), ""
}

func (p *Profiler) readModelString(rc *mpio.RuntimeContext) string {
	raw, err := p.readFile(deviceTreeModelPath)
	if err != nil {
		otelzap.Ctx(rc.Ctx).Debug("Device-tree model not readable", zap.Error(err))
		return ""
	}
	// Device-tree strings are NUL terminated.
	return strings.TrimSpace(strings.TrimRight(string(raw), "\x00"))
}

func (p *Profiler) detectInterpreterVersion(rc *mpio.RuntimeContext) *version.Version {
	out, err := p.runProbe(rc.Ctx, execute.Options{
		Command: interpreterBinary,
		Args:    []string{"--version"},
		Capture: true,
	})
	if err != nil {
		otelzap.Ctx(rc.Ctx).Debug("Interpreter version probe failed", zap.Error(err))
		return nil
	}
	v, err := parseInterpreterVersion(out)
	if err != nil {
		otelzap.Ctx(rc.Ctx).Debug("Interpreter version unparseable",
			zap.String("output", strings.TrimSpace(out)), zap.Error(err))
		return nil
	}
	return v
}

func (p *Profiler) detectMemoryMiB(rc *mpio.RuntimeContext) uint64 {
	info, err := p.virtualMemory()
	if err != nil {
		otelzap.Ctx(rc.Ctx).Debug("Memory probe failed", zap.Error(err))
		return 0
	}
	return info.Total / (1024 * 1024)
}

func (p *Profiler) detectCamera() bool {
	_, err := p.statPath(cameraDevicePath)
	return err == nil
}

func (p *Profiler) detectTools() map[string]bool {
	tools := make(map[string]bool, len(probedTools))
	for _, name := range probedTools {
		_, err := p.lookPath(name)
		tools[name] = err == nil
	}
	return tools
}

func unameMachineString() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Machine[:])
}

// classifyMachine maps a uname machine string to the architecture enum.
// The marker set mirrors the upstream detector: arm, aarch64, armv7l, armv6l.
func classifyMachine(machine string) (Architecture, string, bool) {
	m := strings.ToLower(strings.TrimSpace(machine))
	switch {
	case m == "aarch64" || m == "arm64":
		return ArchARM64, "", true
	case m == "armv7l":
		return ArchARM32, "v7", true
	case m == "armv6l":
		return ArchARM32, "v6", true
	case m == "x86_64" || m == "amd64":
		return ArchX86_64, "", true
	case strings.Contains(m, "arm"):
		return ArchARM32, "", true
	default:
		return ArchUnknown, "", false
	}
}

func mapGoArch(goarch string) Architecture {
	switch goarch {
	case "arm64":
		return ArchARM64
	case "arm":
		return ArchARM32
	case "amd64":
		return ArchX86_64
	default:
		return ArchUnknown
	}
}

func detectOSFamily(goos string) OSFamily {
	switch goos {
	case "linux":
		return OSLinux
	case "darwin":
		return OSDarwin
	default:
		return OSOther
	}
}

// inferDeviceClass guesses the board family. Model substrings win over the
// bare architecture so 64-bit Raspberry Pi kernels still classify correctly.
func inferDeviceClass(arch Architecture, model string) DeviceClass {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "raspberry pi"):
		return ClassRaspberryPi
	case strings.Contains(m, "coral"):
		return ClassCoral
	case arch == ArchARM32 || arch == ArchARM64:
		return ClassGenericARM
	case arch == ArchX86_64:
		return ClassNonARM
	default:
		return ClassUnknown
	}
}

// parseInterpreterVersion extracts the semantic version from output such as
// "Python 3.11.2".
func parseInterpreterVersion(out string) (*version.Version, error) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) == 0 {
		return nil, cerr.New("empty interpreter version output")
	}
	return version.NewVersion(fields[len(fields)-1])
}
