// pkg/profile/profile_test.go

package profile

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vision-edge/mpsetup/pkg/execute"
	"github.com/vision-edge/mpsetup/pkg/mpio"
)

func testRC() *mpio.RuntimeContext {
	return &mpio.RuntimeContext{Ctx: context.Background()}
}

// newDegradedProfiler returns a Profiler whose every probe fails, the
// worst-case host.
func newDegradedProfiler() *Profiler {
	return &Profiler{
		goarch:       "wasm",
		goos:         "js",
		unameMachine: func() string { return "" },
		readFile: func(string) ([]byte, error) {
			return nil, os.ErrNotExist
		},
		virtualMemory: func() (*mem.VirtualMemoryStat, error) {
			return nil, cerr.New("no memory info")
		},
		lookPath: func(string) (string, error) {
			return "", cerr.New("not found")
		},
		statPath: func(string) (os.FileInfo, error) {
			return nil, os.ErrNotExist
		},
		runProbe: func(context.Context, execute.Options) (string, error) {
			return "", cerr.New("probe failed")
		},
	}
}

func TestProfileDegradesWithoutError(t *testing.T) {
	t.Parallel()

	prof := newDegradedProfiler().Profile(testRC())

	assert.Equal(t, ArchUnknown, prof.Architecture)
	assert.Empty(t, prof.ArchVariant)
	assert.Equal(t, OSOther, prof.OSFamily)
	assert.Equal(t, ClassUnknown, prof.DeviceClass)
	assert.Nil(t, prof.InterpreterVersion)
	assert.Zero(t, prof.TotalMemoryMiB)
	assert.False(t, prof.HasCameraSubsystem)
	assert.Empty(t, prof.ModelString)
	assert.Equal(t, map[string]bool{"python3": false, "pip3": false, "python3-config": false}, prof.Tools)
}

func TestProfileRaspberryPi(t *testing.T) {
	t.Parallel()

	p := newDegradedProfiler()
	p.goarch = "arm64"
	p.goos = "linux"
	p.unameMachine = func() string { return "aarch64" }
	p.readFile = func(path string) ([]byte, error) {
		require.Equal(t, deviceTreeModelPath, path)
		return []byte("Raspberry Pi 4 Model B Rev 1.4\x00"), nil
	}
	p.virtualMemory = func() (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 4096 * 1024 * 1024}, nil
	}
	p.lookPath = func(string) (string, error) { return "/usr/bin/x", nil }
	p.statPath = func(string) (os.FileInfo, error) { return nil, nil }
	p.runProbe = func(_ context.Context, opts execute.Options) (string, error) {
		require.Equal(t, "python3", opts.Command)
		require.Equal(t, []string{"--version"}, opts.Args)
		return "Python 3.11.2\n", nil
	}

	prof := p.Profile(testRC())

	assert.Equal(t, ArchARM64, prof.Architecture)
	assert.Equal(t, "arm64", prof.ArchKey())
	assert.Equal(t, OSLinux, prof.OSFamily)
	assert.Equal(t, ClassRaspberryPi, prof.DeviceClass)
	require.NotNil(t, prof.InterpreterVersion)
	assert.Equal(t, "3.11.2", prof.InterpreterVersion.String())
	assert.Equal(t, uint64(4096), prof.TotalMemoryMiB)
	assert.True(t, prof.HasCameraSubsystem)
	assert.Equal(t, "Raspberry Pi 4 Model B Rev 1.4", prof.ModelString)
	assert.True(t, prof.Tools["pip3"])
}

func TestClassifyMachine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		machine     string
		wantArch    Architecture
		wantVariant string
		wantOK      bool
	}{
		{machine: "aarch64", wantArch: ArchARM64, wantOK: true},
		{machine: "arm64", wantArch: ArchARM64, wantOK: true},
		{machine: "armv7l", wantArch: ArchARM32, wantVariant: "v7", wantOK: true},
		{machine: "armv6l", wantArch: ArchARM32, wantVariant: "v6", wantOK: true},
		{machine: "ARMV6L", wantArch: ArchARM32, wantVariant: "v6", wantOK: true},
		{machine: "x86_64", wantArch: ArchX86_64, wantOK: true},
		{machine: "armv8b", wantArch: ArchARM32, wantOK: true},
		{machine: "riscv64", wantArch: ArchUnknown, wantOK: false},
		{machine: "", wantArch: ArchUnknown, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.machine, func(t *testing.T) {
			t.Parallel()

			arch, variant, ok := classifyMachine(tt.machine)
			assert.Equal(t, tt.wantArch, arch)
			assert.Equal(t, tt.wantVariant, variant)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestMachineStringWinsOverGoarch(t *testing.T) {
	t.Parallel()

	// 32-bit userland on a 64-bit Raspberry Pi kernel.
	p := newDegradedProfiler()
	p.goarch = "arm"
	p.unameMachine = func() string { return "aarch64" }

	arch, variant := p.detectArchitecture(testRC())
	assert.Equal(t, ArchARM64, arch)
	assert.Empty(t, variant)
}

func TestInferDeviceClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		arch  Architecture
		model string
		want  DeviceClass
	}{
		{name: "pi model string", arch: ArchARM64, model: "Raspberry Pi 5 Model B", want: ClassRaspberryPi},
		{name: "coral model string", arch: ArchARM64, model: "Coral Dev Board", want: ClassCoral},
		{name: "arm without model", arch: ArchARM32, model: "", want: ClassGenericARM},
		{name: "x86", arch: ArchX86_64, model: "", want: ClassNonARM},
		{name: "nothing known", arch: ArchUnknown, model: "", want: ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, inferDeviceClass(tt.arch, tt.model))
		})
	}
}

func TestParseInterpreterVersion(t *testing.T) {
	t.Parallel()

	v, err := parseInterpreterVersion("Python 3.9.0\n")
	require.NoError(t, err)
	assert.Equal(t, "3.9.0", v.String())

	_, err = parseInterpreterVersion("")
	require.Error(t, err)

	_, err = parseInterpreterVersion("Python devbuild")
	require.Error(t, err)
}

func TestArchKey(t *testing.T) {
	t.Parallel()

	p := &DeviceProfile{Architecture: ArchARM32, ArchVariant: "v6"}
	assert.Equal(t, "arm32/v6", p.ArchKey())

	p = &DeviceProfile{Architecture: ArchARM64}
	assert.Equal(t, "arm64", p.ArchKey())
}

func TestProfileJSONRendering(t *testing.T) {
	t.Parallel()

	p := newDegradedProfiler()
	p.unameMachine = func() string { return "armv7l" }
	p.runProbe = func(context.Context, execute.Options) (string, error) {
		return "Python 3.10.6", nil
	}
	prof := p.Profile(testRC())

	raw, err := json.Marshal(prof)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "arm32", decoded["architecture"])
	assert.Equal(t, "v7", decoded["arch_variant"])
	assert.Equal(t, "3.10.6", decoded["interpreter_version"])
	assert.Equal(t, "generic-arm", decoded["device_class"])
}
