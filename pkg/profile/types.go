// pkg/profile/types.go

package profile

import (
	"encoding/json"

	"github.com/hashicorp/go-version"
)

// Architecture is the coarse CPU architecture of the host.
type Architecture string

const (
	ArchARM32   Architecture = "arm32"
	ArchARM64   Architecture = "arm64"
	ArchX86_64  Architecture = "x86_64"
	ArchUnknown Architecture = "unknown"
)

// OSFamily is the host operating system family.
type OSFamily string

const (
	OSLinux  OSFamily = "linux"
	OSDarwin OSFamily = "darwin"
	OSOther  OSFamily = "other"
)

// DeviceClass is a heuristic guess at the board family. It is advisory
// only and no hard requirement may gate on it.
type DeviceClass string

const (
	ClassRaspberryPi DeviceClass = "raspberry-pi"
	ClassCoral       DeviceClass = "coral"
	ClassGenericARM  DeviceClass = "generic-arm"
	ClassNonARM      DeviceClass = "non-arm"
	ClassUnknown     DeviceClass = "unknown"
)

// DeviceProfile is the immutable snapshot of the host taken once per run.
// Every fact the profiler could not determine degrades to its unknown or
// zero value rather than failing the run. Never persisted.
type DeviceProfile struct {
	Architecture Architecture `json:"architecture"`

	// ArchVariant is the ARM sub-architecture tag ("v6", "v7"), empty when
	// inapplicable or undetectable. It carries the arm32 generation
	// distinction the Architecture enum deliberately leaves out.
	ArchVariant string `json:"arch_variant,omitempty"`

	OSFamily    OSFamily    `json:"os_family"`
	DeviceClass DeviceClass `json:"device_class"`

	// InterpreterVersion is nil when python3 is missing or unparseable.
	InterpreterVersion *version.Version `json:"-"`

	TotalMemoryMiB     uint64 `json:"total_memory_mib"`
	HasCameraSubsystem bool   `json:"has_camera_subsystem"`

	// ModelString is the raw device-tree model, informational only.
	ModelString string `json:"model_string,omitempty"`

	// Tools records PATH availability of the system tools the soft rules
	// ask about, captured here so the checker never performs I/O.
	Tools map[string]bool `json:"tools,omitempty"`
}

// ArchKey is the identifier the architecture rule matches against:
// "arm64", "arm32/v7", "arm32/v6", "x86_64" or "unknown".
func (p *DeviceProfile) ArchKey() string {
	if p.ArchVariant == "" {
		return string(p.Architecture)
	}
	return string(p.Architecture) + "/" + p.ArchVariant
}

// IsARM reports whether the host is any ARM generation.
func (p *DeviceProfile) IsARM() bool {
	return p.Architecture == ArchARM32 || p.Architecture == ArchARM64
}

// InterpreterVersionString returns the detected interpreter version or ""
// when undetectable.
func (p *DeviceProfile) InterpreterVersionString() string {
	if p.InterpreterVersion == nil {
		return ""
	}
	return p.InterpreterVersion.String()
}

// MarshalJSON renders InterpreterVersion as its string form so profile dumps
// stay readable in logs and span attributes.
func (p *DeviceProfile) MarshalJSON() ([]byte, error) {
	type alias DeviceProfile
	return json.Marshal(struct {
		*alias
		InterpreterVersion string `json:"interpreter_version,omitempty"`
	}{
		alias:              (*alias)(p),
		InterpreterVersion: p.InterpreterVersionString(),
	})
}
