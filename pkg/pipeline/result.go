// pkg/pipeline/result.go

package pipeline

import (
	"github.com/vision-edge/mpsetup/pkg/config"
	"github.com/vision-edge/mpsetup/pkg/install"
	"github.com/vision-edge/mpsetup/pkg/preflight"
	"github.com/vision-edge/mpsetup/pkg/profile"
	"github.com/vision-edge/mpsetup/pkg/verify"
)

// Mode selects which stages a run executes.
type Mode string

const (
	ModeFull         Mode = "full"
	ModeCheckOnly    Mode = "check-only"
	ModeVerifyOnly   Mode = "verify-only"
	ModeArtifactOnly Mode = "create-test"
)

// ModeFromOptions derives the run mode from the mutually exclusive mode
// flags.
func ModeFromOptions(opts *config.Options) Mode {
	switch {
	case opts.CheckOnly:
		return ModeCheckOnly
	case opts.VerifyOnly:
		return ModeVerifyOnly
	case opts.CreateTestOnly:
		return ModeArtifactOnly
	default:
		return ModeFull
	}
}

// State is one node of the driver state machine.
type State string

const (
	StateStart        State = "START"
	StateProfile      State = "PROFILE"
	StateCheck        State = "CHECK"
	StateSkipInstall  State = "SKIP_INSTALL"
	StateInstall      State = "INSTALL"
	StateVerify       State = "VERIFY"
	StateEmitArtifact State = "EMIT_ARTIFACT"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// RunResult is the sole object a run returns to the caller. Stage outputs
// are nil for stages the mode skipped.
type RunResult struct {
	RunID string `json:"run_id"`
	Mode  Mode   `json:"mode"`

	// States is the transition trace in execution order, START first.
	States []State `json:"states"`

	Profile      *profile.DeviceProfile `json:"profile,omitempty"`
	Report       *preflight.CheckReport `json:"report,omitempty"`
	Install      *install.Outcome       `json:"install,omitempty"`
	Verification *verify.Result         `json:"verification,omitempty"`
	ArtifactPath string                 `json:"artifact_path,omitempty"`

	ExitCode int `json:"exit_code"`
}

// FinalState returns the last recorded state.
func (r *RunResult) FinalState() State {
	if len(r.States) == 0 {
		return StateStart
	}
	return r.States[len(r.States)-1]
}
