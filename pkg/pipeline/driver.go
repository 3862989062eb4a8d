// pkg/pipeline/driver.go

// Package pipeline sequences the stages per requested mode and turns stage
// outcomes into the process exit status. The driver is the only place that
// decides whether a failed stage stops the run.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vision-edge/mpsetup/pkg/artifact"
	"github.com/vision-edge/mpsetup/pkg/config"
	"github.com/vision-edge/mpsetup/pkg/install"
	"github.com/vision-edge/mpsetup/pkg/mperr"
	"github.com/vision-edge/mpsetup/pkg/mpio"
	"github.com/vision-edge/mpsetup/pkg/preflight"
	"github.com/vision-edge/mpsetup/pkg/profile"
	"github.com/vision-edge/mpsetup/pkg/verify"
	"go.uber.org/zap"
)

// Stage contracts the driver sequences. Each concrete stage satisfies its
// interface directly; tests substitute fakes.
type (
	Profiler interface {
		Profile(rc *mpio.RuntimeContext) *profile.DeviceProfile
	}
	Checker interface {
		Evaluate(p *profile.DeviceProfile) *preflight.CheckReport
	}
	Installer interface {
		Install(rc *mpio.RuntimeContext, p *profile.DeviceProfile, report *preflight.CheckReport) (*install.Outcome, error)
	}
	Verifier interface {
		Verify(rc *mpio.RuntimeContext) *verify.Result
	}
	Generator interface {
		Generate(rc *mpio.RuntimeContext, p *profile.DeviceProfile, destPath string) error
	}
)

// Driver owns one run of the pipeline.
type Driver struct {
	opts *config.Options

	profiler  Profiler
	checker   Checker
	installer Installer
	verifier  Verifier
	generator Generator
}

// New wires a Driver against the real stages. The embedded rule set is
// loaded once here, with --min-version applied to the interpreter rule.
func New(opts *config.Options) (*Driver, error) {
	rules, err := preflight.LoadRules()
	if err != nil {
		return nil, mperr.NewInternalError("embedded rule set failed to load", err)
	}
	rules = preflight.OverrideInterpreterMinimum(rules, opts.MinVersion)

	return &Driver{
		opts:     opts,
		profiler: profile.New(),
		checker:  preflight.NewChecker(rules),
		installer: install.New(install.Config{
			Package:    opts.Package,
			Retries:    opts.Retries,
			RetryDelay: opts.RetryDelay,
			Timeout:    opts.InstallTimeout,
		}),
		verifier:  verify.New(opts.Package),
		generator: artifact.New(opts.Package, opts.MinVersion),
	}, nil
}

// Run executes the pipeline for the configured mode. The returned error is
// nil exactly when RunResult.ExitCode is 0; expected failures come back as
// classified user errors so the CLI prints them without a stack trace.
func (d *Driver) Run(rc *mpio.RuntimeContext) (*RunResult, error) {
	logger := otelzap.Ctx(rc.Ctx)

	res := &RunResult{
		RunID:  uuid.New().String(),
		Mode:   ModeFromOptions(d.opts),
		States: []State{StateStart},
	}
	if rc.Attributes == nil {
		rc.Attributes = make(map[string]string)
	}
	rc.Attributes["run_id"] = res.RunID
	rc.Attributes["mode"] = string(res.Mode)

	logger.Info("Starting pipeline",
		zap.String("run_id", res.RunID),
		zap.String("mode", string(res.Mode)))

	step := func(s State) {
		res.States = append(res.States, s)
		logger.Debug("Pipeline transition", zap.String("state", string(s)))
	}
	// A stage failure caused by Ctrl-C is reported as a cancellation,
	// not as that stage's own failure class.
	cancelled := func(err error) error {
		if err != nil && rc.Ctx.Err() != nil {
			return mperr.NewExpectedError(mperr.NewUserCancelledError(rc.Command))
		}
		return err
	}
	fail := func(err error) (*RunResult, error) {
		err = cancelled(err)
		step(StateFailed)
		res.ExitCode = mperr.GetExitCode(err)
		logger.Warn("Pipeline failed",
			zap.Int("exit_code", res.ExitCode),
			zap.Error(err))
		return res, err
	}
	finish := func(err error) (*RunResult, error) {
		err = cancelled(err)
		step(StateDone)
		res.ExitCode = mperr.GetExitCode(err)
		return res, err
	}

	switch res.Mode {
	case ModeCheckOnly:
		return d.runCheckOnly(rc, res, step, finish)
	case ModeVerifyOnly:
		return d.runVerifyOnly(rc, res, step, finish)
	case ModeArtifactOnly:
		return d.runArtifactOnly(rc, res, step, fail, finish)
	default:
		return d.runFull(rc, res, step, fail, finish)
	}
}

type (
	stepFunc   func(State)
	resultFunc func(error) (*RunResult, error)
)

func (d *Driver) runCheckOnly(rc *mpio.RuntimeContext, res *RunResult, step stepFunc, finish resultFunc) (*RunResult, error) {
	step(StateProfile)
	res.Profile = d.profiler.Profile(rc)

	step(StateCheck)
	res.Report = d.checker.Evaluate(res.Profile)

	if !res.Report.OverallPassed {
		return finish(mperr.NewExpectedError(requirementError(res.Report)))
	}
	return finish(nil)
}

func (d *Driver) runVerifyOnly(rc *mpio.RuntimeContext, res *RunResult, step stepFunc, finish resultFunc) (*RunResult, error) {
	step(StateVerify)
	res.Verification = d.verifier.Verify(rc)

	if !res.Verification.FullySucceeded() {
		return finish(mperr.NewExpectedError(verificationError(res.Verification)))
	}
	return finish(nil)
}

func (d *Driver) runArtifactOnly(rc *mpio.RuntimeContext, res *RunResult, step stepFunc, fail, finish resultFunc) (*RunResult, error) {
	// Minimal profile-only pass so the script matches the host.
	res.Profile = d.profiler.Profile(rc)

	step(StateEmitArtifact)
	if err := d.generator.Generate(rc, res.Profile, d.opts.TestPath); err != nil {
		return fail(mperr.NewExpectedError(err))
	}
	res.ArtifactPath = d.opts.TestPath
	return finish(nil)
}

func (d *Driver) runFull(rc *mpio.RuntimeContext, res *RunResult, step stepFunc, fail, finish resultFunc) (*RunResult, error) {
	step(StateProfile)
	res.Profile = d.profiler.Profile(rc)

	step(StateCheck)
	res.Report = d.checker.Evaluate(res.Profile)
	if !res.Report.OverallPassed {
		return fail(mperr.NewExpectedError(requirementError(res.Report)))
	}

	outcome, err := d.installer.Install(rc, res.Profile, res.Report)
	if err != nil {
		return fail(mperr.NewExpectedError(err))
	}
	res.Install = outcome
	if outcome.Strategy == install.StrategySkipAlreadyPresent {
		step(StateSkipInstall)
	} else {
		step(StateInstall)
	}
	if !outcome.Succeeded {
		return fail(mperr.NewExpectedError(installationError(outcome)))
	}

	step(StateVerify)
	res.Verification = d.verifier.Verify(rc)
	var verifyErr error
	if !res.Verification.FullySucceeded() {
		verifyErr = mperr.NewExpectedError(verificationError(res.Verification))
	}

	// The self-test script is emitted even after a failed verification;
	// it is the tool for debugging exactly that failure.
	step(StateEmitArtifact)
	if err := d.generator.Generate(rc, res.Profile, d.opts.TestPath); err != nil {
		return fail(mperr.NewExpectedError(err))
	}
	res.ArtifactPath = d.opts.TestPath

	return finish(verifyErr)
}

func requirementError(report *preflight.CheckReport) error {
	hard := report.HardFailures()
	ids := make([]string, 0, len(hard))
	remediation := make([]string, 0, len(hard))
	for _, f := range hard {
		ids = append(ids, fmt.Sprintf("%s (%s)", f.RuleID, f.Detail))
		if f.Remediation != "" {
			remediation = append(remediation, f.Remediation)
		}
	}
	return mperr.NewRequirementError(
		fmt.Sprintf("%d hard requirement(s) failed: %s", len(hard), strings.Join(ids, "; ")),
		remediation...)
}

func installationError(outcome *install.Outcome) error {
	msg := fmt.Sprintf("installation failed: %s", outcome.ErrorDetail)
	if outcome.Attempts > 0 {
		msg = fmt.Sprintf("installation failed after %d attempt(s): %s", outcome.Attempts, outcome.ErrorDetail)
	}
	return mperr.NewInstallationError(msg, nil,
		"Check network connectivity to the package index.",
		"Re-run with --verbose to see the full package manager output.")
}

func verificationError(v *verify.Result) error {
	return mperr.NewVerificationError(v.ErrorDetail, nil,
		"Run the generated self-test script for a detailed breakdown.",
		"Reinstall with a fresh run if the import itself failed.")
}
