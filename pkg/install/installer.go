// pkg/install/installer.go

// Package install selects and executes the install strategy for the target
// package. It is the only component in the pipeline that mutates host state.
package install

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vision-edge/mpsetup/pkg/execute"
	"github.com/vision-edge/mpsetup/pkg/mperr"
	"github.com/vision-edge/mpsetup/pkg/mpio"
	"github.com/vision-edge/mpsetup/pkg/preflight"
	"github.com/vision-edge/mpsetup/pkg/profile"
	"github.com/vision-edge/mpsetup/pkg/verify"
	"go.uber.org/zap"
)

// Strategy names how the package ended up on the host.
type Strategy string

const (
	StrategyPrebuiltPackage    Strategy = "prebuilt-package"
	StrategySkipAlreadyPresent Strategy = "skip-already-present"
)

const (
	interpreterBinary = "python3"
	packageManager    = "pip3"
	probeTimeout      = 30 * time.Second
	companionChannels = "opencv-python"
	companionHeadless = "opencv-python-headless"
)

// packagingTools are upgraded before the first package install so old pip
// builds on long-lived boards can still resolve prebuilt wheels.
var packagingTools = []string{"pip", "setuptools", "wheel"}

// Outcome is the result of one install stage run.
type Outcome struct {
	Strategy    Strategy `json:"strategy"`
	Succeeded   bool     `json:"succeeded"`
	ErrorDetail string   `json:"error_detail,omitempty"`

	// Elapsed covers the whole stage including the probe and companion
	// install; rendered as milliseconds in JSON.
	Elapsed time.Duration `json:"-"`

	// Attempts counts package manager invocations for the target package;
	// zero when the install was skipped.
	Attempts int `json:"attempts"`

	// Warnings records soft problems such as a failed companion install.
	Warnings []string `json:"warnings,omitempty"`
}

// MarshalJSON renders Elapsed as integer milliseconds.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	type alias Outcome
	return json.Marshal(struct {
		*alias
		ElapsedMS int64 `json:"elapsed_ms"`
	}{
		alias:     (*alias)(o),
		ElapsedMS: o.Elapsed.Milliseconds(),
	})
}

// Config tunes one installer instance.
type Config struct {
	Package    string
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Installer executes the install algorithm. The command runner and the
// inter-attempt sleep are injectable for tests.
type Installer struct {
	cfg   Config
	run   func(context.Context, execute.Options) (string, error)
	sleep func(time.Duration)
}

// New returns an Installer wired to the real command runner.
func New(cfg Config) *Installer {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Installer{cfg: cfg, run: execute.Run, sleep: time.Sleep}
}

// Install runs the strategy selection and installation. A report that did
// not pass its hard rules is refused with a classified precondition error
// before any external command runs. All later failures are folded into the
// Outcome; the driver decides what they mean for the process.
func (i *Installer) Install(rc *mpio.RuntimeContext, p *profile.DeviceProfile, report *preflight.CheckReport) (*Outcome, error) {
	logger := otelzap.Ctx(rc.Ctx)
	start := time.Now()

	// ASSESS
	if report == nil || !report.OverallPassed {
		return nil, mperr.NewPreconditionError(
			fmt.Sprintf("refusing to install %s: hard requirement failures present", i.cfg.Package))
	}

	logger.Info("Assessing current installation",
		zap.String("package", i.cfg.Package))

	if installed, v := i.probeInstalled(rc); installed {
		logger.Info("Package already present, skipping install",
			zap.String("package", i.cfg.Package),
			zap.String("version", v))
		return &Outcome{
			Strategy:  StrategySkipAlreadyPresent,
			Succeeded: true,
			Elapsed:   time.Since(start),
		}, nil
	}

	// INTERVENE
	outcome := &Outcome{Strategy: StrategyPrebuiltPackage}

	if detail := i.upgradePackaging(rc); detail != "" {
		outcome.Succeeded = false
		outcome.ErrorDetail = detail
		outcome.Elapsed = time.Since(start)
		logger.Error("Packaging tool upgrade failed, aborting install",
			zap.String("detail", detail))
		return outcome, nil
	}

	args := []string{"install", "--upgrade", "--prefer-binary", i.cfg.Package}

	logger.Info("Installing prebuilt package",
		zap.String("package", i.cfg.Package),
		zap.Strings("args", args),
		zap.Int("retry_bound", i.cfg.Retries))

	var lastErr error
	var lastOut string
	for attempt := 1; attempt <= i.cfg.Retries; attempt++ {
		outcome.Attempts = attempt
		lastOut, lastErr = i.run(rc.Ctx, execute.Options{
			Command: packageManager,
			Args:    args,
			Capture: true,
			Timeout: i.cfg.Timeout,
		})
		if lastErr == nil {
			break
		}

		logger.Warn("Install attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("retry_bound", i.cfg.Retries),
			zap.String("summary", mperr.ExtractSummary(lastOut, 2)),
			zap.Error(lastErr))

		if rc.Ctx.Err() != nil {
			break
		}
		if attempt < i.cfg.Retries {
			i.sleep(i.cfg.RetryDelay)
		}
	}

	// EVALUATE
	if lastErr != nil {
		outcome.Succeeded = false
		outcome.ErrorDetail = installFailureDetail(lastOut, lastErr)
		outcome.Elapsed = time.Since(start)
		logger.Error("Install failed after all attempts",
			zap.Int("attempts", outcome.Attempts),
			zap.String("detail", outcome.ErrorDetail))
		return outcome, nil
	}

	outcome.Succeeded = true
	logger.Info("Package installed",
		zap.String("package", i.cfg.Package),
		zap.Int("attempts", outcome.Attempts))

	if warning := i.installCompanion(rc, p); warning != "" {
		outcome.Warnings = append(outcome.Warnings, warning)
	}

	outcome.Elapsed = time.Since(start)
	return outcome, nil
}

// upgradePackaging refreshes pip, setuptools and wheel in one invocation.
// Runs once with no retries; a failure aborts the install outright because
// a stale pip is the usual cause of wheel-resolution failures on ARM.
func (i *Installer) upgradePackaging(rc *mpio.RuntimeContext) string {
	logger := otelzap.Ctx(rc.Ctx)
	logger.Info("Upgrading packaging tools", zap.Strings("tools", packagingTools))

	args := append([]string{"install", "--upgrade"}, packagingTools...)
	out, err := i.run(rc.Ctx, execute.Options{
		Command: packageManager,
		Args:    args,
		Capture: true,
		Timeout: i.cfg.Timeout,
	})
	if err == nil {
		return ""
	}
	return fmt.Sprintf("packaging tool upgrade failed: %s", installFailureDetail(out, err))
}

// probeInstalled asks the interpreter whether the target package already
// imports with a parseable version. Any probe failure means "not installed".
func (i *Installer) probeInstalled(rc *mpio.RuntimeContext) (bool, string) {
	module := verify.ImportName(i.cfg.Package)
	out, err := i.run(rc.Ctx, execute.Options{
		Command: interpreterBinary,
		Args:    []string{"-c", fmt.Sprintf("import %s; print(%s.__version__)", module, module)},
		Capture: true,
		Timeout: probeTimeout,
	})
	if err != nil {
		return false, ""
	}
	reported := strings.TrimSpace(out)
	if _, err := version.NewVersion(reported); err != nil {
		return false, ""
	}
	return true, reported
}

// installCompanion adds the OpenCV bindings the generated self-test uses.
// A camera-equipped board gets the full package, everything else the
// headless one. Failure never fails the stage.
func (i *Installer) installCompanion(rc *mpio.RuntimeContext, p *profile.DeviceProfile) string {
	logger := otelzap.Ctx(rc.Ctx)

	companion := companionHeadless
	if p != nil && p.HasCameraSubsystem {
		companion = companionChannels
	}

	logger.Info("Installing companion package", zap.String("package", companion))

	out, err := i.run(rc.Ctx, execute.Options{
		Command: packageManager,
		Args:    []string{"install", "--upgrade", "--prefer-binary", companion},
		Capture: true,
		Timeout: i.cfg.Timeout,
	})
	if err == nil {
		return ""
	}

	warning := fmt.Sprintf("companion %s install failed: %s",
		companion, installFailureDetail(out, err))
	logger.Warn("Companion install failed, continuing without it",
		zap.String("package", companion),
		zap.Error(err))
	return warning
}

func installFailureDetail(output string, err error) string {
	if strings.TrimSpace(output) == "" {
		return err.Error()
	}
	return mperr.ExtractSummary(output, 2)
}
