// pkg/config/config.go

// Package config resolves run options from flags and MPSETUP_* environment
// variables. No configuration file is read or written; the only persisted
// state this tool ever produces is the generated self-test artifact.
package config

import (
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-version"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vision-edge/mpsetup/pkg/mpcli"
	"github.com/vision-edge/mpsetup/pkg/mperr"
)

const EnvPrefix = "MPSETUP"

// Defaults mirror the upstream ARM setup behavior.
const (
	DefaultTestPath       = "./mediapipe_selftest.sh"
	DefaultPackage        = "mediapipe"
	DefaultMinVersion     = "3.9.0"
	DefaultRetries        = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultInstallTimeout = 10 * time.Minute
)

// Options is the fully resolved configuration for one run.
type Options struct {
	CheckOnly      bool
	VerifyOnly     bool
	CreateTestOnly bool

	TestPath   string
	Package    string
	MinVersion string

	Retries        int
	RetryDelay     time.Duration
	InstallTimeout time.Duration

	Verbose bool
	DryRun  bool
}

// RegisterFlags declares every run flag on cmd. Shared between the root
// command and tests so the flag set never drifts.
func RegisterFlags(cmd *cobra.Command) {
	mpcli.AddBoolFlag(cmd, "check-only", "", false, "Profile the host and evaluate requirements without installing anything")
	mpcli.AddBoolFlag(cmd, "verify-only", "", false, "Verify the currently installed package and exit")
	mpcli.AddBoolFlag(cmd, "create-test", "", false, "Emit the standalone self-test script and exit")
	mpcli.AddStringFlag(cmd, "test-path", "", DefaultTestPath, "Destination path for the generated self-test script", false)
	mpcli.AddStringFlag(cmd, "package", "", DefaultPackage, "Target package to install and verify", false)
	mpcli.AddStringFlag(cmd, "min-version", "", DefaultMinVersion, "Minimum interpreter version required by the hard rules", false)
	mpcli.AddIntFlag(cmd, "retries", "", DefaultRetries, "Install attempt bound before giving up")
	mpcli.AddDurationFlag(cmd, "retry-delay", "", DefaultRetryDelay, "Delay between install attempts")
	mpcli.AddDurationFlag(cmd, "timeout", "", DefaultInstallTimeout, "Budget for a single package manager invocation")
	mpcli.AddBoolFlag(cmd, "verbose", "v", false, "Enable debug-level console logging")
	mpcli.AddBoolFlag(cmd, "dry-run", "", false, "Log external commands instead of executing them")
}

// Load resolves options for cmd: flag values, then MPSETUP_* environment
// variables, then flag defaults. A .env file in the working directory is
// loaded best-effort first so container images can pre-seed the environment.
func Load(cmd *cobra.Command) (*Options, error) {
	_ = godotenv.Load()

	v := viper.New()
	mpcli.SetViperEnvPrefix(v, EnvPrefix)
	if err := mpcli.BindFlagsToViper(cmd, v); err != nil {
		return nil, cerr.Wrap(err, "bind flags")
	}

	opts := &Options{
		CheckOnly:      v.GetBool("check-only"),
		VerifyOnly:     v.GetBool("verify-only"),
		CreateTestOnly: v.GetBool("create-test"),
		TestPath:       v.GetString("test-path"),
		Package:        v.GetString("package"),
		MinVersion:     v.GetString("min-version"),
		Retries:        v.GetInt("retries"),
		RetryDelay:     v.GetDuration("retry-delay"),
		InstallTimeout: v.GetDuration("timeout"),
		Verbose:        v.GetBool("verbose"),
		DryRun:         v.GetBool("dry-run"),
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate checks cross-flag invariants and value ranges.
func (o *Options) Validate() error {
	var errs *multierror.Error

	modes := 0
	for _, enabled := range []bool{o.CheckOnly, o.VerifyOnly, o.CreateTestOnly} {
		if enabled {
			modes++
		}
	}
	if modes > 1 {
		errs = multierror.Append(errs, cerr.New("--check-only, --verify-only and --create-test are mutually exclusive"))
	}

	if o.Package == "" {
		errs = multierror.Append(errs, cerr.New("--package must not be empty"))
	}
	if o.TestPath == "" {
		errs = multierror.Append(errs, cerr.New("--test-path must not be empty"))
	}
	if _, err := version.NewVersion(o.MinVersion); err != nil {
		errs = multierror.Append(errs, cerr.Wrapf(err, "--min-version %q is not a semantic version", o.MinVersion))
	}
	if o.Retries < 1 {
		errs = multierror.Append(errs, cerr.Newf("--retries must be at least 1, got %d", o.Retries))
	}
	if o.RetryDelay < 0 {
		errs = multierror.Append(errs, cerr.New("--retry-delay must not be negative"))
	}
	if o.InstallTimeout <= 0 {
		errs = multierror.Append(errs, cerr.New("--timeout must be positive"))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return mperr.NewExpectedError(mperr.NewValidationError(err.Error(),
			"Run 'mpsetup --help' for the valid flag combinations."))
	}
	return nil
}

// MinInterpreterVersion parses MinVersion. Validate guarantees it parses for
// loaded options; the zero fallback keeps hand-built test options safe.
func (o *Options) MinInterpreterVersion() *version.Version {
	v, err := version.NewVersion(o.MinVersion)
	if err != nil {
		return version.Must(version.NewVersion(DefaultMinVersion))
	}
	return v
}
