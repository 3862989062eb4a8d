// pkg/config/config_test.go

package config

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vision-edge/mpsetup/pkg/mperr"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "mpsetup"}
	RegisterFlags(cmd)
	return cmd
}

func validOptions() *Options {
	return &Options{
		TestPath:       DefaultTestPath,
		Package:        DefaultPackage,
		MinVersion:     DefaultMinVersion,
		Retries:        DefaultRetries,
		RetryDelay:     DefaultRetryDelay,
		InstallTimeout: DefaultInstallTimeout,
	}
}

func TestLoadDefaults(t *testing.T) {
	opts, err := Load(newTestCommand())
	require.NoError(t, err)

	assert.False(t, opts.CheckOnly)
	assert.False(t, opts.VerifyOnly)
	assert.False(t, opts.CreateTestOnly)
	assert.Equal(t, DefaultTestPath, opts.TestPath)
	assert.Equal(t, DefaultPackage, opts.Package)
	assert.Equal(t, DefaultMinVersion, opts.MinVersion)
	assert.Equal(t, DefaultRetries, opts.Retries)
	assert.Equal(t, DefaultRetryDelay, opts.RetryDelay)
	assert.Equal(t, DefaultInstallTimeout, opts.InstallTimeout)
	assert.False(t, opts.Verbose)
	assert.False(t, opts.DryRun)
}

func TestLoadFlagValues(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--check-only",
		"--retries", "5",
		"--retry-delay", "500ms",
		"--package", "mediapipe-rpi4",
	}))

	opts, err := Load(cmd)
	require.NoError(t, err)

	assert.True(t, opts.CheckOnly)
	assert.Equal(t, 5, opts.Retries)
	assert.Equal(t, 500*time.Millisecond, opts.RetryDelay)
	assert.Equal(t, "mediapipe-rpi4", opts.Package)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MPSETUP_TEST_PATH", "/opt/tests/selftest.sh")
	t.Setenv("MPSETUP_TIMEOUT", "1m")

	opts, err := Load(newTestCommand())
	require.NoError(t, err)

	assert.Equal(t, "/opt/tests/selftest.sh", opts.TestPath)
	assert.Equal(t, time.Minute, opts.InstallTimeout)
}

func TestLoadFlagBeatsEnv(t *testing.T) {
	t.Setenv("MPSETUP_RETRIES", "9")

	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--retries", "2"}))

	opts, err := Load(cmd)
	require.NoError(t, err)
	assert.Equal(t, 2, opts.Retries)
}

func TestValidateModeExclusivity(t *testing.T) {
	t.Parallel()

	opts := validOptions()
	opts.CheckOnly = true
	opts.VerifyOnly = true

	err := opts.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
	assert.Equal(t, 1, mperr.GetExitCode(err))
	assert.True(t, mperr.IsExpectedUserError(err), "flag mistakes must not print stack traces")
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Options)
		want   string
	}{
		{name: "empty package", mutate: func(o *Options) { o.Package = "" }, want: "--package"},
		{name: "empty test path", mutate: func(o *Options) { o.TestPath = "" }, want: "--test-path"},
		{name: "garbage min version", mutate: func(o *Options) { o.MinVersion = "not-a-version" }, want: "--min-version"},
		{name: "zero retries", mutate: func(o *Options) { o.Retries = 0 }, want: "--retries"},
		{name: "negative delay", mutate: func(o *Options) { o.RetryDelay = -time.Second }, want: "--retry-delay"},
		{name: "zero timeout", mutate: func(o *Options) { o.InstallTimeout = 0 }, want: "--timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := validOptions()
			tt.mutate(opts)

			err := opts.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateAggregatesProblems(t *testing.T) {
	t.Parallel()

	opts := validOptions()
	opts.Package = ""
	opts.Retries = 0

	err := opts.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--package")
	assert.Contains(t, err.Error(), "--retries")
}

func TestMinInterpreterVersion(t *testing.T) {
	t.Parallel()

	opts := validOptions()
	opts.MinVersion = "3.11.0"
	assert.Equal(t, "3.11.0", opts.MinInterpreterVersion().String())

	opts.MinVersion = "garbage"
	assert.Equal(t, DefaultMinVersion, opts.MinInterpreterVersion().String())
}
