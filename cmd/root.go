// cmd/root.go

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vision-edge/mpsetup/pkg/config"
	"github.com/vision-edge/mpsetup/pkg/execute"
	"github.com/vision-edge/mpsetup/pkg/logger"
	"github.com/vision-edge/mpsetup/pkg/mpcli"
	"github.com/vision-edge/mpsetup/pkg/mperr"
	"github.com/vision-edge/mpsetup/pkg/mpio"
	"github.com/vision-edge/mpsetup/pkg/pipeline"
	"github.com/vision-edge/mpsetup/pkg/telemetry"
	"go.uber.org/zap"
)

// RootCmd is the single mpsetup command. The whole tool is one pipeline
// run shaped by flags, so there are no subcommands to register.
var RootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mpsetup",
		Short: "Provision and verify a MediaPipe-capable host environment",
		Long: `mpsetup inspects the host (architecture, OS, interpreter, memory,
camera), checks it against the package's requirements, installs the
package with bounded retries when it is missing, verifies the install
actually works, and writes a standalone self-test script for later runs.

Exit codes: 0 success, 1 requirement failure, 2 installation failure,
3 verification failure, 4 artifact failure, 130 user cancelled.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          mpcli.Wrap(runPipeline),
	}
	config.RegisterFlags(cmd)
	return cmd
}

func runPipeline(rc *mpio.RuntimeContext, cmd *cobra.Command, args []string) error {
	opts, err := config.Load(cmd)
	if err != nil {
		return err
	}

	if opts.Verbose {
		logger.EnableDebug()
		rc.Log = logger.GetLogger().Named("mpsetup")
	}
	execute.DefaultLogger = rc.Log
	if opts.DryRun {
		execute.DefaultDryRun = true
		rc.Log.Info("Dry-run mode: external commands are logged, not executed")
	}

	driver, err := pipeline.New(opts)
	if err != nil {
		return err
	}

	res, runErr := driver.Run(rc)
	if res != nil {
		pipeline.NewReporter(cmd.OutOrStdout()).Render(res)
	}
	return runErr
}

// Execute runs the root command and exits with the pipeline's exit code.
func Execute() {
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
		}
	}()

	if err := telemetry.Init("mpsetup"); err != nil {
		logger.L().Warn("Telemetry disabled", zap.Error(err))
	}

	if err := RootCmd.Execute(); err != nil {
		code := mperr.GetExitCode(err)
		if mperr.IsExpectedUserError(err) {
			logger.L().Warn("Run failed", zap.Int("exit_code", code), zap.Error(err))
		} else {
			logger.L().Error("Run failed", zap.Int("exit_code", code), zap.Error(err))
		}
		_ = logger.Sync()
		os.Exit(code)
	}
}
