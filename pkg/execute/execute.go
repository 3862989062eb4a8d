// pkg/execute/execute.go

package execute

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/vision-edge/mpsetup/pkg/mperr"
	"github.com/vision-edge/mpsetup/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Options configures a single external command invocation.
type Options struct {
	Command string
	Args    []string
	Dir     string

	// Capture returns combined stdout+stderr from Run. When false, Run
	// still logs a summary but returns an empty string.
	Capture bool

	// Timeout bounds the whole invocation including retries. Zero means
	// the 30s default.
	Timeout time.Duration

	// Retries is the total attempt bound; values below 1 mean one attempt.
	// Delay is slept between attempts.
	Retries int
	Delay   time.Duration

	DryRun bool
	Logger *zap.Logger
}

// DefaultLogger is used when Options.Logger is nil. Set by the CLI at startup.
var DefaultLogger *zap.Logger

// DefaultDryRun forces dry-run mode for every invocation in this process.
var DefaultDryRun bool

const defaultTimeout = 30 * time.Second

// Run executes a command with structured logging and a bounded retry loop.
// Output is captured to a buffer, never streamed to the caller's stdout.
func Run(ctx context.Context, opts Options) (string, error) {
	cmdStr := buildCommandString(opts.Command, opts.Args...)

	logger := opts.Logger
	if logger == nil {
		logger = DefaultLogger
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rc, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rc, span := telemetry.Start(rc, "execute.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")),
	)

	if opts.DryRun || DefaultDryRun {
		logger.Info("Dry run mode - command not executed", zap.String("command", cmdStr))
		return "", nil
	}

	logger.Debug("Starting execution", zap.String("command", cmdStr))

	retries := max(1, opts.Retries)

	var output string
	var err error

	for i := 1; i <= retries; i++ {
		cmd := exec.CommandContext(rc, opts.Command, opts.Args...)
		if opts.Dir != "" {
			cmd.Dir = opts.Dir
		}

		var buf bytes.Buffer
		cmd.Stdout = &buf
		cmd.Stderr = &buf

		err = cmd.Run()
		output = buf.String()

		if err == nil {
			logger.Debug("Execution succeeded", zap.String("command", cmdStr), zap.Int("attempt", i))
			break
		}

		summary := mperr.ExtractSummary(output, 2)
		span.RecordError(err)
		logger.Warn("Execution failed",
			zap.Error(err),
			zap.Int("attempt", i),
			zap.String("command", cmdStr),
			zap.String("summary", summary),
		)

		if rc.Err() != nil {
			break
		}
		if i < retries {
			time.Sleep(opts.Delay)
		}
	}

	if err != nil {
		return output, cerr.Wrapf(err, "command failed after %d attempts", retries)
	}

	if opts.Capture {
		return output, nil
	}
	return "", nil
}

// RunSimple executes a command with minimal options, discarding output.
func RunSimple(ctx context.Context, cmd string, args ...string) error {
	_, err := Run(ctx, Options{
		Command: cmd,
		Args:    args,
	})
	return err
}

// IsCommandAvailable reports whether a binary resolves on PATH.
func IsCommandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func buildCommandString(command string, args ...string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}
