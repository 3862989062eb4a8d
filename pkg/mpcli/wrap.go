// pkg/mpcli/wrap.go

package mpcli

import (
	"context"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/vision-edge/mpsetup/pkg/logger"
	"github.com/vision-edge/mpsetup/pkg/mperr"
	"github.com/vision-edge/mpsetup/pkg/mpio"
	"go.uber.org/zap"
)

// Wrap adapts a RuntimeContext-taking function to a cobra RunE, adding
// panic recovery, lifecycle logging, and telemetry around the command body.
func Wrap(fn func(rc *mpio.RuntimeContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		logger.InitFallback()

		rc := mpio.NewContext(context.Background(), cmd.Name())
		defer rc.End(&err)

		defer func() {
			if r := recover(); r != nil {
				err = cerr.AssertionFailedf("panic: %v", r)
				rc.Log.Error("Panic recovered", zap.Any("panic", r))
			}
		}()

		err = fn(rc, cmd, args)
		if err != nil && !mperr.IsExpectedUserError(err) {
			err = cerr.WithStack(err)
		}
		return err
	}
}
