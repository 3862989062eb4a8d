// pkg/pipeline/report.go

package pipeline

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/vision-edge/mpsetup/pkg/preflight"
	"golang.org/x/term"
)

// Status labels share one width so report columns line up.
const (
	labelOK   = "[ OK ]"
	labelWarn = "[WARN]"
	labelFail = "[FAIL]"
	labelSkip = "[SKIP]"
)

const timeRounding = 10 * time.Millisecond

// Reporter renders the human-readable run summary.
type Reporter struct {
	out   io.Writer
	plain bool
}

// NewReporter writes the summary to out, usually stdout. Labels are colored
// only when out is a terminal; pipes, files and buffers stay plain. Logs go
// to stderr so the summary is the only stdout payload.
func NewReporter(out io.Writer) *Reporter {
	plain := true
	if f, ok := out.(*os.File); ok {
		plain = !term.IsTerminal(int(f.Fd()))
	}
	return &Reporter{out: out, plain: plain}
}

// Render prints the per-stage summary for a finished run.
func (r *Reporter) Render(res *RunResult) {
	r.printf("\nmpsetup %s run %s\n", res.Mode, shortID(res.RunID))

	if res.Profile != nil {
		r.printf("\nHost profile\n")
		r.printf("  architecture  %s\n", res.Profile.ArchKey())
		r.printf("  os family     %s\n", res.Profile.OSFamily)
		r.printf("  device class  %s\n", res.Profile.DeviceClass)
		interp := res.Profile.InterpreterVersionString()
		if interp == "" {
			interp = "not detected"
		}
		r.printf("  interpreter   %s\n", interp)
		r.printf("  memory        %d MiB\n", res.Profile.TotalMemoryMiB)
		r.printf("  camera        %s\n", yesNo(res.Profile.HasCameraSubsystem))
	}

	if res.Report != nil {
		r.printf("\nRequirement checks\n")
		for _, rr := range res.Report.Results {
			r.printf("  %s %-24s %s\n", r.ruleLabel(rr), rr.RuleID, rr.Detail)
			if !rr.Passed && rr.Remediation != "" {
				r.printf("         fix: %s\n", rr.Remediation)
			}
		}
	}

	if res.Install != nil {
		r.printf("\nInstall\n")
		switch {
		case res.Install.Succeeded && res.Install.Attempts == 0:
			r.printf("  %s already present, package manager not invoked\n", r.green(labelSkip))
		case res.Install.Succeeded:
			r.printf("  %s %s succeeded after %d attempt(s) in %s\n",
				r.green(labelOK), res.Install.Strategy, res.Install.Attempts, res.Install.Elapsed.Round(timeRounding))
		case res.Install.Attempts == 0:
			r.printf("  %s %s failed: %s\n",
				r.red(labelFail), res.Install.Strategy, res.Install.ErrorDetail)
		default:
			r.printf("  %s %s failed after %d attempt(s): %s\n",
				r.red(labelFail), res.Install.Strategy, res.Install.Attempts, res.Install.ErrorDetail)
		}
		for _, w := range res.Install.Warnings {
			r.printf("  %s %s\n", r.yellow(labelWarn), w)
		}
	}

	if res.Verification != nil {
		r.printf("\nVerification\n")
		r.printf("  %s import\n", r.passFail(res.Verification.ImportSucceeded))
		if res.Verification.ReportedVersion != "" {
			r.printf("  %s version %s\n", r.green(labelOK), res.Verification.ReportedVersion)
		}
		r.printf("  %s smoke check\n", r.passFail(res.Verification.SanityCheckPassed))
		if res.Verification.ErrorDetail != "" {
			r.printf("         %s\n", res.Verification.ErrorDetail)
		}
	}

	if res.ArtifactPath != "" {
		r.printf("\nSelf-test script\n")
		r.printf("  %s written to %s\n", r.green(labelOK), res.ArtifactPath)
	}

	r.printf("\n")
	if res.ExitCode == 0 {
		r.printf("%s\n", r.green("Result: success"))
	} else {
		r.printf("%s\n", r.red(fmt.Sprintf("Result: failed (exit %d)", res.ExitCode)))
	}
}

func (r *Reporter) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Reporter) ruleLabel(rr preflight.RuleResult) string {
	if rr.Passed {
		return r.green(labelOK)
	}
	if rr.Severity == preflight.SeveritySoft {
		return r.yellow(labelWarn)
	}
	return r.red(labelFail)
}

func (r *Reporter) passFail(passed bool) string {
	if passed {
		return r.green(labelOK)
	}
	return r.red(labelFail)
}

func (r *Reporter) green(s string) string {
	if r.plain {
		return s
	}
	return color.GreenString("%s", s)
}

func (r *Reporter) yellow(s string) string {
	if r.plain {
		return s
	}
	return color.YellowString("%s", s)
}

func (r *Reporter) red(s string) string {
	if r.plain {
		return s
	}
	return color.RedString("%s", s)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
