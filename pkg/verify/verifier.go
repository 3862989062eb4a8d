// pkg/verify/verifier.go

// Package verify exercises the installed package through short interpreter
// probes: import, version read, then a construct-and-release smoke check.
// The first failing probe short-circuits the rest. Verify always returns a
// Result and never propagates an error to the driver.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vision-edge/mpsetup/pkg/execute"
	"github.com/vision-edge/mpsetup/pkg/mperr"
	"github.com/vision-edge/mpsetup/pkg/mpio"
	"go.uber.org/zap"
)

const (
	interpreterBinary = "python3"

	// Cold imports on low-end boards routinely take tens of seconds.
	probeTimeout = 2 * time.Minute
)

// Result reports how far verification got.
type Result struct {
	ImportSucceeded   bool   `json:"import_succeeded"`
	ReportedVersion   string `json:"reported_version,omitempty"`
	SanityCheckPassed bool   `json:"sanity_check_passed"`
	ErrorDetail       string `json:"error_detail,omitempty"`
}

// FullySucceeded reports whether every probe passed.
func (r *Result) FullySucceeded() bool {
	return r.ImportSucceeded && r.SanityCheckPassed
}

// Verifier runs the probe sequence for one target package.
type Verifier struct {
	pkg string
	run func(context.Context, execute.Options) (string, error)
}

// New returns a Verifier for the given pip distribution name.
func New(pkg string) *Verifier {
	return &Verifier{pkg: pkg, run: execute.Run}
}

// Verify runs the ordered probes against whatever is currently installed.
func (v *Verifier) Verify(rc *mpio.RuntimeContext) *Result {
	logger := otelzap.Ctx(rc.Ctx)
	module := ImportName(v.pkg)
	res := &Result{}

	logger.Info("Verifying installed package",
		zap.String("package", v.pkg),
		zap.String("module", module))

	out, err := v.probe(rc, fmt.Sprintf("import %s", module))
	if err != nil {
		res.ErrorDetail = probeFailure("import", out, err)
		logger.Warn("Import probe failed", zap.String("detail", res.ErrorDetail))
		return res
	}
	res.ImportSucceeded = true

	out, err = v.probe(rc, fmt.Sprintf("import %s; print(%s.__version__)", module, module))
	if err != nil {
		res.ErrorDetail = probeFailure("version", out, err)
		logger.Warn("Version probe failed", zap.String("detail", res.ErrorDetail))
		return res
	}
	res.ReportedVersion = strings.TrimSpace(out)

	out, err = v.probe(rc, smokeSnippet(module))
	if err != nil {
		res.ErrorDetail = probeFailure("smoke check", out, err)
		logger.Warn("Smoke check failed", zap.String("detail", res.ErrorDetail))
		return res
	}
	res.SanityCheckPassed = true

	logger.Info("Verification passed",
		zap.String("package", v.pkg),
		zap.String("version", res.ReportedVersion))
	return res
}

func (v *Verifier) probe(rc *mpio.RuntimeContext, snippet string) (string, error) {
	return v.run(rc.Ctx, execute.Options{
		Command: interpreterBinary,
		Args:    []string{"-c", snippet},
		Capture: true,
		Timeout: probeTimeout,
	})
}

// smokeSnippet builds the construct-and-release check. For the default
// package it constructs a face detection solution; unfamiliar modules fall
// back to a bare reimport since no public constructor is known for them.
func smokeSnippet(module string) string {
	if module == "mediapipe" {
		return "import mediapipe as mp; " +
			"fd = mp.solutions.face_detection.FaceDetection(min_detection_confidence=0.5); " +
			"fd.close()"
	}
	return fmt.Sprintf("import %s as m; assert m is not None", module)
}

func probeFailure(stage, output string, err error) string {
	if strings.TrimSpace(output) == "" {
		return fmt.Sprintf("%s failed: %v", stage, err)
	}
	return fmt.Sprintf("%s failed: %s", stage, mperr.ExtractSummary(output, 2))
}

// ImportName maps a pip distribution name to its import module name.
// Variant suffixes ("mediapipe-rpi4") resolve to the base module.
func ImportName(pkg string) string {
	base := strings.ToLower(strings.TrimSpace(pkg))
	if i := strings.IndexByte(base, '-'); i > 0 {
		base = base[:i]
	}
	return strings.ReplaceAll(base, ".", "_")
}
