// pkg/artifact/generator.go

// Package artifact renders the standalone self-test script. The rendered
// script is syntax-checked before anything touches the destination, and the
// write is temp-file-then-rename so the destination only ever holds a
// complete old or complete new script.
package artifact

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vision-edge/mpsetup/pkg/mperr"
	"github.com/vision-edge/mpsetup/pkg/mpio"
	"github.com/vision-edge/mpsetup/pkg/profile"
	"github.com/vision-edge/mpsetup/pkg/verify"
	"github.com/vision-edge/mpsetup/pkg/xdg"
	"go.uber.org/zap"
	"mvdan.cc/sh/v3/syntax"
)

//go:embed templates/*
var templates embed.FS

const templateName = "selftest.sh.tmpl"

// Generator renders self-test scripts for one target package.
type Generator struct {
	pkg        string
	minVersion string
	tmpl       *template.Template
}

// New returns a Generator for the given package and minimum interpreter
// version.
func New(pkg, minVersion string) *Generator {
	return &Generator{
		pkg:        pkg,
		minVersion: minVersion,
		tmpl: template.Must(template.New(templateName).
			ParseFS(templates, "templates/"+templateName)),
	}
}

type templateData struct {
	Package       string
	Module        string
	DeviceClass   string
	Arch          string
	GeneratedAt   string
	RunID         string
	MinVersion    string
	VersionTuple  string
	IsMediaPipe   bool
	IncludeCamera bool
}

// Generate renders, validates and atomically writes the self-test script.
// Re-running always overwrites the previous script in one rename.
func (g *Generator) Generate(rc *mpio.RuntimeContext, p *profile.DeviceProfile, destPath string) error {
	logger := otelzap.Ctx(rc.Ctx)

	// ASSESS
	module := verify.ImportName(g.pkg)
	data := templateData{
		Package:       g.pkg,
		Module:        module,
		DeviceClass:   string(p.DeviceClass),
		Arch:          p.ArchKey(),
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		RunID:         runID(rc),
		MinVersion:    g.minVersion,
		VersionTuple:  versionTuple(g.minVersion),
		IsMediaPipe:   module == "mediapipe",
		IncludeCamera: p.DeviceClass == profile.ClassRaspberryPi || p.DeviceClass == profile.ClassCoral,
	}

	var rendered bytes.Buffer
	if err := g.tmpl.Execute(&rendered, data); err != nil {
		return mperr.NewArtifactError("failed to render self-test script", err)
	}

	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(bytes.NewReader(rendered.Bytes()), filepath.Base(destPath)); err != nil {
		return mperr.NewArtifactError("rendered self-test script is not valid sh", err)
	}

	// INTERVENE
	logger.Info("Writing self-test script",
		zap.String("path", destPath),
		zap.String("device_class", data.DeviceClass),
		zap.Int("size", rendered.Len()))

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, xdg.DirPermStandard); err != nil {
		return mperr.NewArtifactError(
			fmt.Sprintf("cannot create destination directory %s", dir), err,
			"Choose a writable destination with --test-path.")
	}

	tmp, err := os.CreateTemp(dir, ".selftest-*.sh")
	if err != nil {
		return mperr.NewArtifactError(
			fmt.Sprintf("cannot create temporary file in %s", dir), err,
			"Choose a writable destination with --test-path.")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(rendered.Bytes()); err != nil {
		tmp.Close()
		return mperr.NewArtifactError("failed to write self-test script", err)
	}
	if err := tmp.Chmod(xdg.FilePermExecutable); err != nil {
		tmp.Close()
		return mperr.NewArtifactError("failed to mark self-test script executable", err)
	}
	if err := tmp.Close(); err != nil {
		return mperr.NewArtifactError("failed to flush self-test script", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return mperr.NewArtifactError(
			fmt.Sprintf("failed to move self-test script into place at %s", destPath), err,
			"Choose a writable destination with --test-path.")
	}

	// EVALUATE
	logger.Info("Self-test script written",
		zap.String("path", destPath),
		zap.String("run_id", data.RunID))
	return nil
}

func runID(rc *mpio.RuntimeContext) string {
	if id := rc.Attributes["run_id"]; id != "" {
		return id
	}
	return uuid.New().String()
}

// versionTuple renders "3.9.0" as the Python comparison tuple "(3, 9)".
func versionTuple(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return "(3, 9)"
	}
	return fmt.Sprintf("(%s, %s)", parts[0], parts[1])
}
