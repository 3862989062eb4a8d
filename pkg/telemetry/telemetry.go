// pkg/telemetry/telemetry.go
package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vision-edge/mpsetup/pkg/xdg"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const appID = "mpsetup"

var tracer trace.Tracer = noop.NewTracerProvider().Tracer(appID)

// Init configures OpenTelemetry; call this early in main().
// Tracing stays a no-op unless explicitly enabled, so the tool never
// writes span files on machines that did not opt in.
func Init(service string) error {
	if !IsEnabled() {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		tracer = tp.Tracer(service)
		return nil
	}

	telemetryFile := xdg.StatePath(appID, "telemetry.jsonl")
	if err := xdg.EnsureDir(telemetryFile); err != nil {
		return cerr.Wrap(err, "failed to create telemetry directory")
	}

	file, err := os.OpenFile(telemetryFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, xdg.FilePermStandard)
	if err != nil {
		return cerr.Wrap(err, "failed to open telemetry file")
	}

	// Stdout exporter pointed at a local JSONL file, one span per line.
	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(file),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		file.Close()
		return cerr.Wrap(err, "failed to create file exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(
			sdkresource.NewWithAttributes(
				semconv.SchemaURL,
				attribute.String("service.name", service),
				attribute.String("host.name", hostname()),
				attribute.String("telemetry.id", AnonID()),
			),
		),
	)

	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(service)
	return nil
}

// Start a telemetry span with optional attributes.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// IsEnabled reports whether span export was opted into, either via the
// MPSETUP_TELEMETRY env var or a state-file marker.
func IsEnabled() bool {
	if v := os.Getenv("MPSETUP_TELEMETRY"); v == "1" || strings.EqualFold(v, "true") {
		return true
	}
	_, err := os.Stat(xdg.StatePath(appID, "telemetry_on"))
	return err == nil
}

// AnonID returns a stable anonymous identifier for this installation.
func AnonID() string {
	path := xdg.StatePath(appID, "telemetry_id")

	if data, err := os.ReadFile(path); err == nil {
		return strings.TrimSpace(string(data))
	}

	id := "anon-" + uuid.New().String()
	_ = os.MkdirAll(filepath.Dir(path), xdg.FilePermOwnerRWX)
	_ = os.WriteFile(path, []byte(id), xdg.FilePermOwnerReadWrite)

	return id
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
