package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level string
		want  zapcore.Level
	}{
		{name: "debug", level: "DEBUG", want: zapcore.DebugLevel},
		{name: "trace maps to debug", level: "TRACE", want: zapcore.DebugLevel},
		{name: "warn", level: "WARN", want: zapcore.WarnLevel},
		{name: "error", level: "ERROR", want: zapcore.ErrorLevel},
		{name: "fatal", level: "FATAL", want: zapcore.FatalLevel},
		{name: "empty defaults to info", level: "", want: zapcore.InfoLevel},
		{name: "garbage defaults to info", level: "LOUD", want: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseLogLevel(tt.level))
		})
	}
}

func TestEnsureLogPermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "mpsetup.log")
	require.NoError(t, EnsureLogPermissions(path))

	// Second call against the existing file must also succeed.
	require.NoError(t, EnsureLogPermissions(path))
}

func TestGetLogFileWriter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mpsetup.log")
	writer, err := GetLogFileWriter(path)
	require.NoError(t, err)

	_, err = writer.Write([]byte("{\"M\":\"hello\"}\n"))
	assert.NoError(t, err)
}
