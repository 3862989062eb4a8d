/* pkg/logger/paths.go */

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/vision-edge/mpsetup/pkg/xdg"
	"go.uber.org/zap/zapcore"
)

const appID = "mpsetup"

// PlatformLogPaths returns candidate log paths in order of priority.
func PlatformLogPaths() []string {
	switch runtime.GOOS {
	case "linux":
		return []string{
			"/var/log/mpsetup/mpsetup.log",         // best if writable (root or dedicated user)
			xdg.StatePath(appID, "mpsetup.log"),    // user-local fallback
			"./mpsetup.log",                        // current working dir
			filepath.Join(os.TempDir(), "mpsetup", "mpsetup.log"),
		}
	case "darwin":
		return []string{
			xdg.StatePath(appID, "mpsetup.log"),
			"./mpsetup.log",
			filepath.Join(os.TempDir(), "mpsetup", "mpsetup.log"),
		}
	default:
		return []string{"./mpsetup.log"}
	}
}

// EnsureLogPermissions creates the log directory and file with owner-only modes.
func EnsureLogPermissions(logFilePath string) error {
	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, xdg.FilePermOwnerRWX); err != nil {
		return err
	}

	if _, err := os.Stat(logFilePath); os.IsNotExist(err) {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY, xdg.FilePermOwnerReadWrite)
		if err != nil {
			return err
		}
		if err := file.Close(); err != nil {
			return err
		}
	}

	return os.Chmod(logFilePath, xdg.FilePermOwnerReadWrite)
}

// GetLogFileWriter opens an append-mode writer at the given path.
func GetLogFileWriter(path string) (zapcore.WriteSyncer, error) {
	if err := EnsureLogPermissions(path); err != nil {
		return nil, fmt.Errorf("log permission error: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, xdg.FilePermOwnerReadWrite)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return zapcore.AddSync(file), nil
}

// FindWritableLogPath returns the first usable log path for this platform.
func FindWritableLogPath() (string, error) {
	for _, path := range PlatformLogPaths() {
		if err := EnsureLogPermissions(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no writable log path found")
}
