// pkg/xdg/xdg.go

package xdg

import (
	"os"
	"path/filepath"
)

const (
	// Permission modes (in octal)
	DirPermStandard        = 0755
	FilePermOwnerRWX       = 0700
	FilePermExecutable     = 0755
	FilePermStandard       = 0644
	FilePermOwnerReadWrite = 0600
)

func GetEnvOrDefault(envVar, fallback string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return fallback
}

// StatePath returns the XDG state location for an app file
// (e.g. ~/.local/state/mpsetup/mpsetup.log).
func StatePath(app, file string) string {
	base := GetEnvOrDefault("XDG_STATE_HOME", filepath.Join(os.Getenv("HOME"), ".local", "state"))
	return filepath.Join(base, app, file)
}

// EnsureDir creates the parent directory of path if it is missing.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), FilePermOwnerRWX)
}
