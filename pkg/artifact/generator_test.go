// pkg/artifact/generator_test.go

package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vision-edge/mpsetup/pkg/mperr"
	"github.com/vision-edge/mpsetup/pkg/mpio"
	"github.com/vision-edge/mpsetup/pkg/profile"
	"mvdan.cc/sh/v3/syntax"
)

func testRC() *mpio.RuntimeContext {
	return &mpio.RuntimeContext{
		Ctx:        context.Background(),
		Attributes: map[string]string{"run_id": "run-1234"},
	}
}

func piProfile() *profile.DeviceProfile {
	return &profile.DeviceProfile{
		Architecture: profile.ArchARM64,
		DeviceClass:  profile.ClassRaspberryPi,
	}
}

func mustParsePOSIX(t *testing.T, script string) {
	t.Helper()
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	_, err := parser.Parse(strings.NewReader(script), "selftest.sh")
	require.NoError(t, err, "generated script must be valid POSIX sh")
}

func TestGenerateWritesExecutableScript(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "selftest.sh")
	gen := New("mediapipe", "3.9.0")

	require.NoError(t, gen.Generate(testRC(), piProfile(), dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	script := string(raw)
	mustParsePOSIX(t, script)

	assert.True(t, strings.HasPrefix(script, "#!/bin/sh"))
	assert.Contains(t, script, "raspberry-pi")
	assert.Contains(t, script, "run-1234")
	assert.Contains(t, script, "sys.version_info >= (3, 9)")
	assert.Contains(t, script, "face_detection.FaceDetection")
	assert.Contains(t, script, "solutions.hands.Hands")
	assert.Contains(t, script, "solutions.pose.Pose")
	assert.Contains(t, script, "camera probe")
	assert.Contains(t, script, "frame benchmark")
}

func TestGenerateLeavesNoTempLitter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "selftest.sh")
	require.NoError(t, New("mediapipe", "3.9.0").Generate(testRC(), piProfile(), dest))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "selftest.sh", entries[0].Name())
}

func TestGenerateOverwritesPreviousArtifact(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "selftest.sh")
	gen := New("mediapipe", "3.9.0")

	require.NoError(t, gen.Generate(testRC(), piProfile(), dest))

	generic := &profile.DeviceProfile{
		Architecture: profile.ArchARM32,
		ArchVariant:  "v7",
		DeviceClass:  profile.ClassGenericARM,
	}
	require.NoError(t, gen.Generate(testRC(), generic, dest))

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "generic-arm")
	assert.NotContains(t, string(raw), "raspberry-pi")
}

func TestGenerateCameraProbePerDeviceClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		class      profile.DeviceClass
		wantCamera bool
	}{
		{class: profile.ClassRaspberryPi, wantCamera: true},
		{class: profile.ClassCoral, wantCamera: true},
		{class: profile.ClassGenericARM, wantCamera: false},
		{class: profile.ClassNonARM, wantCamera: false},
		{class: profile.ClassUnknown, wantCamera: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			t.Parallel()

			dest := filepath.Join(t.TempDir(), "selftest.sh")
			p := &profile.DeviceProfile{Architecture: profile.ArchARM64, DeviceClass: tt.class}
			require.NoError(t, New("mediapipe", "3.9.0").Generate(testRC(), p, dest))

			raw, err := os.ReadFile(dest)
			require.NoError(t, err)
			script := string(raw)
			mustParsePOSIX(t, script)

			if tt.wantCamera {
				assert.Contains(t, script, "cv2.VideoCapture")
			} else {
				assert.NotContains(t, script, "cv2.VideoCapture")
			}
		})
	}
}

func TestGenerateGenericPackageSkipsSolutionProbes(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "selftest.sh")
	require.NoError(t, New("numpy", "3.9.0").Generate(testRC(), piProfile(), dest))

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	script := string(raw)
	mustParsePOSIX(t, script)

	assert.Contains(t, script, "import numpy")
	assert.NotContains(t, script, "face_detection")
	assert.NotContains(t, script, "frame benchmark")
}

func TestGenerateFailureKeepsDestinationAndCleansTemp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A directory at the destination path makes the final rename fail after
	// the temp file was already written.
	dest := filepath.Join(dir, "selftest.sh")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "occupied"), 0o755))

	err := New("mediapipe", "3.9.0").Generate(testRC(), piProfile(), dest)
	require.Error(t, err)
	assert.Equal(t, 4, mperr.GetExitCode(err))

	// The previous destination content is untouched.
	_, statErr := os.Stat(filepath.Join(dest, "occupied"))
	assert.NoError(t, statErr)

	// No temp litter remains.
	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.Equal(t, "selftest.sh", entries[0].Name())
}

func TestGenerateUnwritableParent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o644))

	err := New("mediapipe", "3.9.0").Generate(testRC(), piProfile(), filepath.Join(blocker, "selftest.sh"))
	require.Error(t, err)
	assert.Equal(t, 4, mperr.GetExitCode(err))
}

func TestVersionTuple(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "(3, 9)", versionTuple("3.9.0"))
	assert.Equal(t, "(3, 11)", versionTuple("3.11.2"))
	assert.Equal(t, "(3, 9)", versionTuple("garbage"))
}
