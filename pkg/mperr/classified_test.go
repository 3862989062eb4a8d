package mperr

import (
	"errors"
	"fmt"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCodeByCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		category Category
		want     int
	}{
		{name: "environment degrades", category: CategoryEnvironment, want: 0},
		{name: "requirement failure", category: CategoryRequirement, want: 1},
		{name: "installation failure", category: CategoryInstallation, want: 2},
		{name: "verification failure", category: CategoryVerification, want: 3},
		{name: "artifact failure", category: CategoryArtifact, want: 4},
		{name: "validation failure", category: CategoryValidation, want: 1},
		{name: "user cancelled", category: CategoryUser, want: 130},
		{name: "internal bug", category: CategoryInternal, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := &ClassifiedError{Category: tt.category, Message: "boom"}
			assert.Equal(t, tt.want, e.ExitCode())
		})
	}
}

func TestGetExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, GetExitCode(nil))
	assert.Equal(t, 1, GetExitCode(errors.New("plain")))
	assert.Equal(t, 2, GetExitCode(NewInstallationError("pip failed", nil)))
	assert.Equal(t, 3, GetExitCode(NewVerificationError("import failed", nil)))
	assert.Equal(t, 4, GetExitCode(NewArtifactError("write failed", nil)))

	// Classification survives wrapping.
	wrapped := cerr.Wrap(NewRequirementError("arch unsupported"), "check stage")
	assert.Equal(t, 1, GetExitCode(wrapped))

	expected := NewExpectedError(NewInstallationError("pip failed", nil))
	assert.Equal(t, 2, GetExitCode(expected))
}

func TestGetCategory(t *testing.T) {
	t.Parallel()

	cat, ok := GetCategory(NewPreconditionError("check report did not pass"))
	require.True(t, ok)
	assert.Equal(t, CategoryRequirement, cat)

	_, ok = GetCategory(errors.New("plain"))
	assert.False(t, ok)
}

func TestClassifiedErrorRendering(t *testing.T) {
	t.Parallel()

	err := NewInstallationError("package install failed", fmt.Errorf("network unreachable"),
		"Check your network connection",
		"Retry once connectivity is restored")

	msg := err.Error()
	assert.Contains(t, msg, "package install failed")
	assert.Contains(t, msg, "Cause: network unreachable")
	assert.Contains(t, msg, "How to fix:")
	assert.Contains(t, msg, "1. Check your network connection")
	assert.Contains(t, msg, "2. Retry once connectivity is restored")
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 1")
	err := NewInstallationError("pip failed", cause)
	assert.ErrorIs(t, err, cause)
}
