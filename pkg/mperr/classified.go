// pkg/mperr/classified.go
//
// Error classification with per-stage exit codes. Every pipeline stage
// converts its internal failures into a classified error so the CLI can
// report remediation and exit with the code belonging to that stage.

package mperr

import (
	"errors"
	"fmt"
	"strings"
)

// Category classifies errors for exit-code mapping and reporting.
type Category int

const (
	// CategoryEnvironment - profiling could not determine a fact; degrades, never fatal (exit 0)
	CategoryEnvironment Category = iota
	// CategoryRequirement - a hard requirement rule failed (exit 1)
	CategoryRequirement
	// CategoryInstallation - package manager invocation failed or timed out after retries (exit 2)
	CategoryInstallation
	// CategoryVerification - import or smoke test failed (exit 3)
	CategoryVerification
	// CategoryArtifact - self-test artifact could not be written (exit 4)
	CategoryArtifact
	// CategoryValidation - bad flags or arguments (exit 1)
	CategoryValidation
	// CategoryUser - user cancelled or interrupted (exit 130)
	CategoryUser
	// CategoryInternal - bugs in mpsetup itself (exit 1)
	CategoryInternal
)

// ClassifiedError wraps an error with category and remediation info.
type ClassifiedError struct {
	Category    Category
	Message     string
	Cause       error
	Remediation []string
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Message)

	if e.Cause != nil && e.Cause.Error() != e.Message {
		sb.WriteString(fmt.Sprintf("\n\nCause: %v", e.Cause))
	}

	if len(e.Remediation) > 0 {
		sb.WriteString("\n\nHow to fix:")
		for i, step := range e.Remediation {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the process exit code for this error category.
func (e *ClassifiedError) ExitCode() int {
	switch e.Category {
	case CategoryEnvironment:
		return 0 // profiling degrades, never fails the run
	case CategoryRequirement:
		return 1
	case CategoryInstallation:
		return 2
	case CategoryVerification:
		return 3
	case CategoryArtifact:
		return 4
	case CategoryUser:
		return 130 // standard for SIGINT
	default:
		return 1
	}
}

// GetExitCode extracts an exit code from any error.
// Returns 0 for nil, the category code for classified errors, 1 for others.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.ExitCode()
	}

	return 1
}

// GetCategory reports the category of a classified error. The second return
// is false when err carries no classification.
func GetCategory(err error) (Category, bool) {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category, true
	}
	return CategoryInternal, false
}

// NewRequirementError creates an error for a failed hard requirement rule.
func NewRequirementError(message string, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryRequirement,
		Message:     message,
		Remediation: remediation,
	}
}

// NewPreconditionError marks a stage invoked without its preconditions met.
// Classified as a requirement failure: the unmet check report is the cause.
func NewPreconditionError(message string) error {
	return &ClassifiedError{
		Category: CategoryRequirement,
		Message:  message,
		Remediation: []string{
			"Run with --check-only to see which requirements failed",
		},
	}
}

// NewInstallationError creates an error for package-manager failures.
func NewInstallationError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryInstallation,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewVerificationError creates an error for import or smoke-test failures.
func NewVerificationError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryVerification,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewArtifactError creates an error for self-test script write failures.
func NewArtifactError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryArtifact,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewValidationError creates an error for bad flags or arguments.
func NewValidationError(message string, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryValidation,
		Message:     message,
		Remediation: remediation,
	}
}

// NewUserCancelledError creates an error for user-initiated cancellation.
func NewUserCancelledError(operation string) error {
	return &ClassifiedError{
		Category:    CategoryUser,
		Message:     fmt.Sprintf("Operation cancelled by user: %s", operation),
		Remediation: []string{"Run the command again to retry"},
	}
}

// NewInternalError creates an error for mpsetup bugs.
func NewInternalError(message string, cause error) error {
	return &ClassifiedError{
		Category: CategoryInternal,
		Message:  message,
		Cause:    cause,
		Remediation: []string{
			"This is likely a bug in mpsetup",
			"Re-run with --verbose and LOG_LEVEL=DEBUG to capture details",
		},
	}
}
