package source

import (
	"context"

	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/telemetry"
)

const (
	ErrUnavailable      = errors.ErrorCode("source_unavailable")
	ErrPermissionDenied = errors.ErrorCode("source_permission_denied")
	ErrTransientIO      = errors.ErrorCode("source_transient_io")
	ErrInvalidResponse  = errors.ErrorCode("source_invalid_response")
)

// Classify maps any adapter error onto one of the failure codes. Errors
// without a code are treated as transient platform failures.
func Classify(err error) errors.ErrorCode {
	for _, code := range []errors.ErrorCode{ErrUnavailable, ErrPermissionDenied, ErrInvalidResponse, ErrTransientIO} {
		if errors.HasCode(err, code) {
			return code
		}
	}

	return ErrTransientIO
}

// FailureOf converts an adapter error into the failure stored in a snapshot.
func FailureOf(err error) telemetry.Failure {
	code := Classify(err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		code = ErrTransientIO
	}

	return telemetry.Failure{Code: code, Reason: err.Error()}
}
