// Package apperrors defines the error taxonomy shared across the service.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionNotFound means no connection exists for the requested
	// (project, source) pair - the user must initiate the OAuth flow.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrResourceNotSelected means the connection exists but no upstream
	// resource (property, account, channel, page) has been chosen yet.
	ErrResourceNotSelected = errors.New("connection pending resource selection")

	// ErrOAuthExchangeFailed means the authorization code exchange was
	// rejected upstream (bad or expired code, mismatched redirect URI).
	ErrOAuthExchangeFailed = errors.New("oauth code exchange failed")

	// ErrTokenRefreshFailed means the refresh token itself is invalid or
	// revoked. The user must re-authorize from scratch.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// ErrReportFetchFailed marks unrecoverable upstream report errors.
	// Use NewReportFetchError to attach the source and upstream message.
	ErrReportFetchFailed = errors.New("report fetch failed")

	// ErrPersistenceFailed marks a non-fatal credential write-back failure.
	// Callers log it; it never fails the in-flight request.
	ErrPersistenceFailed = errors.New("persistence failed")
)

// ReportFetchError wraps an upstream report error with the source it came
// from, so the presentation layer can show a human-readable reason.
type ReportFetchError struct {
	Source string
	Err    error
}

// NewReportFetchError builds a ReportFetchError for the given source.
func NewReportFetchError(source string, err error) *ReportFetchError {
	return &ReportFetchError{Source: source, Err: err}
}

func (e *ReportFetchError) Error() string {
	return fmt.Sprintf("%s: report fetch failed: %v", e.Source, e.Err)
}

// Unwrap chains to both the sentinel and the underlying upstream error.
func (e *ReportFetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrReportFetchFailed) match.
func (e *ReportFetchError) Is(target error) bool {
	return target == ErrReportFetchFailed
}
