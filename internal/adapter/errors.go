package adapter

import (
	"errors"
	"fmt"
)

// Kind classifies an adapter failure. The taxonomy is closed; services and
// the workflow runner branch on it rather than on error strings.
type Kind string

const (
	KindNetwork         Kind = "network"
	KindAuth            Kind = "auth"
	KindRateLimited     Kind = "rate_limited"
	KindNotFound        Kind = "not_found"
	KindUnsupported     Kind = "unsupported"
	KindInvalidResponse Kind = "invalid_response"
)

// Retryable reports whether the failure class is transient. Only network and
// rate-limit failures are; everything else fails immediately.
func (k Kind) Retryable() bool {
	return k == KindNetwork || k == KindRateLimited
}

// Error is the typed failure surfaced by every adapter. It is never
// swallowed; the caller decides whether it degrades a stage or aborts a run.
type Error struct {
	Kind     Kind
	SourceID string
	Err      error
	Hint     string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.SourceID, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.SourceID, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Remediation returns an actionable hint when one is known.
func (e *Error) Remediation() string {
	if e.Hint != "" {
		return e.Hint
	}
	switch e.Kind {
	case KindAuth:
		return fmt.Sprintf("check credentials for %s", e.SourceID)
	case KindRateLimited:
		return fmt.Sprintf("wait and retry, or configure credentials for %s to raise limits", e.SourceID)
	default:
		return ""
	}
}

// NewError builds a typed adapter error.
func NewError(kind Kind, sourceID string, err error) *Error {
	return &Error{Kind: kind, SourceID: sourceID, Err: err}
}

// NewErrorHint builds a typed adapter error carrying a remediation hint.
func NewErrorHint(kind Kind, sourceID string, err error, hint string) *Error {
	return &Error{Kind: kind, SourceID: sourceID, Err: err, Hint: hint}
}

// KindOf extracts the failure class from err, or "" when err is not an
// adapter error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// RemediationOf extracts the remediation hint from err when it carries one.
func RemediationOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Remediation()
	}
	return ""
}
