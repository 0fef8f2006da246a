// Package adapter defines the contract every external data source wrapper
// implements, the shared error taxonomy, and the single retry policy applied
// to adapter invocations. Higher-level orchestration (caching, dry-run,
// escalation) lives in the research services; adapters stay narrow.
package adapter

import (
	"context"

	"github.com/tiangong-ai/greenlit/internal/execution"
)

// Params is the flat, string-keyed parameter map handed to Execute. Flat
// strings keep adapter inputs directly composable with workflow templating.
type Params map[string]string

// Get returns the value for key or the provided default.
func (p Params) Get(key, fallback string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return fallback
}

// VerificationResult is the structured response of a Verify probe.
type VerificationResult struct {
	SourceID    string `json:"source_id"`
	OK          bool   `json:"ok"`
	Detail      string `json:"detail"`
	Remediation string `json:"remediation,omitempty"`
}

// Adapter wraps one external data source.
//
// Verify is a cheap, side-effect-light connectivity and credential probe; it
// must complete in bounded time and never perform the primary operation.
// Execute performs the primary operation and returns a typed evidence payload
// or an *Error. Adapters never retry internally and never swallow failures.
type Adapter interface {
	SourceID() string
	Verify(ctx context.Context, ec *execution.Context) VerificationResult
	Execute(ctx context.Context, ec *execution.Context, params Params) (any, error)
}
