// Package testutil holds shared fixtures for registry, context, and adapter
// tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/catalog"
	"github.com/tiangong-ai/greenlit/internal/config"
	"github.com/tiangong-ai/greenlit/internal/execution"
)

// Descriptor returns a minimal active descriptor for one capability.
func Descriptor(id string, priority int, caps ...catalog.Capability) catalog.Descriptor {
	return catalog.Descriptor{
		ID:           id,
		Name:         id,
		Priority:     priority,
		Status:       catalog.StatusActive,
		Capabilities: caps,
	}
}

// Registry builds a registry from descriptors, failing the test on config
// errors.
func Registry(t *testing.T, descriptors ...catalog.Descriptor) *catalog.Registry {
	t.Helper()
	r, err := catalog.Load(descriptors)
	require.NoError(t, err)
	return r
}

// Context builds an execution context rooted in a temp dir.
func Context(t *testing.T, opts ...execution.Option) *execution.Context {
	t.Helper()
	all := append([]execution.Option{execution.WithCacheDir(t.TempDir())}, opts...)
	ec, err := execution.New(all...)
	require.NoError(t, err)
	return ec
}

// FastConfig is a config with retry backoff collapsed so failure paths run
// in microseconds.
func FastConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Retry.BaseDelay = 0
	cfg.Retry.Jitter = false
	return &cfg
}

// FakeAdapter is a scriptable adapter. FailFirst makes the first N Execute
// calls return Err before succeeding with Payload; with FailFirst zero and a
// non-nil Err every call fails.
type FakeAdapter struct {
	ID           string
	VerifyOK     bool
	VerifyDetail string
	Payload      any
	Err          error
	FailFirst    int

	mu    sync.Mutex
	calls int
}

func (f *FakeAdapter) SourceID() string { return f.ID }

func (f *FakeAdapter) Verify(ctx context.Context, ec *execution.Context) adapter.VerificationResult {
	return adapter.VerificationResult{SourceID: f.ID, OK: f.VerifyOK, Detail: f.VerifyDetail}
}

func (f *FakeAdapter) Execute(ctx context.Context, ec *execution.Context, params adapter.Params) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil && (f.FailFirst == 0 || f.calls <= f.FailFirst) {
		return nil, f.Err
	}
	return f.Payload, nil
}

// Calls reports how many times Execute ran.
func (f *FakeAdapter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
