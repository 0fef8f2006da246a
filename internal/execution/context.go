// Package execution carries the process-scoped execution context: which
// sources are usable, where the cache lives, which secrets are available, and
// whether the run is a dry run. The context is built once per CLI invocation
// and passed explicitly through every call chain; there is no global.
package execution

import (
	"fmt"
	"os"
	"path/filepath"
)

// Context is the shared execution state for one invocation.
//
// The enabled set is the post-check allowlist of usable sources. An empty set
// means every registered source is implicitly enabled. Mutation happens only
// through WithSources, which copies; two in-flight stages can never observe a
// torn state.
type Context struct {
	enabled map[string]struct{}

	CacheDir        string
	DryRun          bool
	BackgroundTasks bool
	Tags            map[string]string

	secrets Secrets
}

// Option configures a Context during construction.
type Option func(*Context)

// WithCacheDir sets the cache root. The directory is created by New.
func WithCacheDir(dir string) Option {
	return func(c *Context) { c.CacheDir = dir }
}

// WithDryRun toggles dry-run mode.
func WithDryRun(dryRun bool) Option {
	return func(c *Context) { c.DryRun = dryRun }
}

// WithEnabledSources seeds the allowlist.
func WithEnabledSources(ids ...string) Option {
	return func(c *Context) {
		c.enabled = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			c.enabled[id] = struct{}{}
		}
	}
}

// WithSecrets attaches the secret bundle.
func WithSecrets(s Secrets) Option {
	return func(c *Context) { c.secrets = s }
}

// WithTag attaches an observability tag surfaced in logs and traces.
func WithTag(key, value string) Option {
	return func(c *Context) {
		if c.Tags == nil {
			c.Tags = make(map[string]string)
		}
		c.Tags[key] = value
	}
}

// New builds a Context and ensures the cache directory exists.
func New(opts ...Option) (*Context, error) {
	c := &Context{
		CacheDir: filepath.Join(".cache", "greenlit"),
		secrets:  Secrets{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := os.MkdirAll(c.CacheDir, 0750); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", c.CacheDir, err)
	}
	return c, nil
}

// IsEnabled reports whether a source may be used. An empty allowlist enables
// everything so a bare invocation still works against the full catalogue.
func (c *Context) IsEnabled(sourceID string) bool {
	if len(c.enabled) == 0 {
		return true
	}
	_, ok := c.enabled[sourceID]
	return ok
}

// EnabledSources returns the explicit allowlist. Empty means "all".
func (c *Context) EnabledSources() []string {
	out := make([]string, 0, len(c.enabled))
	for id := range c.enabled {
		out = append(out, id)
	}
	return out
}

// WithSources returns a copy of the context with a different allowlist.
// The receiver is left untouched; this is the only sanctioned way to scope
// source availability, preventing cross-stage leakage.
func (c *Context) WithSources(ids ...string) *Context {
	clone := *c
	clone.enabled = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		clone.enabled[id] = struct{}{}
	}
	clone.Tags = make(map[string]string, len(c.Tags))
	for k, v := range c.Tags {
		clone.Tags[k] = v
	}
	return &clone
}

// ResolveSecret looks up a credential by key.
func (c *Context) ResolveSecret(key string) (string, error) {
	return c.secrets.Resolve(key)
}

// HasSecret reports whether a credential is present without exposing it.
func (c *Context) HasSecret(key string) bool {
	_, err := c.secrets.Resolve(key)
	return err == nil
}
