// Package research is the facade the CLI and the workflow runner call
// capabilities through. It owns candidate resolution, the cache tiers,
// dry-run short-circuiting, retry, and escalation across sources. Nothing
// above this package talks to an adapter directly.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/cachemanager"
	"github.com/tiangong-ai/greenlit/internal/catalog"
	"github.com/tiangong-ai/greenlit/internal/config"
	"github.com/tiangong-ai/greenlit/internal/evidence"
	"github.com/tiangong-ai/greenlit/internal/execution"
	"github.com/tiangong-ai/greenlit/internal/log"
	"github.com/tiangong-ai/greenlit/internal/tracing"
)

const verifyTimeout = 15 * time.Second

// Outcome is the result of one capability call. NoSource is an expected
// answer, not a failure: callers decide how to proceed based on their
// fallback policy.
type Outcome struct {
	Capability  catalog.Capability `json:"capability"`
	SourceID    string             `json:"source_id,omitempty"`
	NoSource    bool               `json:"no_source,omitempty"`
	Planned     bool               `json:"planned,omitempty"`
	Cached      bool               `json:"cached,omitempty"`
	Payload     json.RawMessage    `json:"payload,omitempty"`
	Remediation string             `json:"remediation,omitempty"`
}

// Decode unmarshals the payload into out.
func (o Outcome) Decode(out any) error {
	if o.NoSource || len(o.Payload) == 0 {
		return fmt.Errorf("outcome for %s carries no payload", o.Capability)
	}
	return json.Unmarshal(o.Payload, out)
}

type invokeInput struct {
	ad      adapter.Adapter
	ec      *execution.Context
	params  adapter.Params
	invoked *bool
}

// Services routes capability calls to data sources. Bound to one execution
// context for its lifetime, like the context it is built from.
type Services struct {
	registry *catalog.Registry
	adapters map[string]adapter.Adapter
	ec       *execution.Context
	retry    adapter.RetryPolicy
	cacheCfg config.CacheConfig
	caches   map[catalog.Capability]*cachemanager.ReadThroughCache[string, json.RawMessage, invokeInput]
	disks    map[catalog.Capability]*cachemanager.DiskCacheManager[string, json.RawMessage]
	tracer   trace.Tracer
}

// NewServices builds the facade. The disk cache tier lives under the
// execution context's cache dir, one subdirectory per capability; disk setup
// failures degrade to memory-only caching rather than failing the run.
func NewServices(
	ec *execution.Context,
	registry *catalog.Registry,
	adapters map[string]adapter.Adapter,
	cfg *config.Config,
	tp *tracing.Provider,
) *Services {
	s := &Services{
		registry: registry,
		adapters: adapters,
		ec:       ec,
		retry: adapter.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			Multiplier:  cfg.Retry.Multiplier,
			Jitter:      cfg.Retry.Jitter,
			Deadline:    cfg.Retry.Deadline,
		},
		cacheCfg: cfg.Cache,
		caches:   make(map[catalog.Capability]*cachemanager.ReadThroughCache[string, json.RawMessage, invokeInput]),
		disks:    make(map[catalog.Capability]*cachemanager.DiskCacheManager[string, json.RawMessage]),
		tracer:   tp.Tracer(),
	}

	skip := cfg.Cache.Disabled
	for _, capability := range catalog.Capabilities() {
		memory := cachemanager.NewInMemoryCacheManager[string, json.RawMessage](
			string(capability), cfg.Cache.TTLFor(string(capability)), 10*time.Minute)

		var disk cachemanager.CacheManager[string, json.RawMessage]
		d, err := cachemanager.NewDiskCacheManager[string, json.RawMessage](ec.CacheDir, string(capability))
		if err != nil {
			log.Warn(log.CatCache, "disk cache unavailable, memory only",
				"capability", capability, "error", err)
		} else {
			disk = d
			s.disks[capability] = d
		}

		s.caches[capability] = cachemanager.NewReadThroughCache(
			memory, disk, s.invokeOnce, skip)
	}
	return s
}

// invokeOnce is the read-through fetch: one adapter invocation under the
// retry policy, result marshalled for the cache tiers.
func (s *Services) invokeOnce(ctx context.Context, in invokeInput) (json.RawMessage, error) {
	*in.invoked = true
	payload, err := adapter.Invoke(ctx, s.retry, in.ad.SourceID(), func(ctx context.Context) (any, error) {
		return in.ad.Execute(ctx, in.ec, in.params)
	})
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, adapter.NewError(adapter.KindInvalidResponse, in.ad.SourceID(),
			fmt.Errorf("marshal payload: %w", err))
	}
	return raw, nil
}

// Call resolves a capability to a source and executes it.
//
// Candidates come back from the registry in priority order; blocked sources
// and sources outside the allowlist are filtered, as are sources with no
// registered adapter. With no eligible candidate the call reports NoSource.
// Under dry-run the first eligible candidate is reported as a planned call
// and no adapter runs. Escalation to the next candidate happens only after
// transient exhaustion; terminal failures surface immediately.
func (s *Services) Call(ctx context.Context, capability catalog.Capability, params adapter.Params) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanServiceCall, trace.WithAttributes(
		attribute.String(tracing.AttrCapability, string(capability)),
		attribute.Bool(tracing.AttrDryRun, s.ec.DryRun),
	))
	defer span.End()

	eligible, skipped := s.eligibleCandidates(capability)
	if len(eligible) == 0 {
		log.Info(log.CatResearch, "no enabled source for capability",
			"capability", capability, "skipped", strings.Join(skipped, ","))
		return Outcome{
			Capability:  capability,
			NoSource:    true,
			Remediation: noSourceRemediation(capability, skipped),
		}, nil
	}

	if s.ec.DryRun {
		d := eligible[0]
		planned := evidence.PlannedCall{
			SourceID:   d.ID,
			Capability: string(capability),
			Params:     params,
		}
		raw, _ := json.Marshal(planned)
		span.SetAttributes(attribute.String(tracing.AttrSourceID, d.ID))
		return Outcome{Capability: capability, SourceID: d.ID, Planned: true, Payload: raw}, nil
	}

	var lastErr error
	for _, d := range eligible {
		ad := s.adapters[d.ID]
		key := cachemanager.NormalizedKey(d.ID, params)
		invoked := false

		raw, err := s.caches[capability].Get(ctx, key, invokeInput{
			ad:      ad,
			ec:      s.ec,
			params:  params,
			invoked: &invoked,
		}, s.cacheCfg.TTLFor(string(capability)))
		if err == nil {
			span.SetAttributes(
				attribute.String(tracing.AttrSourceID, d.ID),
				attribute.Bool(tracing.AttrCacheHit, !invoked),
			)
			log.Debug(log.CatResearch, "capability call succeeded",
				"capability", capability, "source", d.ID, "cached", !invoked)
			return Outcome{Capability: capability, SourceID: d.ID, Cached: !invoked, Payload: raw}, nil
		}

		lastErr = err
		kind := adapter.KindOf(err)
		span.SetAttributes(attribute.String(tracing.AttrErrorKind, string(kind)))
		if !kind.Retryable() {
			log.ErrorErr(log.CatResearch, "capability call failed", err,
				"capability", capability, "source", d.ID, "kind", kind)
			return Outcome{Capability: capability, SourceID: d.ID, Remediation: adapter.RemediationOf(err)}, err
		}
		log.Warn(log.CatResearch, "source exhausted retries, escalating",
			"capability", capability, "source", d.ID, "kind", kind)
	}

	return Outcome{Capability: capability, Remediation: adapter.RemediationOf(lastErr)}, lastErr
}

func (s *Services) eligibleCandidates(capability catalog.Capability) (eligible []catalog.Descriptor, skipped []string) {
	for _, d := range s.registry.CandidatesFor(capability) {
		switch {
		case d.Status == catalog.StatusBlocked:
			skipped = append(skipped, d.ID+" (blocked)")
		case !s.ec.IsEnabled(d.ID):
			skipped = append(skipped, d.ID+" (not enabled)")
		case s.adapters[d.ID] == nil:
			skipped = append(skipped, d.ID+" (no adapter)")
		case d.RequiresCredentials && !s.ec.HasSecret(d.CredentialKey):
			skipped = append(skipped, d.ID+" (missing credential "+d.CredentialKey+")")
		default:
			if d.Status == catalog.StatusDeprecated {
				log.Warn(log.CatResearch, "using deprecated source", "source", d.ID)
			}
			eligible = append(eligible, d)
		}
	}
	return eligible, skipped
}

func noSourceRemediation(capability catalog.Capability, skipped []string) string {
	if len(skipped) == 0 {
		return fmt.Sprintf("no source in the catalogue provides %s", capability)
	}
	return fmt.Sprintf("all sources for %s were skipped: %s; enable one with --source or fix its configuration",
		capability, strings.Join(skipped, ", "))
}

// Verify probes every registered source. Blocked sources are reported without
// contacting anything; sources without an adapter are flagged as unwired.
func (s *Services) Verify(ctx context.Context) []adapter.VerificationResult {
	descriptors := s.registry.List()
	results := make([]adapter.VerificationResult, 0, len(descriptors))
	for _, d := range descriptors {
		results = append(results, s.verifyOne(ctx, d))
	}
	return results
}

// VerifySource probes a single source by id.
func (s *Services) VerifySource(ctx context.Context, id string) (adapter.VerificationResult, error) {
	d, err := s.registry.Describe(id)
	if err != nil {
		return adapter.VerificationResult{}, err
	}
	return s.verifyOne(ctx, d), nil
}

func (s *Services) verifyOne(ctx context.Context, d catalog.Descriptor) adapter.VerificationResult {
	if d.Status == catalog.StatusBlocked {
		return adapter.VerificationResult{
			SourceID:    d.ID,
			Detail:      "blocked: " + d.BlockReason,
			Remediation: "remove the block in the source catalogue once resolved",
		}
	}
	ad, ok := s.adapters[d.ID]
	if !ok {
		return adapter.VerificationResult{
			SourceID: d.ID,
			Detail:   "no adapter registered for this source",
		}
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	return ad.Verify(ctx, s.ec)
}

// StalePayload probes the disk tier for any stored payload for the
// capability and params, expired or not. The use_cached fallback policy
// prefers an outdated answer over a failed stage. Candidates are probed in
// priority order regardless of the allowlist: a payload that was acceptable
// when cached stays acceptable when the live source is down.
func (s *Services) StalePayload(ctx context.Context, capability catalog.Capability, params adapter.Params) (Outcome, bool) {
	disk, ok := s.disks[capability]
	if !ok {
		return Outcome{}, false
	}
	for _, d := range s.registry.CandidatesFor(capability) {
		key := cachemanager.NormalizedKey(d.ID, params)
		if raw, storedAt, ok := disk.GetStale(ctx, key); ok {
			log.Info(log.CatResearch, "serving stale cached payload",
				"capability", capability, "source", d.ID, "stored_at", storedAt)
			return Outcome{Capability: capability, SourceID: d.ID, Cached: true, Payload: raw}, true
		}
	}
	return Outcome{}, false
}

// Context exposes the bound execution context for callers that scope sources
// per stage.
func (s *Services) Context() *execution.Context { return s.ec }

// WithContext returns a facade bound to a different execution context but
// sharing the cache tiers. Used by the workflow runner for per-stage source
// scoping without losing cache warmth.
func (s *Services) WithContext(ec *execution.Context) *Services {
	clone := *s
	clone.ec = ec
	return &clone
}
