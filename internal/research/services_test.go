package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/catalog"
	"github.com/tiangong-ai/greenlit/internal/evidence"
	"github.com/tiangong-ai/greenlit/internal/execution"
	"github.com/tiangong-ai/greenlit/internal/testutil"
	"github.com/tiangong-ai/greenlit/internal/tracing"
)

func newServices(t *testing.T, ec *execution.Context, reg *catalog.Registry, adapters map[string]adapter.Adapter) *Services {
	t.Helper()
	tp, err := tracing.NewProvider(tracing.DefaultConfig())
	require.NoError(t, err)
	return NewServices(ec, reg, adapters, testutil.FastConfig(), tp)
}

func TestCallDryRunNeverInvokesAdapter(t *testing.T) {
	fake := &testutil.FakeAdapter{
		ID:  "src",
		Err: errors.New("must not be reached"),
	}
	reg := testutil.Registry(t, testutil.Descriptor("src", 1, catalog.CapCodeSearch))
	ec := testutil.Context(t, execution.WithDryRun(true))
	s := newServices(t, ec, reg, map[string]adapter.Adapter{"src": fake})

	out, err := s.Call(context.Background(), catalog.CapCodeSearch, adapter.Params{"topic": "x"})
	require.NoError(t, err)
	require.True(t, out.Planned)
	require.Equal(t, "src", out.SourceID)
	require.Zero(t, fake.Calls())

	var planned evidence.PlannedCall
	require.NoError(t, out.Decode(&planned))
	require.Equal(t, "src", planned.SourceID)
	require.Equal(t, "code-search", planned.Capability)
	require.Equal(t, "x", planned.Params["topic"])
}

func TestCallCacheIdempotence(t *testing.T) {
	fake := &testutil.FakeAdapter{
		ID:      "src",
		Payload: []evidence.Repository{{FullName: "a/b", Stars: 1}},
	}
	reg := testutil.Registry(t, testutil.Descriptor("src", 1, catalog.CapCodeSearch))
	s := newServices(t, testutil.Context(t), reg, map[string]adapter.Adapter{"src": fake})

	params := adapter.Params{"topic": "x", "limit": "5"}
	first, err := s.Call(context.Background(), catalog.CapCodeSearch, params)
	require.NoError(t, err)
	require.False(t, first.Cached)

	// Equivalent params, different map instance.
	second, err := s.Call(context.Background(), catalog.CapCodeSearch, adapter.Params{"limit": "5", "topic": "x"})
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.JSONEq(t, string(first.Payload), string(second.Payload))
	require.Equal(t, 1, fake.Calls())
}

func TestCallNoEnabledSource(t *testing.T) {
	reg := testutil.Registry(t, testutil.Descriptor("src", 1, catalog.CapCodeSearch))
	ec := testutil.Context(t, execution.WithEnabledSources("other"))
	s := newServices(t, ec, reg, map[string]adapter.Adapter{"src": &testutil.FakeAdapter{ID: "src"}})

	out, err := s.Call(context.Background(), catalog.CapCodeSearch, adapter.Params{"topic": "x"})
	require.NoError(t, err)
	require.True(t, out.NoSource)
	require.Contains(t, out.Remediation, "src")
}

func TestCallUnknownCapabilityIsNoSource(t *testing.T) {
	reg := testutil.Registry(t, testutil.Descriptor("src", 1, catalog.CapCodeSearch))
	s := newServices(t, testutil.Context(t), reg, map[string]adapter.Adapter{"src": &testutil.FakeAdapter{ID: "src"}})

	out, err := s.Call(context.Background(), catalog.CapSynthesis, adapter.Params{})
	require.NoError(t, err)
	require.True(t, out.NoSource)
}

func TestCallEscalatesAfterTransientExhaustion(t *testing.T) {
	primary := &testutil.FakeAdapter{
		ID:  "primary",
		Err: adapter.NewError(adapter.KindNetwork, "primary", errors.New("down")),
	}
	secondary := &testutil.FakeAdapter{
		ID:      "secondary",
		Payload: []evidence.GoalMatch{{Goal: evidence.Goal{Code: "13", Title: "Climate Action"}, Score: 2}},
	}
	reg := testutil.Registry(t,
		testutil.Descriptor("primary", 1, catalog.CapTaxonomyMap),
		testutil.Descriptor("secondary", 2, catalog.CapTaxonomyMap),
	)
	s := newServices(t, testutil.Context(t), reg, map[string]adapter.Adapter{
		"primary": primary, "secondary": secondary,
	})

	out, err := s.Call(context.Background(), catalog.CapTaxonomyMap, adapter.Params{"topic": "climate"})
	require.NoError(t, err)
	require.Equal(t, "secondary", out.SourceID)
	require.Equal(t, 3, primary.Calls(), "retries exhausted before escalation")
	require.Equal(t, 1, secondary.Calls())
}

func TestCallTerminalFailureDoesNotEscalate(t *testing.T) {
	primary := &testutil.FakeAdapter{
		ID:  "primary",
		Err: adapter.NewError(adapter.KindAuth, "primary", errors.New("bad token")),
	}
	secondary := &testutil.FakeAdapter{ID: "secondary", Payload: "unused"}
	reg := testutil.Registry(t,
		testutil.Descriptor("primary", 1, catalog.CapTaxonomyMap),
		testutil.Descriptor("secondary", 2, catalog.CapTaxonomyMap),
	)
	s := newServices(t, testutil.Context(t), reg, map[string]adapter.Adapter{
		"primary": primary, "secondary": secondary,
	})

	_, err := s.Call(context.Background(), catalog.CapTaxonomyMap, adapter.Params{"topic": "x"})
	require.Equal(t, adapter.KindAuth, adapter.KindOf(err))
	require.Equal(t, 1, primary.Calls())
	require.Zero(t, secondary.Calls())
}

func TestCallSkipsBlockedSource(t *testing.T) {
	blocked := testutil.Descriptor("legacy", 1, catalog.CapLiteratureSearch)
	blocked.Status = catalog.StatusBlocked
	blocked.BlockReason = "contract lapsed"

	fallback := &testutil.FakeAdapter{ID: "open", Payload: []evidence.Paper{{Title: "t"}}}
	reg := testutil.Registry(t, blocked, testutil.Descriptor("open", 2, catalog.CapLiteratureSearch))
	s := newServices(t, testutil.Context(t), reg, map[string]adapter.Adapter{
		"legacy": &testutil.FakeAdapter{ID: "legacy", Err: errors.New("must not run")},
		"open":   fallback,
	})

	out, err := s.Call(context.Background(), catalog.CapLiteratureSearch, adapter.Params{"query": "q"})
	require.NoError(t, err)
	require.Equal(t, "open", out.SourceID)
}

func TestCallSkipsSourceMissingCredential(t *testing.T) {
	gated := testutil.Descriptor("classifier", 1, catalog.CapTaxonomyMap)
	gated.RequiresCredentials = true
	gated.CredentialKey = "CLASSIFIER_TOKEN"

	gatedAdapter := &testutil.FakeAdapter{
		ID:  "classifier",
		Err: adapter.NewError(adapter.KindAuth, "classifier", errors.New("must not run without a token")),
	}
	free := &testutil.FakeAdapter{ID: "keywords", Payload: []evidence.GoalMatch{
		{Goal: evidence.Goal{Code: "13"}, Score: 2},
	}}
	reg := testutil.Registry(t, gated, testutil.Descriptor("keywords", 2, catalog.CapTaxonomyMap))

	// No credential in the context: the gated source never runs and the
	// free lower-priority source serves the call.
	s := newServices(t, testutil.Context(t), reg, map[string]adapter.Adapter{
		"classifier": gatedAdapter,
		"keywords":   free,
	})
	out, err := s.Call(context.Background(), catalog.CapTaxonomyMap, adapter.Params{"topic": "x"})
	require.NoError(t, err)
	require.Equal(t, "keywords", out.SourceID)
	require.Zero(t, gatedAdapter.Calls())

	// With the credential present the gated source keeps its priority.
	ec := testutil.Context(t, execution.WithSecrets(execution.NewSecrets(map[string]string{
		"CLASSIFIER_TOKEN": "tok",
	})))
	gatedAdapter.Err = nil
	gatedAdapter.Payload = []evidence.GoalMatch{{Goal: evidence.Goal{Code: "7"}, Score: 3}}
	s = newServices(t, ec, reg, map[string]adapter.Adapter{
		"classifier": gatedAdapter,
		"keywords":   free,
	})
	out, err = s.Call(context.Background(), catalog.CapTaxonomyMap, adapter.Params{"topic": "x"})
	require.NoError(t, err)
	require.Equal(t, "classifier", out.SourceID)
}

func TestCallFailureIsNotCached(t *testing.T) {
	fake := &testutil.FakeAdapter{
		ID:        "src",
		Err:       adapter.NewError(adapter.KindNotFound, "src", errors.New("missing")),
		FailFirst: 1,
		Payload:   evidence.CarbonSnapshot{Location: "DE", Intensity: 300},
	}
	reg := testutil.Registry(t, testutil.Descriptor("src", 1, catalog.CapCarbonIntensity))
	s := newServices(t, testutil.Context(t), reg, map[string]adapter.Adapter{"src": fake})

	_, err := s.Call(context.Background(), catalog.CapCarbonIntensity, adapter.Params{"location": "DE"})
	require.Error(t, err)

	out, err := s.Call(context.Background(), catalog.CapCarbonIntensity, adapter.Params{"location": "DE"})
	require.NoError(t, err)
	require.False(t, out.Cached, "failure must not have populated the cache")
	require.Equal(t, 2, fake.Calls())
}

func TestVerifyReportsBlockedAndUnwired(t *testing.T) {
	blocked := testutil.Descriptor("legacy", 1, catalog.CapLiteratureSearch)
	blocked.Status = catalog.StatusBlocked
	blocked.BlockReason = "contract lapsed"

	reg := testutil.Registry(t,
		blocked,
		testutil.Descriptor("wired", 1, catalog.CapCodeSearch),
		testutil.Descriptor("unwired", 1, catalog.CapCodeSearch),
	)
	s := newServices(t, testutil.Context(t), reg, map[string]adapter.Adapter{
		"wired": &testutil.FakeAdapter{ID: "wired", VerifyOK: true, VerifyDetail: "reachable"},
	})

	results := s.Verify(context.Background())
	byID := map[string]adapter.VerificationResult{}
	for _, r := range results {
		byID[r.SourceID] = r
	}
	require.Len(t, byID, 3)
	require.False(t, byID["legacy"].OK)
	require.Contains(t, byID["legacy"].Detail, "contract lapsed")
	require.True(t, byID["wired"].OK)
	require.False(t, byID["unwired"].OK)
	require.Contains(t, byID["unwired"].Detail, "no adapter")

	single, err := s.VerifySource(context.Background(), "wired")
	require.NoError(t, err)
	require.True(t, single.OK)
	_, err = s.VerifySource(context.Background(), "missing")
	require.ErrorIs(t, err, catalog.ErrSourceNotFound)
}

func TestTypedWrapperDecodes(t *testing.T) {
	fake := &testutil.FakeAdapter{
		ID:      "src",
		Payload: []evidence.Repository{{FullName: "a/b", Stars: 7}},
	}
	reg := testutil.Registry(t, testutil.Descriptor("src", 1, catalog.CapCodeSearch))
	s := newServices(t, testutil.Context(t), reg, map[string]adapter.Adapter{"src": fake})

	out, repos, err := s.SearchCode(context.Background(), "green-software", 10)
	require.NoError(t, err)
	require.False(t, out.NoSource)
	require.Len(t, repos, 1)
	require.Equal(t, 7, repos[0].Stars)
}

func TestWithContextSharesCacheTiers(t *testing.T) {
	fake := &testutil.FakeAdapter{ID: "src", Payload: []evidence.Paper{{Title: "t"}}}
	reg := testutil.Registry(t, testutil.Descriptor("src", 1, catalog.CapLiteratureSearch))
	ec := testutil.Context(t)
	s := newServices(t, ec, reg, map[string]adapter.Adapter{"src": fake})

	_, err := s.Call(context.Background(), catalog.CapLiteratureSearch, adapter.Params{"query": "q"})
	require.NoError(t, err)

	scoped := s.WithContext(ec.WithSources("src"))
	out, err := scoped.Call(context.Background(), catalog.CapLiteratureSearch, adapter.Params{"query": "q"})
	require.NoError(t, err)
	require.True(t, out.Cached)
	require.Equal(t, 1, fake.Calls())
}
