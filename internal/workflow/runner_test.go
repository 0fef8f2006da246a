package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/cachemanager"
	"github.com/tiangong-ai/greenlit/internal/catalog"
	"github.com/tiangong-ai/greenlit/internal/evidence"
	"github.com/tiangong-ai/greenlit/internal/execution"
	"github.com/tiangong-ai/greenlit/internal/pubsub"
	"github.com/tiangong-ai/greenlit/internal/research"
	"github.com/tiangong-ai/greenlit/internal/testutil"
	"github.com/tiangong-ai/greenlit/internal/tracing"
)

// fullRegistry registers one fake source per capability used by the test
// profiles.
func fullRegistry(t *testing.T) *catalog.Registry {
	return testutil.Registry(t,
		testutil.Descriptor("sdg", 1, catalog.CapTaxonomyMap),
		testutil.Descriptor("code", 1, catalog.CapCodeSearch),
		testutil.Descriptor("papers", 1, catalog.CapLiteratureSearch),
		testutil.Descriptor("carbon", 1, catalog.CapCarbonIntensity),
		testutil.Descriptor("chart", 1, catalog.CapChartRender),
		testutil.Descriptor("llm", 1, catalog.CapSynthesis),
	)
}

func happyAdapters() map[string]adapter.Adapter {
	return map[string]adapter.Adapter{
		"sdg": &testutil.FakeAdapter{ID: "sdg", Payload: []evidence.GoalMatch{
			{Goal: evidence.Goal{Code: "13", Title: "Climate Action"}, Score: 4},
		}},
		"code": &testutil.FakeAdapter{ID: "code", Payload: []evidence.Repository{
			{FullName: "gsf/sci", Stars: 280},
		}},
		"papers": &testutil.FakeAdapter{ID: "papers", Payload: []evidence.Paper{
			{Title: "Carbon-aware computing", Year: 2023},
		}},
		"carbon": &testutil.FakeAdapter{ID: "carbon", Payload: evidence.CarbonSnapshot{
			Location: "DE", Intensity: 320, Units: "gCO2e/kWh",
		}},
		"chart": &testutil.FakeAdapter{ID: "chart", Payload: evidence.ChartRef{
			Title: "Evidence", ImageURL: "https://charts.example/1.png",
		}},
		"llm": &testutil.FakeAdapter{ID: "llm", Payload: evidence.Synthesis{Text: "All good."}},
	}
}

func newRunner(t *testing.T, ec *execution.Context, adapters map[string]adapter.Adapter) (*Runner, string) {
	t.Helper()
	tp, err := tracing.NewProvider(tracing.DefaultConfig())
	require.NoError(t, err)
	services := research.NewServices(ec, fullRegistry(t), adapters, testutil.FastConfig(), tp)
	runsDir := t.TempDir()
	return NewRunner(services, runsDir, tp), runsDir
}

func snapshotProfile(t *testing.T) *Profile {
	t.Helper()
	profiles, err := LoadBuiltin()
	require.NoError(t, err)
	return profiles["snapshot"]
}

func TestRunCompletes(t *testing.T) {
	runner, _ := newRunner(t, testutil.Context(t), happyAdapters())
	defer runner.Close()

	art, err := runner.Run(context.Background(), Request{
		Profile: snapshotProfile(t),
		Topic:   "Green Software",
	})
	require.NoError(t, err)
	require.Equal(t, RunCompleted, art.Status)
	require.Len(t, art.Stages, 5)
	for _, st := range art.Stages {
		require.Equal(t, StageCompleted, st.Status, "stage %s", st.Name)
	}

	// Checkpoints mirror stage order.
	records, err := ReadCheckpoints(art.CheckpointPath)
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, rec := range records {
		require.Equal(t, art.Stages[i].Name, rec.Stage)
		require.Equal(t, art.RunID, rec.RunID)
	}

	require.NotEmpty(t, art.ReportPath)
	report, err := os.ReadFile(art.ReportPath)
	require.NoError(t, err)
	require.Contains(t, string(report), "Green Software")
	require.Contains(t, string(report), "SDG 13")
	require.Contains(t, string(report), "gsf/sci")

	// Raw payload per stage, consolidated evidence, and the artifacts
	// record all land in the run directory.
	require.FileExists(t, filepath.Join(art.RunDir, "acquisition", "goals.json"))
	evData, err := os.ReadFile(filepath.Join(art.RunDir, "processed", "evidence.json"))
	require.NoError(t, err)
	require.Contains(t, string(evData), "gsf/sci")
	require.FileExists(t, filepath.Join(art.RunDir, "artifacts.json"))

	// Acquisition payloads were checkpointed with the stage records.
	require.NotNil(t, records[0].Payload)
}

func TestRunPartiallyCompletedOnSkippedStage(t *testing.T) {
	adapters := happyAdapters()
	adapters["code"] = &testutil.FakeAdapter{
		ID:  "code",
		Err: adapter.NewError(adapter.KindAuth, "code", errors.New("token revoked")),
	}
	runner, _ := newRunner(t, testutil.Context(t), adapters)
	defer runner.Close()

	art, err := runner.Run(context.Background(), Request{Profile: snapshotProfile(t), Topic: "green software"})
	require.NoError(t, err)
	require.Equal(t, RunPartiallyCompleted, art.Status)

	byName := map[string]StageResult{}
	for _, st := range art.Stages {
		byName[st.Name] = st
	}
	require.Equal(t, StageSkipped, byName["repositories"].Status)
	require.Contains(t, byName["repositories"].Error, "token revoked")
	require.Contains(t, byName["repositories"].Remediation, "check credentials for code")
	require.Equal(t, StageCompleted, byName["papers"].Status, "later stages still run")
}

func TestRunAbortsOnAbortFallback(t *testing.T) {
	adapters := happyAdapters()
	adapters["sdg"] = &testutil.FakeAdapter{
		ID:  "sdg",
		Err: adapter.NewError(adapter.KindInvalidResponse, "sdg", errors.New("garbage")),
	}
	runner, _ := newRunner(t, testutil.Context(t), adapters)
	defer runner.Close()

	art, err := runner.Run(context.Background(), Request{Profile: snapshotProfile(t), Topic: "x"})
	require.Error(t, err)
	require.Equal(t, RunAborted, art.Status)
	require.Len(t, art.Stages, 1, "no stage runs after the abort")
	require.Equal(t, StageFailed, art.Stages[0].Status)
	require.Empty(t, art.ReportPath, "aborted runs produce no report")

	codeAdapter := adapters["code"].(*testutil.FakeAdapter)
	require.Zero(t, codeAdapter.Calls())
}

func TestRunDryRunNeverInvokesAdapters(t *testing.T) {
	adapters := happyAdapters()
	for id := range adapters {
		adapters[id] = &testutil.FakeAdapter{ID: id, Err: errors.New("must not be reached")}
	}
	ec := testutil.Context(t, execution.WithDryRun(true))
	runner, runsDir := newRunner(t, ec, adapters)
	defer runner.Close()

	art, err := runner.Run(context.Background(), Request{Profile: snapshotProfile(t), Topic: "x"})
	require.NoError(t, err)
	require.Equal(t, RunPlanned, art.Status)
	for _, st := range art.Stages {
		require.Equal(t, StagePlanned, st.Status)
	}
	for id, ad := range adapters {
		require.Zero(t, ad.(*testutil.FakeAdapter).Calls(), "adapter %s", id)
	}

	// Dry runs write nothing.
	entries, err := os.ReadDir(runsDir)
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Empty(t, art.CheckpointPath)
}

func TestRunUnresolvedPlaceholderAborts(t *testing.T) {
	profile := &Profile{
		Slug: "broken",
		Name: "Broken",
		Stages: []Stage{
			{Name: "first", Capability: "code-search", Params: map[string]string{"topic": "{{topic}}"}, Fallback: FallbackSkip},
			{Name: "second", Capability: "chart-render", Params: map[string]string{"data": "{{nonexistent.binding}}"}, Fallback: FallbackSkip},
		},
	}
	runner, _ := newRunner(t, testutil.Context(t), happyAdapters())
	defer runner.Close()

	art, err := runner.Run(context.Background(), Request{Profile: profile, Topic: "x"})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Contains(t, cfgErr.Reason, "nonexistent.binding")
	require.Equal(t, RunAborted, art.Status)
}

func TestRunStageOutputFeedsLaterStage(t *testing.T) {
	var captured adapter.Params
	capture := &capturingAdapter{id: "chart", payload: evidence.ChartRef{Title: "t"}, params: &captured}

	adapters := happyAdapters()
	adapters["chart"] = capture
	runner, _ := newRunner(t, testutil.Context(t), adapters)
	defer runner.Close()

	_, err := runner.Run(context.Background(), Request{Profile: snapshotProfile(t), Topic: "green software"})
	require.NoError(t, err)

	var series []evidence.SeriesPoint
	require.NoError(t, json.Unmarshal([]byte(captured["data"]), &series))
	require.Len(t, series, 3)
	byCat := map[string]float64{}
	for _, p := range series {
		byCat[p.Category] = p.Value
	}
	require.Equal(t, float64(1), byCat["repositories"])
	require.Equal(t, float64(1), byCat["papers"])
}

func TestRunUseCachedFallbackServesStalePayload(t *testing.T) {
	cacheDir := t.TempDir()
	profile := &Profile{
		Slug: "carbon-only",
		Name: "Carbon",
		Stages: []Stage{
			{Name: "carbon", Capability: "carbon-intensity", Params: map[string]string{"location": "DE"}, Fallback: FallbackUseCached},
		},
	}

	// Plant an already-expired entry so the regular read path misses and
	// only the stale probe can find it.
	disk, err := cachemanager.NewDiskCacheManager[string, json.RawMessage](cacheDir, "carbon-intensity")
	require.NoError(t, err)
	payload, err := json.Marshal(evidence.CarbonSnapshot{Location: "DE", Intensity: 280, Units: "gCO2e/kWh"})
	require.NoError(t, err)
	key := cachemanager.NormalizedKey("carbon", map[string]string{"location": "DE"})
	disk.Set(context.Background(), key, payload, -time.Hour)

	adapters := happyAdapters()
	adapters["carbon"] = &testutil.FakeAdapter{
		ID:  "carbon",
		Err: adapter.NewError(adapter.KindAuth, "carbon", errors.New("down")),
	}
	ec := testutil.Context(t, execution.WithCacheDir(cacheDir))
	runner, _ := newRunner(t, ec, adapters)
	defer runner.Close()

	art, err := runner.Run(context.Background(), Request{Profile: profile, Topic: "x"})
	require.NoError(t, err)
	require.Equal(t, StageCached, art.Stages[0].Status)
	require.True(t, art.Stages[0].Cached)
	require.Equal(t, RunPartiallyCompleted, art.Status, "a degraded stage is never full success")

	var snap evidence.CarbonSnapshot
	require.NoError(t, json.Unmarshal(art.Stages[0].Payload, &snap))
	require.InDelta(t, 280, snap.Intensity, 0.001)
}

func TestRunUseCachedFallbackSkipsWhenNothingCached(t *testing.T) {
	profile := &Profile{
		Slug: "carbon-only",
		Name: "Carbon",
		Stages: []Stage{
			{Name: "carbon", Capability: "carbon-intensity", Params: map[string]string{"location": "DE"}, Fallback: FallbackUseCached},
		},
	}
	adapters := happyAdapters()
	adapters["carbon"] = &testutil.FakeAdapter{
		ID:  "carbon",
		Err: adapter.NewError(adapter.KindAuth, "carbon", errors.New("down")),
	}
	runner, _ := newRunner(t, testutil.Context(t), adapters)
	defer runner.Close()

	art, err := runner.Run(context.Background(), Request{Profile: profile, Topic: "x"})
	require.NoError(t, err)
	require.Equal(t, StageSkipped, art.Stages[0].Status)
	require.Equal(t, RunPartiallyCompleted, art.Status)
}

func TestRunRequiresTopic(t *testing.T) {
	runner, _ := newRunner(t, testutil.Context(t), happyAdapters())
	defer runner.Close()

	_, err := runner.Run(context.Background(), Request{Profile: snapshotProfile(t), Topic: "  "})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

// capturingAdapter records the params it was invoked with.
type capturingAdapter struct {
	id      string
	payload any
	params  *adapter.Params
}

func (c *capturingAdapter) SourceID() string { return c.id }

func (c *capturingAdapter) Verify(ctx context.Context, ec *execution.Context) adapter.VerificationResult {
	return adapter.VerificationResult{SourceID: c.id, OK: true}
}

func (c *capturingAdapter) Execute(ctx context.Context, ec *execution.Context, params adapter.Params) (any, error) {
	*c.params = params
	return c.payload, nil
}

func TestRunStreamsProgressEvents(t *testing.T) {
	runner, _ := newRunner(t, testutil.Context(t), happyAdapters())

	events := runner.Events().Subscribe(context.Background())
	_, err := runner.Run(context.Background(), Request{
		Profile: snapshotProfile(t),
		Topic:   "green software",
	})
	require.NoError(t, err)
	runner.Close()

	var started, finished int
	var runFinished bool
	for evt := range events {
		switch evt.Type {
		case pubsub.StageStarted:
			started++
		case pubsub.StageFinished:
			finished++
			require.Equal(t, StageCompleted, evt.Payload.Status)
		case pubsub.RunFinished:
			runFinished = true
			require.Equal(t, StageStatus(RunCompleted), evt.Payload.Status)
		}
	}
	require.Equal(t, 5, started)
	require.Equal(t, 5, finished)
	require.True(t, runFinished)
}

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.jsonl")
	w, err := NewCheckpointWriter(path)
	require.NoError(t, err)

	records := []CheckpointRecord{
		{RunID: "r1", Stage: "goals", Capability: "taxonomy-map", Status: StageCompleted, SourceID: "sdg"},
		{RunID: "r1", Stage: "repositories", Capability: "code-search", Status: StageSkipped, Error: "down", ErrorKind: "network"},
	}
	for _, rec := range records {
		require.NoError(t, w.Append(rec))
	}
	require.NoError(t, w.Close())

	got, err := ReadCheckpoints(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "goals", got[0].Stage)
	require.Equal(t, StageSkipped, got[1].Status)
	require.False(t, got[0].RecordedAt.IsZero())
	require.True(t, strings.HasSuffix(path, ".jsonl"))
}
