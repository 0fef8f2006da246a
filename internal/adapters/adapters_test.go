package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/evidence"
	"github.com/tiangong-ai/greenlit/internal/execution"
)

func testContext(t *testing.T, secrets map[string]string) *execution.Context {
	t.Helper()
	ec, err := execution.New(
		execution.WithCacheDir(t.TempDir()),
		execution.WithSecrets(execution.NewSecrets(secrets)),
	)
	require.NoError(t, err)
	return ec
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]adapter.Kind{
		http.StatusUnauthorized:        adapter.KindAuth,
		http.StatusForbidden:           adapter.KindAuth,
		http.StatusNotFound:            adapter.KindNotFound,
		http.StatusTooManyRequests:     adapter.KindRateLimited,
		http.StatusInternalServerError: adapter.KindNetwork,
		http.StatusBadGateway:          adapter.KindNetwork,
		http.StatusTeapot:              adapter.KindInvalidResponse,
	}
	for status, want := range cases {
		require.Equal(t, want, classifyStatus(status), "status %d", status)
	}
}

func TestGitHubAdapterSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/repositories", r.URL.Path)
		require.Equal(t, "topic:green-software", r.URL.Query().Get("q"))
		require.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"full_name": "Green-Software-Foundation/sci", "stargazers_count": 280, "html_url": "https://github.com/Green-Software-Foundation/sci", "description": "spec"},
				{"full_name": "cloud-carbon-footprint/cloud-carbon-footprint", "stargazers_count": 900},
			},
		})
	}))
	defer srv.Close()

	a := NewGitHubAdapter(srv.URL)
	ec := testContext(t, map[string]string{"GITHUB_TOKEN": "gh-token"})

	got, err := a.Execute(context.Background(), ec, adapter.Params{"topic": "green-software"})
	require.NoError(t, err)

	repos, ok := got.([]evidence.Repository)
	require.True(t, ok)
	require.Len(t, repos, 2)
	require.Equal(t, "Green-Software-Foundation/sci", repos[0].FullName)
	require.Equal(t, 280, repos[0].Stars)
}

func TestGitHubAdapterRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewGitHubAdapter(srv.URL)
	_, err := a.Execute(context.Background(), testContext(t, nil), adapter.Params{"topic": "x"})
	require.Equal(t, adapter.KindRateLimited, adapter.KindOf(err))
}

func TestGitHubAdapterMissingTopic(t *testing.T) {
	a := NewGitHubAdapter("http://unused.invalid")
	_, err := a.Execute(context.Background(), testContext(t, nil), adapter.Params{})
	require.Equal(t, adapter.KindUnsupported, adapter.KindOf(err))
}

func TestScholarAdapterSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/paper/search", r.URL.Path)
		require.Equal(t, "software carbon", r.URL.Query().Get("query"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"paperId": "p1", "title": "Measuring Software Carbon", "year": 2023,
					"authors": []map[string]string{{"name": "A. Author"}},
				},
			},
		})
	}))
	defer srv.Close()

	a := NewScholarAdapter(srv.URL)
	got, err := a.Execute(context.Background(), testContext(t, nil), adapter.Params{"query": "software carbon"})
	require.NoError(t, err)

	papers, ok := got.([]evidence.Paper)
	require.True(t, ok)
	require.Len(t, papers, 1)
	require.Equal(t, "Measuring Software Carbon", papers[0].Title)
	require.Equal(t, []string{"A. Author"}, papers[0].Authors)
}

func TestScholarAdapterServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewScholarAdapter(srv.URL)
	_, err := a.Execute(context.Background(), testContext(t, nil), adapter.Params{"query": "x"})
	require.Equal(t, adapter.KindNetwork, adapter.KindOf(err))
}

func TestUNSDGAdapterMapsTopic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sdg/Goal/List", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"code": "7", "title": "Affordable and Clean Energy", "description": "Ensure access to affordable, reliable, sustainable and modern energy for all"},
			{"code": "13", "title": "Climate Action", "description": "Take urgent action to combat climate change and its impacts"},
			{"code": "14", "title": "Life Below Water", "description": "Conserve and sustainably use the oceans"},
		})
	}))
	defer srv.Close()

	a := NewUNSDGAdapter(srv.URL)
	got, err := a.Execute(context.Background(), testContext(t, nil),
		adapter.Params{"topic": "clean energy and climate software"})
	require.NoError(t, err)

	matches, ok := got.([]evidence.GoalMatch)
	require.True(t, ok)
	require.NotEmpty(t, matches)
	require.Equal(t, "7", matches[0].Code, "title hits outrank description hits")
	for i := 1; i < len(matches); i++ {
		require.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestScoreGoalsZeroScoreExcluded(t *testing.T) {
	goals := []evidence.Goal{
		{Code: "1", Title: "No Poverty", Description: "End poverty in all its forms"},
	}
	matches := ScoreGoals("quantum cryptography", goals)
	require.Empty(t, matches)
}

func TestScoreGoalsStableTiebreak(t *testing.T) {
	goals := []evidence.Goal{
		{Code: "13", Title: "Climate Action"},
		{Code: "07", Title: "Climate Energy"},
	}
	matches := ScoreGoals("climate", goals)
	require.Len(t, matches, 2)
	require.Equal(t, "07", matches[0].Code)
}

func TestOSDGAdapterRequiresToken(t *testing.T) {
	a := NewOSDGAdapter("http://unused.invalid")
	ec := testContext(t, nil)

	res := a.Verify(context.Background(), ec)
	require.False(t, res.OK)
	require.NotEmpty(t, res.Remediation)

	_, err := a.Execute(context.Background(), ec, adapter.Params{"topic": "x"})
	require.Equal(t, adapter.KindAuth, adapter.KindOf(err))
}

func TestOSDGAdapterClassifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/classify", r.URL.Path)
		require.Equal(t, "Token osdg-tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]any{
				{"sdg": map[string]string{"code": "13", "name": "Climate Action"}, "prediction": 0.91},
				{"sdg": map[string]string{"code": "7", "name": "Clean Energy"}, "prediction": 0.55},
			},
		})
	}))
	defer srv.Close()

	a := NewOSDGAdapter(srv.URL)
	ec := testContext(t, map[string]string{"OSDG_TOKEN": "osdg-tok"})
	got, err := a.Execute(context.Background(), ec, adapter.Params{"topic": "climate software"})
	require.NoError(t, err)

	matches, ok := got.([]evidence.GoalMatch)
	require.True(t, ok)
	require.Len(t, matches, 2)
	require.Equal(t, "13", matches[0].Code)
	require.Equal(t, 91, matches[0].Score)
}

func TestGridIntensityAdapterParsesReading(t *testing.T) {
	a := NewGridIntensityAdapter("grid-intensity")
	a.runner = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`[{"provider":"Ember","location":"DE","value":312.5,"units":"gCO2e/kWh","valid_from":"2026-08-30T00:00:00Z"}]`), nil
	}

	got, err := a.Execute(context.Background(), testContext(t, nil), adapter.Params{"location": "DE"})
	require.NoError(t, err)

	snap, ok := got.(evidence.CarbonSnapshot)
	require.True(t, ok)
	require.Equal(t, "DE", snap.Location)
	require.InDelta(t, 312.5, snap.Intensity, 0.001)
}

func TestGridIntensityAdapterEmptyOutput(t *testing.T) {
	a := NewGridIntensityAdapter("grid-intensity")
	a.runner = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`[]`), nil
	}
	_, err := a.Execute(context.Background(), testContext(t, nil), adapter.Params{"location": "XX"})
	require.Equal(t, adapter.KindNotFound, adapter.KindOf(err))
}

func TestGridIntensityAdapterCommandFailure(t *testing.T) {
	a := NewGridIntensityAdapter("grid-intensity")
	a.runner = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("exit status 1: upstream API unreachable")
	}
	_, err := a.Execute(context.Background(), testContext(t, nil), adapter.Params{"location": "DE"})
	require.Equal(t, adapter.KindNetwork, adapter.KindOf(err))
}

func TestChartMCPAdapterRendersBarChart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "tools/call", req.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"content": []map[string]string{{"type": "text", "text": "https://charts.example/abc.png"}},
			},
		})
	}))
	defer srv.Close()

	a := NewChartMCPAdapter(srv.URL)
	got, err := a.Execute(context.Background(), testContext(t, nil), adapter.Params{
		"title": "Evidence volume",
		"data":  `[{"category":"repos","value":12},{"category":"papers","value":8}]`,
	})
	require.NoError(t, err)

	chart, ok := got.(evidence.ChartRef)
	require.True(t, ok)
	require.Equal(t, "https://charts.example/abc.png", chart.ImageURL)
}

func TestChartMCPAdapterRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": -32602, "message": "invalid params"},
		})
	}))
	defer srv.Close()

	a := NewChartMCPAdapter(srv.URL)
	_, err := a.Execute(context.Background(), testContext(t, nil), adapter.Params{
		"title": "t", "data": `[{"category":"a","value":1}]`,
	})
	require.Equal(t, adapter.KindInvalidResponse, adapter.KindOf(err))
}

func TestChartMCPAdapterRejectsMalformedSeries(t *testing.T) {
	a := NewChartMCPAdapter("http://unused.invalid")
	_, err := a.Execute(context.Background(), testContext(t, nil), adapter.Params{
		"title": "t", "data": "not json",
	})
	require.Equal(t, adapter.KindUnsupported, adapter.KindOf(err))
}

func TestSynthesisAdapterRunsPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "o4-mini-deep-research", body["model"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "o4-mini-deep-research",
			"output": []map[string]any{
				{"type": "reasoning"},
				{"type": "message", "content": []map[string]string{
					{"type": "output_text", "text": "Findings: the field is growing."},
				}},
			},
		})
	}))
	defer srv.Close()

	a := NewSynthesisAdapter(srv.URL, "o4-mini-deep-research")
	ec := testContext(t, map[string]string{"OPENAI_API_KEY": "sk-test"})
	got, err := a.Execute(context.Background(), ec, adapter.Params{"prompt": "summarize"})
	require.NoError(t, err)

	syn, ok := got.(evidence.Synthesis)
	require.True(t, ok)
	require.Equal(t, "Findings: the field is growing.", syn.Text)
	require.Equal(t, "o4-mini-deep-research", syn.Model)
}

func TestSynthesisAdapterAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := NewSynthesisAdapter(srv.URL, "m")
	ec := testContext(t, map[string]string{"OPENAI_API_KEY": "bad"})
	_, err := a.Execute(context.Background(), ec, adapter.Params{"prompt": "x"})
	require.Equal(t, adapter.KindAuth, adapter.KindOf(err))
}

func TestSynthesisAdapterMissingKey(t *testing.T) {
	a := NewSynthesisAdapter("http://unused.invalid", "m")
	_, err := a.Execute(context.Background(), testContext(t, nil), adapter.Params{"prompt": "x"})
	require.Equal(t, adapter.KindAuth, adapter.KindOf(err))

	var missing *execution.MissingCredentialError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "OPENAI_API_KEY", missing.Key)
}
