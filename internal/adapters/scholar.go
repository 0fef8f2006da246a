package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/evidence"
	"github.com/tiangong-ai/greenlit/internal/execution"
)

const scholarDefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

// ScholarAdapter queries the Semantic Scholar graph API for literature.
type ScholarAdapter struct {
	baseURL string
	client  httpDoer
}

func NewScholarAdapter(baseURL string) *ScholarAdapter {
	if baseURL == "" {
		baseURL = scholarDefaultBaseURL
	}
	return &ScholarAdapter{baseURL: baseURL, client: newHTTPClient()}
}

func (a *ScholarAdapter) SourceID() string { return "semantic_scholar" }

func (a *ScholarAdapter) Verify(ctx context.Context, ec *execution.Context) adapter.VerificationResult {
	q := url.Values{}
	q.Set("query", "sustainability")
	q.Set("limit", "1")
	q.Set("fields", "title")
	var resp struct {
		Total int `json:"total"`
	}
	err := getJSON(ctx, a.client, a.SourceID(), buildURL(a.baseURL, "/paper/search", q), a.header(ec), &resp)
	if err != nil {
		return adapter.VerificationResult{
			SourceID:    a.SourceID(),
			Detail:      fmt.Sprintf("search probe failed: %v", err),
			Remediation: "check network connectivity; set SEMANTIC_SCHOLAR_API_KEY if rate limited",
		}
	}
	return adapter.VerificationResult{SourceID: a.SourceID(), OK: true, Detail: "reachable"}
}

// Execute searches papers. Params: query (required), limit (default 10),
// year (optional publication year filter, e.g. "2020-").
func (a *ScholarAdapter) Execute(ctx context.Context, ec *execution.Context, params adapter.Params) (any, error) {
	query := params.Get("query", "")
	if query == "" {
		return nil, adapter.NewErrorHint(adapter.KindUnsupported, a.SourceID(),
			fmt.Errorf("missing query parameter"),
			"provide a search query, e.g. query=\"software carbon intensity\"")
	}
	limit := clampLimit(params.Get("limit", "10"), 10, 100)

	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", "title,year,url,abstract,authors")
	if year := params.Get("year", ""); year != "" {
		q.Set("year", year)
	}

	var payload struct {
		Data []struct {
			PaperID  string `json:"paperId"`
			Title    string `json:"title"`
			Year     int    `json:"year"`
			URL      string `json:"url"`
			Abstract string `json:"abstract"`
			Authors  []struct {
				Name string `json:"name"`
			} `json:"authors"`
		} `json:"data"`
	}
	u := buildURL(a.baseURL, "/paper/search", q)
	if err := getJSON(ctx, a.client, a.SourceID(), u, a.header(ec), &payload); err != nil {
		return nil, err
	}

	papers := make([]evidence.Paper, 0, len(payload.Data))
	for _, p := range payload.Data {
		authors := make([]string, 0, len(p.Authors))
		for _, au := range p.Authors {
			authors = append(authors, au.Name)
		}
		papers = append(papers, evidence.Paper{
			PaperID:  p.PaperID,
			Title:    p.Title,
			Year:     p.Year,
			URL:      p.URL,
			Abstract: p.Abstract,
			Authors:  authors,
		})
	}
	return papers, nil
}

func (a *ScholarAdapter) header(ec *execution.Context) http.Header {
	h := http.Header{}
	if key, err := ec.ResolveSecret("SEMANTIC_SCHOLAR_API_KEY"); err == nil {
		h.Set("x-api-key", key)
	}
	return h
}
