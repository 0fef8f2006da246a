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

const githubDefaultBaseURL = "https://api.github.com"

// GitHubAdapter searches repositories by topic through the GitHub search API.
// It works unauthenticated at a reduced rate limit; a GITHUB_TOKEN secret is
// used when present.
type GitHubAdapter struct {
	baseURL string
	client  httpDoer
}

// NewGitHubAdapter builds the adapter. An empty baseURL selects api.github.com.
func NewGitHubAdapter(baseURL string) *GitHubAdapter {
	if baseURL == "" {
		baseURL = githubDefaultBaseURL
	}
	return &GitHubAdapter{baseURL: baseURL, client: newHTTPClient()}
}

func (a *GitHubAdapter) SourceID() string { return "github_topics" }

func (a *GitHubAdapter) Verify(ctx context.Context, ec *execution.Context) adapter.VerificationResult {
	var meta struct {
		VerifiablePasswordAuthentication bool `json:"verifiable_password_authentication"`
	}
	err := getJSON(ctx, a.client, a.SourceID(), a.baseURL+"/meta", a.header(ec), &meta)
	if err != nil {
		return adapter.VerificationResult{
			SourceID:    a.SourceID(),
			Detail:      fmt.Sprintf("meta probe failed: %v", err),
			Remediation: "check network connectivity to " + a.baseURL,
		}
	}
	return adapter.VerificationResult{SourceID: a.SourceID(), OK: true, Detail: "reachable"}
}

// Execute searches repositories. Params: topic (required), limit (default 10).
func (a *GitHubAdapter) Execute(ctx context.Context, ec *execution.Context, params adapter.Params) (any, error) {
	topic := params.Get("topic", "")
	if topic == "" {
		return nil, adapter.NewErrorHint(adapter.KindUnsupported, a.SourceID(),
			fmt.Errorf("missing topic parameter"),
			"provide a topic, e.g. topic=green-software")
	}
	limit := clampLimit(params.Get("limit", "10"), 10, 50)

	q := url.Values{}
	q.Set("q", "topic:"+topic)
	q.Set("sort", "stars")
	q.Set("order", "desc")
	q.Set("per_page", strconv.Itoa(limit))

	var payload struct {
		Items []struct {
			FullName        string `json:"full_name"`
			StargazersCount int    `json:"stargazers_count"`
			HTMLURL         string `json:"html_url"`
			Description     string `json:"description"`
		} `json:"items"`
	}
	u := buildURL(a.baseURL, "/search/repositories", q)
	if err := getJSON(ctx, a.client, a.SourceID(), u, a.header(ec), &payload); err != nil {
		return nil, err
	}

	repos := make([]evidence.Repository, 0, len(payload.Items))
	for _, item := range payload.Items {
		repos = append(repos, evidence.Repository{
			FullName:    item.FullName,
			Stars:       item.StargazersCount,
			URL:         item.HTMLURL,
			Description: item.Description,
		})
	}
	return repos, nil
}

func (a *GitHubAdapter) header(ec *execution.Context) http.Header {
	h := http.Header{}
	h.Set("X-GitHub-Api-Version", "2022-11-28")
	if token, err := ec.ResolveSecret("GITHUB_TOKEN"); err == nil {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func clampLimit(raw string, fallback, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}
