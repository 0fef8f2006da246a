package adapters

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/evidence"
	"github.com/tiangong-ai/greenlit/internal/execution"
)

const osdgDefaultBaseURL = "https://osdg.ai/api"

// OSDGAdapter maps free text onto SDG goals through the OSDG classification
// service. It is the higher-priority taxonomy source; when its token is
// missing the research services escalate to the UN SDG keyword fallback.
type OSDGAdapter struct {
	baseURL string
	client  httpDoer
}

func NewOSDGAdapter(baseURL string) *OSDGAdapter {
	if baseURL == "" {
		baseURL = osdgDefaultBaseURL
	}
	return &OSDGAdapter{baseURL: baseURL, client: newHTTPClient()}
}

func (a *OSDGAdapter) SourceID() string { return "osdg_api" }

func (a *OSDGAdapter) Verify(ctx context.Context, ec *execution.Context) adapter.VerificationResult {
	if !ec.HasSecret("OSDG_TOKEN") {
		return adapter.VerificationResult{
			SourceID:    a.SourceID(),
			Detail:      "credential OSDG_TOKEN not configured",
			Remediation: "set OSDG_TOKEN in the environment or the secrets file",
		}
	}
	return adapter.VerificationResult{SourceID: a.SourceID(), OK: true, Detail: "credential present"}
}

// Execute classifies a topic. Params: topic (required), limit (default 3).
func (a *OSDGAdapter) Execute(ctx context.Context, ec *execution.Context, params adapter.Params) (any, error) {
	topic := params.Get("topic", "")
	if topic == "" {
		return nil, adapter.NewErrorHint(adapter.KindUnsupported, a.SourceID(),
			fmt.Errorf("missing topic parameter"),
			"provide a topic to classify")
	}
	token, err := ec.ResolveSecret("OSDG_TOKEN")
	if err != nil {
		return nil, adapter.NewErrorHint(adapter.KindAuth, a.SourceID(), err,
			"set OSDG_TOKEN in the environment or the secrets file")
	}
	limit := clampLimit(params.Get("limit", "3"), 3, 17)

	h := http.Header{}
	h.Set("Authorization", "Token "+token)

	var payload struct {
		Predictions []struct {
			SDG struct {
				Code string `json:"code"`
				Name string `json:"name"`
			} `json:"sdg"`
			Prediction float64 `json:"prediction"`
		} `json:"predictions"`
	}
	req := map[string]string{"text": topic}
	if err := postJSON(ctx, a.client, a.SourceID(), a.baseURL+"/classify", h, req, &payload); err != nil {
		return nil, err
	}

	matches := make([]evidence.GoalMatch, 0, len(payload.Predictions))
	for _, p := range payload.Predictions {
		matches = append(matches, evidence.GoalMatch{
			Goal:  evidence.Goal{Code: p.SDG.Code, Title: p.SDG.Name},
			Score: int(p.Prediction * 100),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Code < matches[j].Code
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
