package adapters

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/evidence"
	"github.com/tiangong-ai/greenlit/internal/execution"
)

const unSDGDefaultBaseURL = "https://unstats.un.org/SDGAPI/v1"

// UNSDGAdapter maps a research topic onto the UN Sustainable Development
// Goals. The goal list comes from the UN statistics API; the mapping itself
// is a local keyword overlap score, so the adapter needs no credentials.
type UNSDGAdapter struct {
	baseURL string
	client  httpDoer
}

func NewUNSDGAdapter(baseURL string) *UNSDGAdapter {
	if baseURL == "" {
		baseURL = unSDGDefaultBaseURL
	}
	return &UNSDGAdapter{baseURL: baseURL, client: newHTTPClient()}
}

func (a *UNSDGAdapter) SourceID() string { return "un_sdg_api" }

func (a *UNSDGAdapter) Verify(ctx context.Context, ec *execution.Context) adapter.VerificationResult {
	goals, err := a.fetchGoals(ctx)
	if err != nil {
		return adapter.VerificationResult{
			SourceID:    a.SourceID(),
			Detail:      fmt.Sprintf("goal list probe failed: %v", err),
			Remediation: "check network connectivity to " + a.baseURL,
		}
	}
	return adapter.VerificationResult{
		SourceID: a.SourceID(),
		OK:       true,
		Detail:   fmt.Sprintf("reachable, %d goals listed", len(goals)),
	}
}

// Execute maps a topic onto goals. Params: topic (required), limit (default 3).
// Returns the top scoring goals; a zero score never makes the cut.
func (a *UNSDGAdapter) Execute(ctx context.Context, ec *execution.Context, params adapter.Params) (any, error) {
	topic := params.Get("topic", "")
	if topic == "" {
		return nil, adapter.NewErrorHint(adapter.KindUnsupported, a.SourceID(),
			fmt.Errorf("missing topic parameter"),
			"provide a topic, e.g. topic=\"green software\"")
	}
	limit := clampLimit(params.Get("limit", "3"), 3, 17)

	goals, err := a.fetchGoals(ctx)
	if err != nil {
		return nil, err
	}

	matches := ScoreGoals(topic, goals)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (a *UNSDGAdapter) fetchGoals(ctx context.Context) ([]evidence.Goal, error) {
	var payload []struct {
		Code        string `json:"code"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := getJSON(ctx, a.client, a.SourceID(), a.baseURL+"/sdg/Goal/List", nil, &payload); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, adapter.NewError(adapter.KindInvalidResponse, a.SourceID(),
			fmt.Errorf("goal list is empty"))
	}
	goals := make([]evidence.Goal, 0, len(payload))
	for _, g := range payload {
		goals = append(goals, evidence.Goal{Code: g.Code, Title: g.Title, Description: g.Description})
	}
	return goals, nil
}

// ScoreGoals ranks goals by keyword overlap with the topic. Each topic token
// of three or more characters found in a goal's title or description scores a
// point; title hits count double. Results are ordered by score, then by code
// for a stable tiebreak.
func ScoreGoals(topic string, goals []evidence.Goal) []evidence.GoalMatch {
	tokens := topicTokens(topic)
	matches := make([]evidence.GoalMatch, 0, len(goals))
	for _, g := range goals {
		title := strings.ToLower(g.Title)
		desc := strings.ToLower(g.Description)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(title, tok) {
				score += 2
			} else if strings.Contains(desc, tok) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, evidence.GoalMatch{Goal: g, Score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Code < matches[j].Code
	})
	return matches
}

func topicTokens(topic string) []string {
	fields := strings.FieldsFunc(strings.ToLower(topic), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
