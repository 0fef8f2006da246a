package research

import (
	"context"
	"strconv"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/catalog"
	"github.com/tiangong-ai/greenlit/internal/evidence"
)

// Typed wrappers over Call for direct CLI use. Each returns the raw outcome
// alongside the decoded payload; under dry-run or no-source the payload is
// zero and the outcome tells the caller why.

func (s *Services) MapToTaxonomy(ctx context.Context, topic string, limit int) (Outcome, []evidence.GoalMatch, error) {
	params := adapter.Params{"topic": topic}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	out, err := s.Call(ctx, catalog.CapTaxonomyMap, params)
	var matches []evidence.GoalMatch
	if err == nil && payloadReady(out) {
		err = out.Decode(&matches)
	}
	return out, matches, err
}

func (s *Services) SearchCode(ctx context.Context, topic string, limit int) (Outcome, []evidence.Repository, error) {
	params := adapter.Params{"topic": topic}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	out, err := s.Call(ctx, catalog.CapCodeSearch, params)
	var repos []evidence.Repository
	if err == nil && payloadReady(out) {
		err = out.Decode(&repos)
	}
	return out, repos, err
}

func (s *Services) SearchLiterature(ctx context.Context, query string, limit int) (Outcome, []evidence.Paper, error) {
	params := adapter.Params{"query": query}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	out, err := s.Call(ctx, catalog.CapLiteratureSearch, params)
	var papers []evidence.Paper
	if err == nil && payloadReady(out) {
		err = out.Decode(&papers)
	}
	return out, papers, err
}

func (s *Services) GetCarbonIntensity(ctx context.Context, location string) (Outcome, evidence.CarbonSnapshot, error) {
	out, err := s.Call(ctx, catalog.CapCarbonIntensity, adapter.Params{"location": location})
	var snap evidence.CarbonSnapshot
	if err == nil && payloadReady(out) {
		err = out.Decode(&snap)
	}
	return out, snap, err
}

func (s *Services) RenderChart(ctx context.Context, title, seriesJSON string) (Outcome, evidence.ChartRef, error) {
	out, err := s.Call(ctx, catalog.CapChartRender, adapter.Params{"title": title, "data": seriesJSON})
	var chart evidence.ChartRef
	if err == nil && payloadReady(out) {
		err = out.Decode(&chart)
	}
	return out, chart, err
}

func (s *Services) RunPrompt(ctx context.Context, prompt, instructions string) (Outcome, evidence.Synthesis, error) {
	params := adapter.Params{"prompt": prompt}
	if instructions != "" {
		params["instructions"] = instructions
	}
	out, err := s.Call(ctx, catalog.CapSynthesis, params)
	var syn evidence.Synthesis
	if err == nil && payloadReady(out) {
		err = out.Decode(&syn)
	}
	return out, syn, err
}

func payloadReady(o Outcome) bool {
	return !o.NoSource && !o.Planned && len(o.Payload) > 0
}
