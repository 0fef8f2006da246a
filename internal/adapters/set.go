package adapters

import (
	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/config"
)

// DefaultSet wires every shipped adapter against the configured endpoints,
// keyed by source id for registry lookup.
func DefaultSet(cfg *config.Config) map[string]adapter.Adapter {
	set := []adapter.Adapter{
		NewOSDGAdapter(cfg.Sources.OSDGBaseURL),
		NewUNSDGAdapter(cfg.Sources.UNSDGBaseURL),
		NewGitHubAdapter(cfg.Sources.GitHubBaseURL),
		NewScholarAdapter(cfg.Sources.ScholarBaseURL),
		NewGridIntensityAdapter(cfg.Sources.GridIntensityBinary),
		NewChartMCPAdapter(cfg.Sources.ChartMCPEndpoint),
		NewSynthesisAdapter(cfg.Synthesis.Endpoint, cfg.Synthesis.Model),
	}
	out := make(map[string]adapter.Adapter, len(set))
	for _, a := range set {
		out[a.SourceID()] = a
	}
	return out
}
