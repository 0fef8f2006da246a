// Package workflow runs multi-stage research profiles: declarative YAML
// pipelines whose stages each call one capability through the research
// services, with per-stage degradation policies and a checkpoint trail that
// records how far a run got.
package workflow

import (
	"fmt"

	"github.com/tiangong-ai/greenlit/internal/catalog"
)

// FallbackPolicy decides what a stage failure does to the run.
type FallbackPolicy string

const (
	// FallbackSkip records the stage as skipped and continues.
	FallbackSkip FallbackPolicy = "skip"
	// FallbackUseCached substitutes the most recent cached payload, however
	// old, and skips only when none exists.
	FallbackUseCached FallbackPolicy = "use_cached"
	// FallbackAbort stops the run.
	FallbackAbort FallbackPolicy = "abort"
)

func (p FallbackPolicy) valid() bool {
	switch p {
	case FallbackSkip, FallbackUseCached, FallbackAbort:
		return true
	}
	return false
}

// ConfigError reports an invalid profile. Like catalogue errors it is fatal
// before any stage runs; a malformed profile never half-executes.
type ConfigError struct {
	Profile string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Profile == "" {
		return "profile error: " + e.Reason
	}
	return fmt.Sprintf("profile %q: %s", e.Profile, e.Reason)
}

// Stage is one step of a profile. Params may contain {{placeholder}}
// references resolved against run variables and prior stage outputs.
type Stage struct {
	Name       string            `yaml:"name" json:"name"`
	Capability string            `yaml:"capability" json:"capability"`
	Params     map[string]string `yaml:"params" json:"params,omitempty"`
	Fallback   FallbackPolicy    `yaml:"fallback" json:"fallback"`
	// Sources narrows the allowlist for this stage only. Empty inherits the
	// run's allowlist.
	Sources []string `yaml:"sources" json:"sources,omitempty"`
}

// Profile is a named, ordered pipeline of stages.
type Profile struct {
	Slug        string  `yaml:"slug" json:"slug"`
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description,omitempty"`
	Stages      []Stage `yaml:"stages" json:"stages"`
}

// Validate checks structural soundness: non-empty slug, at least one stage,
// unique stage names, known capabilities, valid fallback policies.
func (p *Profile) Validate() error {
	if p.Slug == "" {
		return &ConfigError{Reason: "missing slug"}
	}
	if len(p.Stages) == 0 {
		return &ConfigError{Profile: p.Slug, Reason: "no stages"}
	}
	seen := make(map[string]struct{}, len(p.Stages))
	for i, st := range p.Stages {
		if st.Name == "" {
			return &ConfigError{Profile: p.Slug, Reason: fmt.Sprintf("stage %d has no name", i+1)}
		}
		if _, dup := seen[st.Name]; dup {
			return &ConfigError{Profile: p.Slug, Reason: fmt.Sprintf("duplicate stage name %q", st.Name)}
		}
		seen[st.Name] = struct{}{}
		if !catalog.Known(catalog.Capability(st.Capability)) {
			return &ConfigError{Profile: p.Slug, Reason: fmt.Sprintf("stage %q: unknown capability %q", st.Name, st.Capability)}
		}
		if st.Fallback == "" {
			p.Stages[i].Fallback = FallbackAbort
		} else if !st.Fallback.valid() {
			return &ConfigError{Profile: p.Slug, Reason: fmt.Sprintf("stage %q: invalid fallback %q", st.Name, st.Fallback)}
		}
	}
	return nil
}
