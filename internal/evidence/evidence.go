// Package evidence defines the typed payloads produced by data source
// adapters. These are the only shapes the orchestration core passes between
// acquisition, consolidation, and synthesis.
package evidence

import "time"

// Repository is a code repository discovered via code search.
type Repository struct {
	FullName    string `json:"full_name"`
	Stars       int    `json:"stars"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Paper is a literature search hit.
type Paper struct {
	PaperID  string   `json:"paper_id,omitempty"`
	Title    string   `json:"title"`
	Year     int      `json:"year,omitempty"`
	URL      string   `json:"url,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	Authors  []string `json:"authors,omitempty"`
}

// Goal is one entry of a sustainability taxonomy (e.g. an SDG goal).
type Goal struct {
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// GoalMatch is a taxonomy goal scored against a research topic.
type GoalMatch struct {
	Goal
	Score int `json:"score"`
}

// CarbonSnapshot is a point-in-time grid carbon intensity reading.
type CarbonSnapshot struct {
	Provider  string  `json:"provider"`
	Location  string  `json:"location"`
	Intensity float64 `json:"carbon_intensity"`
	Units     string  `json:"units,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// SeriesPoint is one bar of a rendered chart.
type SeriesPoint struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// ChartRef points at a rendered chart artifact.
type ChartRef struct {
	Title    string `json:"title"`
	ImageURL string `json:"image_url,omitempty"`
	Path     string `json:"path,omitempty"`
}

// Synthesis is the text returned by the LLM collaborator together with the
// provenance of the evidence that fed it.
type Synthesis struct {
	Text        string    `json:"text"`
	Model       string    `json:"model,omitempty"`
	FedStages   []string  `json:"fed_stages,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// PlannedCall describes what a capability call would have done. It is the
// payload returned for every call made under dry-run.
type PlannedCall struct {
	SourceID   string            `json:"source_id"`
	Capability string            `json:"capability"`
	Params     map[string]string `json:"params,omitempty"`
}
