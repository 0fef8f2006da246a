// Package presentation renders command output. Every command supports JSON
// for scripting and a human text form for the terminal.
package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/workflow"
)

// Formatter handles output formatting.
type Formatter struct {
	writer io.Writer
	json   bool
}

// NewFormatter creates a formatter. jsonOutput selects machine-readable
// output for every method.
func NewFormatter(writer io.Writer, jsonOutput bool) *Formatter {
	return &Formatter{writer: writer, json: jsonOutput}
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Sources renders the catalogue listing.
func (f *Formatter) Sources(sources []SourceDTO) error {
	if f.json {
		return f.encode(sources)
	}
	w := tabwriter.NewWriter(f.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tCAPABILITIES\tNOTES")
	for _, s := range sources {
		notes := ""
		if s.RequiresCredentials {
			notes = "needs " + s.CredentialKey
		}
		if s.BlockReason != "" {
			notes = "blocked: " + s.BlockReason
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.ID, s.Status, s.Priority, strings.Join(s.Capabilities, ","), notes)
	}
	return w.Flush()
}

// Verifications renders source probe results.
func (f *Formatter) Verifications(results []adapter.VerificationResult) error {
	if f.json {
		return f.encode(results)
	}
	w := tabwriter.NewWriter(f.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tOK\tDETAIL")
	for _, r := range results {
		ok := "no"
		if r.OK {
			ok = "yes"
		}
		detail := r.Detail
		if !r.OK && r.Remediation != "" {
			detail += " (" + r.Remediation + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.SourceID, ok, detail)
	}
	return w.Flush()
}

// Profiles renders the profile listing.
func (f *Formatter) Profiles(profiles []ProfileDTO) error {
	if f.json {
		return f.encode(profiles)
	}
	w := tabwriter.NewWriter(f.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tSTAGES\tNAME")
	for _, p := range profiles {
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.Slug, p.Stages, p.Name)
	}
	return w.Flush()
}

// Artifacts renders a run summary.
func (f *Formatter) Artifacts(art *workflow.Artifacts) error {
	if f.json {
		return f.encode(art)
	}
	fmt.Fprintf(f.writer, "run %s (%s) finished: %s\n", art.RunID, art.Profile, art.Status)
	w := tabwriter.NewWriter(f.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tSTATUS\tSOURCE\tNOTE")
	for _, st := range art.Stages {
		note := st.Error
		if st.Cached {
			note = "cached"
		}
		if st.Remediation != "" {
			note += " (hint: " + st.Remediation + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.Name, st.Status, st.SourceID, note)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if art.ReportPath != "" {
		fmt.Fprintf(f.writer, "report: %s\n", art.ReportPath)
	}
	if art.CheckpointPath != "" {
		fmt.Fprintf(f.writer, "checkpoints: %s\n", art.CheckpointPath)
	}
	return nil
}

// Result renders any payload as JSON regardless of mode; capability payloads
// have no meaningful flat text shape.
func (f *Formatter) Result(v any) error {
	return f.encode(v)
}
