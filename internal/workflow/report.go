package workflow

import (
	"fmt"
	"strings"
)

// RenderReport produces the Markdown run report written to the processed
// directory.
func RenderReport(art *Artifacts, ev *runEvidence) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Sustainability research: %s\n\n", art.Topic)
	fmt.Fprintf(&sb, "Profile `%s`, run `%s`, status **%s**.\n\n", art.Profile, art.RunID, art.Status)

	if len(ev.Goals) > 0 {
		sb.WriteString("## Sustainable Development Goals\n\n")
		for _, g := range ev.Goals {
			fmt.Fprintf(&sb, "- **SDG %s: %s** (score %d)\n", g.Code, g.Title, g.Score)
		}
		sb.WriteString("\n")
	}

	if len(ev.Repos) > 0 {
		sb.WriteString("## Repositories\n\n")
		sb.WriteString("| Repository | Stars | Description |\n|---|---|---|\n")
		for _, r := range ev.Repos {
			name := r.FullName
			if r.URL != "" {
				name = fmt.Sprintf("[%s](%s)", r.FullName, r.URL)
			}
			fmt.Fprintf(&sb, "| %s | %d | %s |\n", name, r.Stars, sanitizeCell(r.Description))
		}
		sb.WriteString("\n")
	}

	if len(ev.Papers) > 0 {
		sb.WriteString("## Literature\n\n")
		for _, p := range ev.Papers {
			title := p.Title
			if p.URL != "" {
				title = fmt.Sprintf("[%s](%s)", p.Title, p.URL)
			}
			fmt.Fprintf(&sb, "- %s", title)
			if p.Year > 0 {
				fmt.Fprintf(&sb, " (%d)", p.Year)
			}
			if len(p.Authors) > 0 {
				fmt.Fprintf(&sb, " by %s", strings.Join(p.Authors, ", "))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if ev.Carbon != nil {
		sb.WriteString("## Grid carbon intensity\n\n")
		fmt.Fprintf(&sb, "%s (%s): **%.1f %s**", ev.Carbon.Location, ev.Carbon.Provider,
			ev.Carbon.Intensity, ev.Carbon.Units)
		if ev.Carbon.Timestamp != "" {
			fmt.Fprintf(&sb, " as of %s", ev.Carbon.Timestamp)
		}
		sb.WriteString("\n\n")
	}

	if ev.Chart != nil && ev.Chart.ImageURL != "" {
		sb.WriteString("## Evidence volume\n\n")
		fmt.Fprintf(&sb, "![%s](%s)\n\n", ev.Chart.Title, ev.Chart.ImageURL)
	}

	if ev.Synthesis != nil {
		sb.WriteString("## Synthesis\n\n")
		sb.WriteString(ev.Synthesis.Text)
		sb.WriteString("\n\n")
		if ev.Synthesis.Model != "" {
			fmt.Fprintf(&sb, "_Generated with %s._\n\n", ev.Synthesis.Model)
		}
	}

	sb.WriteString("## Stages\n\n")
	sb.WriteString("| Stage | Capability | Status | Source | Note |\n|---|---|---|---|---|\n")
	for _, st := range art.Stages {
		source := st.SourceID
		if st.Cached {
			source += " (cached)"
		}
		note := st.Error
		if st.Remediation != "" {
			note += " (hint: " + st.Remediation + ")"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			st.Name, st.Capability, st.Status, source, sanitizeCell(note))
	}

	return sb.String()
}

func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
