package presentation

import (
	"github.com/tiangong-ai/greenlit/internal/catalog"
	"github.com/tiangong-ai/greenlit/internal/workflow"
)

// SourceDTO is the presentation shape of a catalogue entry.
type SourceDTO struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Priority            int      `json:"priority"`
	Status              string   `json:"status"`
	Capabilities        []string `json:"capabilities"`
	RequiresCredentials bool     `json:"requires_credentials,omitempty"`
	CredentialKey       string   `json:"credential_key,omitempty"`
	BlockReason         string   `json:"block_reason,omitempty"`
	Description         string   `json:"description,omitempty"`
}

// FromDescriptor converts a catalogue descriptor to its DTO.
func FromDescriptor(d catalog.Descriptor) SourceDTO {
	caps := make([]string, len(d.Capabilities))
	for i, c := range d.Capabilities {
		caps[i] = string(c)
	}
	return SourceDTO{
		ID:                  d.ID,
		Name:                d.Name,
		Priority:            d.Priority,
		Status:              string(d.Status),
		Capabilities:        caps,
		RequiresCredentials: d.RequiresCredentials,
		CredentialKey:       d.CredentialKey,
		BlockReason:         d.BlockReason,
		Description:         d.Description,
	}
}

// FromDescriptors converts a descriptor slice, preserving order.
func FromDescriptors(descriptors []catalog.Descriptor) []SourceDTO {
	out := make([]SourceDTO, len(descriptors))
	for i, d := range descriptors {
		out[i] = FromDescriptor(d)
	}
	return out
}

// ProfileDTO is the presentation shape of a workflow profile listing.
type ProfileDTO struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Stages      int    `json:"stages"`
}

// FromProfiles converts profiles keyed by slug into a sorted listing.
func FromProfiles(profiles map[string]*workflow.Profile) []ProfileDTO {
	slugs := workflow.Slugs(profiles)
	out := make([]ProfileDTO, 0, len(slugs))
	for _, slug := range slugs {
		p := profiles[slug]
		out = append(out, ProfileDTO{
			Slug:        p.Slug,
			Name:        p.Name,
			Description: p.Description,
			Stages:      len(p.Stages),
		})
	}
	return out
}
