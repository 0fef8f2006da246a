// Package catalog is the declarative catalogue of external data sources.
// Descriptors capture priority, lifecycle status, capability tags, and
// credential requirements; the Registry derives a capability index used for
// deterministic source selection. The package is pure data plus validation
// and performs no I/O beyond parsing YAML handed to it.
package catalog

import "fmt"

// Status is the lifecycle state of a data source.
type Status string

const (
	StatusActive     Status = "active"
	StatusTrial      Status = "trial"
	StatusDeprecated Status = "deprecated"
	StatusBlocked    Status = "blocked"
)

func (s Status) valid() bool {
	switch s {
	case StatusActive, StatusTrial, StatusDeprecated, StatusBlocked:
		return true
	default:
		return false
	}
}

// Descriptor is the metadata for a single data source. Descriptors are loaded
// once at registry construction and immutable thereafter.
type Descriptor struct {
	ID                  string       `yaml:"id" json:"id"`
	Name                string       `yaml:"name" json:"name"`
	Priority            int          `yaml:"priority" json:"priority"`
	Status              Status       `yaml:"status" json:"status"`
	Capabilities        []Capability `yaml:"capabilities" json:"capabilities"`
	RequiresCredentials bool         `yaml:"requires_credentials" json:"requires_credentials"`
	CredentialKey       string       `yaml:"credential_key,omitempty" json:"credential_key,omitempty"`
	BlockReason         string       `yaml:"block_reason,omitempty" json:"block_reason,omitempty"`
	Description         string       `yaml:"description,omitempty" json:"description,omitempty"`
}

// validate checks internal consistency of a single descriptor.
func (d Descriptor) validate() error {
	if d.ID == "" {
		return &ConfigError{Reason: "descriptor is missing an id"}
	}
	if !d.Status.valid() {
		return &ConfigError{Reason: fmt.Sprintf("source %q has unknown status %q", d.ID, d.Status)}
	}
	if d.Status == StatusBlocked && d.BlockReason == "" {
		return &ConfigError{Reason: fmt.Sprintf("source %q is blocked but carries no block_reason", d.ID)}
	}
	if len(d.Capabilities) == 0 {
		return &ConfigError{Reason: fmt.Sprintf("source %q declares no capabilities", d.ID)}
	}
	for _, c := range d.Capabilities {
		if !Known(c) {
			return &ConfigError{Reason: fmt.Sprintf("source %q declares unknown capability %q", d.ID, c)}
		}
	}
	if d.RequiresCredentials && d.CredentialKey == "" {
		return &ConfigError{Reason: fmt.Sprintf("source %q requires credentials but names no credential_key", d.ID)}
	}
	return nil
}
