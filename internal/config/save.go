package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultConfigTemplate is written on first run so users have a commented
// starting point instead of an empty file.
const defaultConfigTemplate = `# greenlit configuration
# cache_dir: .cache/greenlit
# secrets_file: .greenlit/secrets.yaml
# enabled_sources: []        # empty enables every catalogued source
# profile_dir: ~/.config/greenlit/profiles
#
# retry:
#   max_attempts: 3
#   base_delay: 1s
#   multiplier: 2
#   jitter: true
#   deadline: 2m
#
# cache:
#   disabled: false
#   default_ttl: 6h
#   ttls:
#     carbon-intensity: 15m
#     taxonomy-map: 24h
#
# synthesis:
#   endpoint: https://api.openai.com/v1/responses
#   model: o4-mini-deep-research
#
# tracing:
#   enabled: false
#   exporter: file           # none | file | stdout | otlp
`

// WriteDefaultConfig creates a commented default config file at path,
// creating parent directories as needed. Refuses to overwrite.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
