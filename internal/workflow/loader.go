package workflow

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtinProfiles embed.FS

// LoadBuiltin returns the embedded profiles keyed by slug.
func LoadBuiltin() (map[string]*Profile, error) {
	entries, err := builtinProfiles.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("reading embedded profiles: %w", err)
	}
	out := make(map[string]*Profile, len(entries))
	for _, entry := range entries {
		data, err := builtinProfiles.ReadFile("profiles/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading embedded profile %s: %w", entry.Name(), err)
		}
		p, err := parseProfile(data, entry.Name())
		if err != nil {
			return nil, err
		}
		out[p.Slug] = p
	}
	return out, nil
}

// LoadDir loads user profiles from a directory, overlaying the builtins.
// A user profile with a builtin's slug replaces it. A missing directory is
// not an error.
func LoadDir(dir string) (map[string]*Profile, error) {
	profiles, err := LoadBuiltin()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return profiles, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return profiles, nil
		}
		return nil, fmt.Errorf("reading profile dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied profile dir
		if err != nil {
			return nil, fmt.Errorf("reading profile %s: %w", path, err)
		}
		p, err := parseProfile(data, entry.Name())
		if err != nil {
			return nil, err
		}
		profiles[p.Slug] = p
	}
	return profiles, nil
}

func parseProfile(data []byte, source string) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("%s: %v", source, err)}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Slugs returns profile slugs in sorted order for stable listings.
func Slugs(profiles map[string]*Profile) []string {
	out := make([]string, 0, len(profiles))
	for slug := range profiles {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
