package execution

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MissingCredentialError reports an absent credential together with an
// actionable remediation hint.
type MissingCredentialError struct {
	Key string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credential %q: set the %s environment variable or add it to the secrets file", e.Key, e.Key)
}

// Remediation returns the user-facing hint for the missing credential.
func (e *MissingCredentialError) Remediation() string {
	return fmt.Sprintf("set %s in the environment or secrets file", e.Key)
}

// Secrets is an opaque credential bundle. Values are never logged; the
// Stringer prints only redacted keys.
type Secrets struct {
	values map[string]string
}

// NewSecrets builds a bundle from explicit key/value pairs.
func NewSecrets(values map[string]string) Secrets {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		if v != "" {
			copied[k] = v
		}
	}
	return Secrets{values: copied}
}

// LoadSecrets merges a YAML secrets file (flat string map, optional) with
// process environment variables. Environment wins so operators can override
// a checked-in scaffold file without editing it.
func LoadSecrets(path string, envKeys []string) (Secrets, error) {
	merged := make(map[string]string)

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied secrets path
		if err != nil {
			if !os.IsNotExist(err) {
				return Secrets{}, fmt.Errorf("reading secrets file %s: %w", path, err)
			}
		} else {
			var fromFile map[string]string
			if err := yaml.Unmarshal(data, &fromFile); err != nil {
				return Secrets{}, fmt.Errorf("parsing secrets file %s: %w", path, err)
			}
			for k, v := range fromFile {
				if v != "" {
					merged[strings.ToUpper(k)] = v
				}
			}
		}
	}

	for _, key := range envKeys {
		if v := os.Getenv(key); v != "" {
			merged[key] = v
		}
	}

	return Secrets{values: merged}, nil
}

// Resolve returns the value for key or a MissingCredentialError.
func (s Secrets) Resolve(key string) (string, error) {
	v, ok := s.values[key]
	if !ok || v == "" {
		return "", &MissingCredentialError{Key: key}
	}
	return v, nil
}

// String prints only which keys are present, never the values.
func (s Secrets) String() string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k+"=<redacted>")
	}
	return "Secrets{" + strings.Join(keys, " ") + "}"
}
