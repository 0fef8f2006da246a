package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// LoadBuiltin loads the catalogue bundled with the binary.
func LoadBuiltin() (*Registry, error) {
	return loadYAML(builtinCatalog, "builtin catalog")
}

// LoadFile loads a catalogue from an external YAML file. Used by operators to
// override the builtin catalogue and by tests.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied catalog path
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("reading catalog %s: %v", path, err)}
	}
	return loadYAML(data, path)
}

func loadYAML(data []byte, origin string) (*Registry, error) {
	var descriptors []Descriptor
	if err := yaml.Unmarshal(data, &descriptors); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("parsing catalog %s: %v", origin, err)}
	}
	if len(descriptors) == 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("catalog %s declares no sources", origin)}
	}
	return Load(descriptors)
}
