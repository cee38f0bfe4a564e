package graphload

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// internalPrefix marks dependency-order entries that are configuration
// internals, not loadable entity types.
const internalPrefix = '_'

type dependencyConfig struct {
	DependencyOrder []string `yaml:"dependency_order"`
}

// LoadDependencyOrder reads the topologically ordered list of logical type
// names from the yaml config. The order is supplied by configuration, not
// computed here; it is the contract both loaders sequence on.
func LoadDependencyOrder(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dependency config: %w", err)
	}
	var config dependencyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse dependency config %s: %w", path, err)
	}
	if len(config.DependencyOrder) == 0 {
		return nil, fmt.Errorf("no dependency_order found in %s", path)
	}
	return config.DependencyOrder, nil
}

// FilterDependencyOrder drops internal markers and the structural Program and
// Project root types, which the bootstrapper owns. Order is preserved.
func FilterDependencyOrder(order []string) []string {
	filtered := make([]string, 0, len(order))
	for _, name := range order {
		if name == "" || name[0] == internalPrefix {
			continue
		}
		if name == "Program" || name == "Project" {
			continue
		}
		filtered = append(filtered, name)
	}
	return filtered
}
