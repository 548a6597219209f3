package validator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy holds operator-supplied overrides for the read-only policy,
// loaded from an optional YAML file.
type Policy struct {
	// ForbiddenKeywords are rejected anywhere in a statement, in addition
	// to the built-in set.
	ForbiddenKeywords []string `yaml:"forbidden_keywords"`

	// MaxQueryLength overrides the maximum accepted statement length.
	MaxQueryLength int `yaml:"max_query_length"`
}

// LoadPolicy reads a policy override file. A missing path returns an empty
// policy rather than an error so deployments without overrides need no file.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return &Policy{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Policy{}, nil
		}
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	return &policy, nil
}
