package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalYAML renders cfg with secrets redacted.
func MarshalYAML(cfg Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
