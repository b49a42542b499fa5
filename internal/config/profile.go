package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// LoadProfile reads a YAML briefing profile and overlays it on the default
// run configuration. An empty path returns the defaults.
func LoadProfile(path string) (briefing.Config, error) {
	cfg := briefing.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes profile YAML over the defaults and validates the
// result. Unknown keys are rejected.
func ParseProfile(data []byte) (briefing.Config, error) {
	cfg := briefing.DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse profile: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid profile: %w", err)
	}
	return cfg, nil
}
