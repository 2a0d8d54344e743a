package signals

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileHealth reads the latest health snapshot from a YAML file on every call,
// so an external exporter can rewrite the file between ticks.
type FileHealth struct {
	path string
}

// NewFileHealth creates a file-backed health provider.
func NewFileHealth(path string) *FileHealth {
	return &FileHealth{path: path}
}

func (f *FileHealth) Latest(_ context.Context) (*HealthSnapshot, error) {
	var snap HealthSnapshot
	if err := readYAML(f.path, &snap); err != nil {
		return nil, fmt.Errorf("health snapshot: %w", err)
	}
	return &snap, nil
}

// FileEnvironment reads the current environment snapshot from a YAML file.
// The location is ignored; the file is assumed to describe the user's surroundings.
type FileEnvironment struct {
	path string
}

// NewFileEnvironment creates a file-backed environment provider.
func NewFileEnvironment(path string) *FileEnvironment {
	return &FileEnvironment{path: path}
}

func (f *FileEnvironment) Current(_ context.Context, _ Location) (*EnvironmentSnapshot, error) {
	var snap EnvironmentSnapshot
	if err := readYAML(f.path, &snap); err != nil {
		return nil, fmt.Errorf("environment snapshot: %w", err)
	}
	return &snap, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
