package adapter

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	m "doscc.dev/pkg/doscc/internal/model"
)

// ReportStore persists the record of the last successful build so other
// commands can report on it.
type ReportStore interface {
	Save(path string, result m.BuildResult) error
	Load(path string) (m.BuildResult, error)
}

type yamlReportStore struct{}

// NewReportStore returns a ReportStore backed by a YAML file.
func NewReportStore() ReportStore {
	return &yamlReportStore{}
}

// Save writes the build result, creating parent directories as needed.
func (s *yamlReportStore) Save(path string, result m.BuildResult) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding build report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing build report: %w", err)
	}

	return nil
}

// Load reads a previously saved build result.
func (s *yamlReportStore) Load(path string) (m.BuildResult, error) {
	var result m.BuildResult

	data, err := os.ReadFile(path)
	if err != nil {
		return result, err
	}

	if err := yaml.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("decoding build report: %w", err)
	}

	return result, nil
}
