package phi

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Pattern is a value-shape rule: a regular expression that marks a field as
// sensitive when its sample value matches.
type Pattern struct {
	Name     string `yaml:"name" json:"name"`
	Pattern  string `yaml:"pattern" json:"pattern"`
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Severity string `yaml:"severity" json:"severity"`
}

// Config is the classification policy table. It is consulted, never mutated
// by request handling.
type Config struct {
	Fields   []string  `yaml:"fields" json:"fields"`
	Patterns []Pattern `yaml:"patterns" json:"patterns"`
}

// LoadConfig reads a rules file, falling back to the built-in defaults when
// no path is configured.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, err
	}

	if len(cfg.Fields) == 0 && len(cfg.Patterns) == 0 {
		return Config{}, errors.New("no PHI classification rules configured")
	}

	return cfg, nil
}

func DefaultConfig() Config {
	return Config{
		Fields: []string{
			"patient_id",
			"ssn",
			"medical_record_number",
			"mrn",
			"name",
			"first_name",
			"last_name",
			"dob",
			"date_of_birth",
			"email",
			"phone",
			"address",
			"diagnosis",
		},
		Patterns: []Pattern{
			{Name: "SSN", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Enabled: true, Severity: "high"},
			{Name: "DOB", Pattern: `\b\d{1,2}/\d{1,2}/\d{4}\b`, Enabled: true, Severity: "medium"},
			{Name: "Email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Enabled: true, Severity: "medium"},
			{Name: "Phone", Pattern: `\b\d{3}-\d{3}-\d{4}\b|\(\d{3}\)\s?\d{3}-\d{4}\b`, Enabled: true, Severity: "medium"},
		},
	}
}
