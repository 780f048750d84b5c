// Package phi classifies fields and values as Protected Health Information.
// Classification is deterministic for a given configuration: the same field
// name always classifies the same way within one deployment.
package phi

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/securequery/agent-api/internal/model"
)

// Classifier decides whether a field carries PHI. It is pluggable so the
// detection heuristic can evolve without touching access-control or
// encryption call sites.
type Classifier interface {
	Classify(fieldName string, sample interface{}) bool
}

type compiledPattern struct {
	pattern Pattern
	re      *regexp.Regexp
}

// RuleClassifier classifies by a static field-name table first, then by
// value-shape patterns on a sample value.
type RuleClassifier struct {
	fields   map[string]struct{}
	patterns []compiledPattern
}

func NewClassifier(cfg Config) (*RuleClassifier, error) {
	fields := make(map[string]struct{}, len(cfg.Fields))
	for _, f := range cfg.Fields {
		fields[strings.ToLower(f)] = struct{}{}
	}

	var patterns []compiledPattern
	for _, p := range cfg.Patterns {
		if !p.Enabled {
			continue
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p.Name, err)
		}
		patterns = append(patterns, compiledPattern{pattern: p, re: re})
	}

	return &RuleClassifier{fields: fields, patterns: patterns}, nil
}

// Classify reports whether the named field is sensitive. Field names match
// case-insensitively against the static table; if the name is not listed,
// the sample value is tested against the value-shape patterns.
func (c *RuleClassifier) Classify(fieldName string, sample interface{}) bool {
	if _, ok := c.fields[strings.ToLower(fieldName)]; ok {
		return true
	}

	if sample == nil {
		return false
	}
	text, ok := sample.(string)
	if !ok {
		text = fmt.Sprintf("%v", sample)
	}
	if strings.TrimSpace(text) == "" {
		return false
	}

	for _, p := range c.patterns {
		if p.re.MatchString(text) {
			return true
		}
	}
	return false
}

// DetectFields returns the PHI-classified columns of a result set, in the
// result's column order. The first row supplies sample values for the
// value-shape patterns, mirroring how warehouse results are shaped.
func (c *RuleClassifier) DetectFields(rs *model.ResultSet) []string {
	if rs == nil || len(rs.Columns) == 0 {
		return nil
	}

	var sampleRow model.Row
	if len(rs.Rows) > 0 {
		sampleRow = rs.Rows[0]
	}

	var detected []string
	for _, col := range rs.Columns {
		var sample interface{}
		if sampleRow != nil {
			sample = sampleRow[col]
		}
		if c.Classify(col, sample) {
			detected = append(detected, col)
		}
	}
	return detected
}

// SanitizeQuery masks PHI field names in query text destined for logs.
func (c *RuleClassifier) SanitizeQuery(query string) string {
	sanitized := query
	for field := range c.fields {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(field) + `\b`)
		sanitized = re.ReplaceAllString(sanitized, "[PHI_FIELD]")
	}
	return sanitized
}
