// Package sqlguard rejects destructive or out-of-policy SQL before it
// reaches the warehouse. The natural-language path is read-only: anything
// other than a plain read, anywhere in a multi-statement batch, is refused.
package sqlguard

import (
	"fmt"
	"strings"

	apperrors "github.com/securequery/agent-api/pkg/errors"
)

const DefaultMaxLength = 8192

// Keyword list follows the warehouse's DDL/DML surface; CREATE, REPLACE and
// MERGE are included alongside the usual suspects because they mutate state
// just as irreversibly.
var destructiveKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE",
	"CREATE", "REPLACE", "MERGE", "GRANT", "REVOKE",
}

var allowedLeading = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"EXPLAIN": true,
}

type Validator struct {
	maxLength int
}

func New(maxLength int) *Validator {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Validator{maxLength: maxLength}
}

// Validate returns nil for an acceptable read-only query, or a validation
// violation. Violation messages never echo the query text.
func (v *Validator) Validate(query string) error {
	if strings.TrimSpace(query) == "" {
		return apperrors.NewValidationViolation("empty query")
	}
	if len(query) > v.maxLength {
		return apperrors.NewValidationViolation(
			fmt.Sprintf("query exceeds maximum length of %d characters", v.maxLength))
	}

	stripped := stripComments(query)

	for _, stmt := range splitStatements(stripped) {
		tokens := tokenize(stmt)
		if len(tokens) == 0 {
			continue
		}

		if !allowedLeading[tokens[0]] {
			return apperrors.NewValidationViolation(
				fmt.Sprintf("statement must be a read, got %s", tokens[0]))
		}

		// Destructive keywords are refused anywhere in the statement, not
		// just at the top level. Conservative on purpose: a read that
		// mentions MERGE in a subexpression is rejected rather than parsed.
		for _, tok := range tokens {
			for _, kw := range destructiveKeywords {
				if tok == kw {
					return apperrors.NewValidationViolation(
						fmt.Sprintf("destructive operation %s is not permitted", kw))
				}
			}
		}
	}

	return nil
}

// stripComments removes -- line comments and /* */ block comments while
// leaving quoted string contents untouched.
func stripComments(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	inString := false
	var stringDelim byte
	for i := 0; i < len(query); i++ {
		ch := query[i]

		if inString {
			b.WriteByte(ch)
			if ch == stringDelim {
				inString = false
			}
			continue
		}

		switch {
		case ch == '\'' || ch == '"':
			inString = true
			stringDelim = ch
			b.WriteByte(ch)
		case ch == '-' && i+1 < len(query) && query[i+1] == '-':
			for i < len(query) && query[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case ch == '/' && i+1 < len(query) && query[i+1] == '*':
			i += 2
			for i+1 < len(query) && !(query[i] == '*' && query[i+1] == '/') {
				i++
			}
			i++ // skip the closing '/'
			b.WriteByte(' ')
		default:
			b.WriteByte(ch)
		}
	}

	return b.String()
}

// splitStatements splits a batch on semicolons outside quoted strings.
func splitStatements(query string) []string {
	var statements []string
	var b strings.Builder

	inString := false
	var stringDelim byte
	for i := 0; i < len(query); i++ {
		ch := query[i]

		if inString {
			b.WriteByte(ch)
			if ch == stringDelim {
				inString = false
			}
			continue
		}

		switch ch {
		case '\'', '"':
			inString = true
			stringDelim = ch
			b.WriteByte(ch)
		case ';':
			statements = append(statements, b.String())
			b.Reset()
		default:
			b.WriteByte(ch)
		}
	}
	statements = append(statements, b.String())

	return statements
}

// tokenize uppercases identifier-shaped tokens, skipping quoted strings so
// that literals never trip the keyword scan. An identifier containing a
// keyword as a substring ("created_at") is a single token and does not match.
func tokenize(stmt string) []string {
	var tokens []string
	var b strings.Builder

	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, strings.ToUpper(b.String()))
			b.Reset()
		}
	}

	inString := false
	var stringDelim byte
	for i := 0; i < len(stmt); i++ {
		ch := stmt[i]

		if inString {
			if ch == stringDelim {
				inString = false
			}
			continue
		}

		switch {
		case ch == '\'' || ch == '"':
			inString = true
			stringDelim = ch
			flush()
		case isIdentChar(ch):
			b.WriteByte(ch)
		default:
			flush()
		}
	}
	flush()

	return tokens
}

func isIdentChar(ch byte) bool {
	return ch == '_' || ch >= '0' && ch <= '9' ||
		ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}
