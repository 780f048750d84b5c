package sqlguard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/securequery/agent-api/pkg/errors"
)

func TestValidateAcceptsReads(t *testing.T) {
	v := New(0)

	queries := []string{
		"SELECT COUNT(*) FROM patients",
		"select name from departments limit 10",
		"WITH recent AS (SELECT * FROM visits) SELECT * FROM recent",
		"EXPLAIN SELECT 1",
		"SELECT * FROM visits -- trailing comment",
		"SELECT * FROM visits WHERE note = 'please DELETE this row'",
		"SELECT created_at, updated_at FROM visits",
		"SELECT * FROM visits; SELECT * FROM labs",
	}

	for _, q := range queries {
		assert.NoError(t, v.Validate(q), "query: %s", q)
	}
}

func TestValidateRejectsDestructive(t *testing.T) {
	v := New(0)

	queries := []string{
		"DELETE FROM patients WHERE id=1",
		"DROP TABLE patients",
		"delete from patients",
		"INSERT INTO patients VALUES (1)",
		"UPDATE patients SET name='x'",
		"TRUNCATE TABLE visits",
		"ALTER TABLE patients ADD COLUMN x int",
		"CREATE TABLE shadow AS SELECT * FROM patients",
		"MERGE INTO patients USING staging ON true",
		"GRANT SELECT ON patients TO analyst",
		// Destructive sub-statement hidden behind a read.
		"SELECT 1; DROP TABLE patients",
		// Comments must not hide the operation.
		"/* harmless */ DROP TABLE patients",
		"-- comment\nDELETE FROM patients",
		"SELECT 1; /* x */ truncate table visits",
	}

	for _, q := range queries {
		err := v.Validate(q)
		assert.Error(t, err, "query: %s", q)
		assert.True(t, apperrors.IsValidationViolation(err), "query: %s", q)
		// The violation message must not echo the query text.
		assert.NotContains(t, err.Error(), "patients")
	}
}

func TestValidateRejectsNonReadLeading(t *testing.T) {
	v := New(0)

	err := v.Validate("VACUUM visits")
	assert.Error(t, err)
	assert.True(t, apperrors.IsValidationViolation(err))
}

func TestValidateRejectsEmptyAndOversized(t *testing.T) {
	v := New(100)

	assert.Error(t, v.Validate(""))
	assert.Error(t, v.Validate("   \n\t"))

	long := "SELECT * FROM visits WHERE id IN (" + strings.Repeat("1,", 200) + "1)"
	err := v.Validate(long)
	assert.Error(t, err)
	assert.True(t, apperrors.IsValidationViolation(err))

	assert.NoError(t, v.Validate("SELECT 1"))
}

func TestValidateKeywordInsideIdentifier(t *testing.T) {
	v := New(0)

	// Column and table names embedding keywords are fine.
	assert.NoError(t, v.Validate("SELECT created_at, dropped_calls FROM updates_log"))
	assert.NoError(t, v.Validate("SELECT inserted_total FROM merge_history"))
}

func TestValidateKeywordInStringLiteral(t *testing.T) {
	v := New(0)

	assert.NoError(t, v.Validate(`SELECT * FROM notes WHERE body = 'DROP TABLE x'`))
	assert.NoError(t, v.Validate(`SELECT * FROM notes WHERE body = "UPDATE everything"`))
}
