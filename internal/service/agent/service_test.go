package agent

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/securequery/agent-api/pkg/errors"
	"github.com/securequery/agent-api/pkg/metrics"
	"github.com/securequery/agent-api/pkg/security"

	"github.com/securequery/agent-api/internal/model"
	"github.com/securequery/agent-api/internal/phi"
	"github.com/securequery/agent-api/internal/service/access"
	"github.com/securequery/agent-api/internal/service/audit"
	"github.com/securequery/agent-api/internal/service/crypto"
	"github.com/securequery/agent-api/internal/sqlguard"
)

type memoryRepo struct {
	mu     sync.Mutex
	events []*model.AuditEvent
}

func (m *memoryRepo) Create(ctx context.Context, event *model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *event
	m.events = append(m.events, &copied)
	return nil
}

func (m *memoryRepo) List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events, nil
}

func (m *memoryRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *memoryRepo) queryEvents() []*model.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AuditEvent
	for _, ev := range m.events {
		if ev.Action == model.AuditActionQuery {
			out = append(out, ev)
		}
	}
	return out
}

type fakeEngine struct {
	result *model.ResultSet
	err    error
}

func (f *fakeEngine) Execute(ctx context.Context, query string) (*model.ResultSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	// Hand out a deep copy so redaction does not corrupt the fixture.
	rs := &model.ResultSet{
		Columns: append([]string(nil), f.result.Columns...),
		Elapsed: f.result.Elapsed,
	}
	for _, row := range f.result.Rows {
		copied := make(model.Row, len(row))
		for k, v := range row {
			copied[k] = v
		}
		rs.Rows = append(rs.Rows, copied)
	}
	return rs, nil
}

func (f *fakeEngine) ListTables(ctx context.Context) ([]string, error) {
	return []string{"patients"}, nil
}

func (f *fakeEngine) DescribeTable(ctx context.Context, table string) ([]model.ColumnInfo, error) {
	return []model.ColumnInfo{{Name: "name", Type: "text"}, {Name: "ssn", Type: "text"}}, nil
}

type fakeTranslator struct {
	sql string
	err error
}

func (f *fakeTranslator) Translate(ctx context.Context, question, schema string) (string, error) {
	return f.sql, f.err
}

func (f *fakeTranslator) Explain(ctx context.Context, question, sql, summary string) (string, error) {
	return "explanation", nil
}

func patientResult() *model.ResultSet {
	return &model.ResultSet{
		Columns: []string{"name", "ssn", "visit_count"},
		Rows: []model.Row{
			{"name": "Jane Roe", "ssn": "123-45-6789", "visit_count": 4},
			{"name": "John Doe", "ssn": "987-65-4321", "visit_count": 2},
		},
		Elapsed: 25 * time.Millisecond,
	}
}

func newTestService(t *testing.T, engine *fakeEngine, tr *fakeTranslator) (*Service, *memoryRepo, security.Encryptor) {
	t.Helper()

	classifier, err := phi.NewClassifier(phi.DefaultConfig())
	require.NoError(t, err)

	keys := security.DeriveKeys(map[int]string{1: "agent-test-pass"}, []byte("agent-test-salt"))
	encryptor, err := security.NewAESEncryptor(keys)
	require.NoError(t, err)

	repo := &memoryRepo{}
	m := metrics.New("test_agent", prometheus.NewRegistry())
	auditor := audit.NewService(repo, audit.NewFallbackSink(&bytes.Buffer{}), nil, m)
	cryptoSvc := crypto.NewService(encryptor, auditor, nil, m)
	accessSvc := access.NewService(classifier)

	svc := NewService(
		sqlguard.New(0),
		accessSvc,
		classifier,
		cryptoSvc,
		auditor,
		engine,
		tr,
		m,
		zerolog.Nop(),
	)
	return svc, repo, encryptor
}

func TestExecuteSQLRedactsPHIForAnalyst(t *testing.T) {
	engine := &fakeEngine{result: patientResult()}
	svc, repo, encryptor := newTestService(t, engine, nil)

	resp, err := svc.ExecuteSQL(context.Background(), &model.QueryRequest{
		UserID: "analyst-1",
		Role:   model.RoleAnalyst,
		SQL:    "SELECT name, ssn, visit_count FROM patients",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "ssn"}, resp.RedactedFields)
	assert.Equal(t, 2, resp.Count)

	// No plaintext PHI anywhere in the returned rows; ciphertext decrypts
	// back to the original for an authorized reader.
	for i, row := range resp.Rows {
		for _, field := range []string{"name", "ssn"} {
			cell, ok := row[field].(string)
			require.True(t, ok)
			assert.True(t, security.IsEncryptedValue(cell), "row %d field %s", i, field)

			value, err := security.ParseEncryptedValue(cell)
			require.NoError(t, err)
			plaintext, err := encryptor.Decrypt(value)
			require.NoError(t, err)
			assert.Equal(t, patientResult().Rows[i][field], string(plaintext))
		}
		assert.Equal(t, patientResult().Rows[i]["visit_count"], row["visit_count"])
	}

	// Two identical plaintexts in different rows must not share ciphertext.
	assert.NotEqual(t, resp.Rows[0]["ssn"], resp.Rows[1]["ssn"])

	events := repo.queryEvents()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, model.OutcomeSuccess, ev.Outcome)
	assert.False(t, ev.PHIAccessed)
	assert.Contains(t, string(ev.Metadata), "redacted_fields")
	assert.NotContains(t, string(ev.Metadata), "123-45-6789")
}

func TestExecuteSQLReturnsPlaintextForProvider(t *testing.T) {
	engine := &fakeEngine{result: patientResult()}
	svc, repo, _ := newTestService(t, engine, nil)

	resp, err := svc.ExecuteSQL(context.Background(), &model.QueryRequest{
		UserID: "provider-1",
		Role:   model.RoleHealthcareProvider,
		SQL:    "SELECT name, ssn, visit_count FROM patients",
	})
	require.NoError(t, err)

	assert.Empty(t, resp.RedactedFields)
	assert.Equal(t, "Jane Roe", resp.Rows[0]["name"])
	assert.Equal(t, "123-45-6789", resp.Rows[0]["ssn"])

	events := repo.queryEvents()
	require.Len(t, events, 1)
	ev := events[0]
	assert.True(t, ev.PHIAccessed)
	assert.Equal(t, []string{"name", "ssn"}, []string(ev.FieldsAccessed))
	assert.Equal(t, 2, ev.ResultCount)
}

func TestExecuteSQLDeniesDestructive(t *testing.T) {
	engine := &fakeEngine{result: patientResult()}
	svc, repo, _ := newTestService(t, engine, nil)

	_, err := svc.ExecuteSQL(context.Background(), &model.QueryRequest{
		UserID: "analyst-1",
		Role:   model.RoleAnalyst,
		SQL:    "DELETE FROM patients WHERE id=1",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationViolation(err))

	// Validation failure does not bypass auditing.
	events := repo.queryEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutcomeDenied, events[0].Outcome)
	assert.NotEmpty(t, events[0].QueryHash)
}

func TestExecuteSQLDeniesUnknownRole(t *testing.T) {
	engine := &fakeEngine{result: patientResult()}
	svc, repo, _ := newTestService(t, engine, nil)

	_, err := svc.ExecuteSQL(context.Background(), &model.QueryRequest{
		UserID: "ghost",
		Role:   model.RoleUnknown,
		SQL:    "SELECT 1",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsAccessDenied(err))

	events := repo.queryEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutcomeDenied, events[0].Outcome)
}

func TestExecuteSQLAuditsEngineFailure(t *testing.T) {
	engine := &fakeEngine{err: errors.New("warehouse timeout")}
	svc, repo, _ := newTestService(t, engine, nil)

	_, err := svc.ExecuteSQL(context.Background(), &model.QueryRequest{
		UserID: "analyst-1",
		Role:   model.RoleAnalyst,
		SQL:    "SELECT 1",
	})
	require.Error(t, err)

	events := repo.queryEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutcomeError, events[0].Outcome)
}

func TestQueryTranslatesThenExecutes(t *testing.T) {
	engine := &fakeEngine{result: patientResult()}
	tr := &fakeTranslator{sql: "SELECT name, ssn, visit_count FROM patients LIMIT 100"}
	svc, repo, _ := newTestService(t, engine, tr)

	resp, err := svc.Query(context.Background(), &model.QueryRequest{
		UserID:   "analyst-1",
		Role:     model.RoleAnalyst,
		Question: "how many visits per patient?",
	})
	require.NoError(t, err)

	assert.Equal(t, tr.sql, resp.SQL)
	assert.Equal(t, "explanation", resp.Explanation)
	assert.Equal(t, []string{"name", "ssn"}, resp.RedactedFields)
	require.Len(t, repo.queryEvents(), 1)
}

func TestQueryRejectsDestructiveTranslation(t *testing.T) {
	engine := &fakeEngine{result: patientResult()}
	tr := &fakeTranslator{sql: "DROP TABLE patients"}
	svc, repo, _ := newTestService(t, engine, tr)

	_, err := svc.Query(context.Background(), &model.QueryRequest{
		UserID:   "analyst-1",
		Role:     model.RoleAnalyst,
		Question: "drop everything",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationViolation(err))

	events := repo.queryEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutcomeDenied, events[0].Outcome)
}
