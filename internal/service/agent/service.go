// Package agent runs the request pipeline: validate, authorize, execute,
// classify, redact, audit. Every request leaves exactly one query audit
// event behind, whatever its outcome.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	apperrors "github.com/securequery/agent-api/pkg/errors"
	"github.com/securequery/agent-api/pkg/metrics"
	"github.com/securequery/agent-api/pkg/security"

	"github.com/securequery/agent-api/internal/model"
	"github.com/securequery/agent-api/internal/phi"
	"github.com/securequery/agent-api/internal/service/access"
	"github.com/securequery/agent-api/internal/service/audit"
	"github.com/securequery/agent-api/internal/service/crypto"
	"github.com/securequery/agent-api/internal/sqlguard"
	"github.com/securequery/agent-api/internal/translator"
	"github.com/securequery/agent-api/internal/warehouse"
)

const (
	schemaCacheKey = "schema_summary"
	schemaCacheTTL = 5 * time.Minute
)

type Service struct {
	guard       *sqlguard.Validator
	access      *access.Service
	classifier  *phi.RuleClassifier
	crypto      *crypto.Service
	auditor     *audit.Service
	engine      warehouse.Engine
	translator  translator.Translator
	metrics     *metrics.Metrics
	schemaCache *cache.Cache
	logger      zerolog.Logger
}

func NewService(
	guard *sqlguard.Validator,
	accessSvc *access.Service,
	classifier *phi.RuleClassifier,
	cryptoSvc *crypto.Service,
	auditor *audit.Service,
	engine warehouse.Engine,
	tr translator.Translator,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		guard:       guard,
		access:      accessSvc,
		classifier:  classifier,
		crypto:      cryptoSvc,
		auditor:     auditor,
		engine:      engine,
		translator:  tr,
		metrics:     m,
		schemaCache: cache.New(schemaCacheTTL, 10*time.Minute),
		logger:      logger,
	}
}

// ExecuteSQL runs one raw SQL request through the full compliance pipeline.
func (s *Service) ExecuteSQL(ctx context.Context, req *model.QueryRequest) (*model.QueryResponse, error) {
	start := time.Now()
	defer func() {
		s.metrics.QueryLatency.Observe(time.Since(start).Seconds())
	}()

	queryHash := security.HashQuery(req.SQL)

	if err := s.guard.Validate(req.SQL); err != nil {
		s.metrics.QueryValidations.WithLabelValues("rejected").Inc()
		s.metrics.QueriesTotal.WithLabelValues("denied").Inc()
		s.logger.Debug().
			Str("user_id", req.UserID).
			Str("query", s.classifier.SanitizeQuery(req.SQL)).
			Msg("query rejected by validator")
		s.auditor.LogQuery(ctx, audit.QueryRecord{
			UserID:    req.UserID,
			QueryHash: queryHash,
			Outcome:   model.OutcomeDenied,
			Metadata:  map[string]interface{}{"reason": err.Error()},
		})
		return nil, err
	}
	s.metrics.QueryValidations.WithLabelValues("accepted").Inc()

	if !s.access.AuthorizeOperation(req.Role, model.OperationRead) {
		s.metrics.AccessDecisions.WithLabelValues("denied").Inc()
		s.metrics.QueriesTotal.WithLabelValues("denied").Inc()
		s.auditor.LogQuery(ctx, audit.QueryRecord{
			UserID:    req.UserID,
			QueryHash: queryHash,
			Outcome:   model.OutcomeDenied,
			Metadata:  map[string]interface{}{"reason": "role not permitted to query"},
		})
		return nil, apperrors.NewAccessDenied("role not permitted to query")
	}

	rs, err := s.engine.Execute(ctx, req.SQL)
	if err != nil {
		s.metrics.QueriesTotal.WithLabelValues("error").Inc()
		s.auditor.LogQuery(ctx, audit.QueryRecord{
			UserID:    req.UserID,
			QueryHash: queryHash,
			Outcome:   model.OutcomeError,
			Metadata:  map[string]interface{}{"stage": "execute"},
		})
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("warehouse execution failed")
		return nil, apperrors.Internal(err)
	}
	s.metrics.WarehouseLatency.Observe(rs.Elapsed.Seconds())

	phiFields := s.classifier.DetectFields(rs)

	phiAccessed := false
	var redactedFields []string
	if len(phiFields) > 0 {
		if s.access.CheckPHIAccess(req.Role, phiFields) {
			s.metrics.AccessDecisions.WithLabelValues("allowed").Inc()
			phiAccessed = true
		} else {
			s.metrics.AccessDecisions.WithLabelValues("redacted").Inc()
			if err := s.redact(ctx, rs, phiFields); err != nil {
				s.metrics.QueriesTotal.WithLabelValues("error").Inc()
				s.auditor.LogQuery(ctx, audit.QueryRecord{
					UserID:    req.UserID,
					QueryHash: queryHash,
					Outcome:   model.OutcomeError,
					Metadata:  map[string]interface{}{"stage": "redact"},
				})
				return nil, apperrors.Internal(err)
			}
			redactedFields = phiFields
		}
	}

	record := audit.QueryRecord{
		UserID:         req.UserID,
		QueryHash:      queryHash,
		ResultCount:    len(rs.Rows),
		ExecutionTime:  rs.Elapsed,
		Outcome:        model.OutcomeSuccess,
		PHIAccessed:    phiAccessed,
		FieldsAccessed: phiFields,
	}
	if len(redactedFields) > 0 {
		record.Metadata = map[string]interface{}{"redacted_fields": redactedFields}
	}
	s.auditor.LogQuery(ctx, record)
	s.metrics.QueriesTotal.WithLabelValues("success").Inc()

	return &model.QueryResponse{
		Columns:        rs.Columns,
		Rows:           rs.Rows,
		Count:          len(rs.Rows),
		Truncated:      rs.Truncated,
		ElapsedMS:      rs.Elapsed.Milliseconds(),
		RedactedFields: redactedFields,
	}, nil
}

// Query answers a natural-language question: translate, then run the
// generated SQL through the same pipeline as raw SQL.
func (s *Service) Query(ctx context.Context, req *model.QueryRequest) (*model.QueryResponse, error) {
	if s.translator == nil {
		return nil, apperrors.BadRequest("natural language queries are not configured", nil)
	}

	schema, err := s.schemaSummary(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("schema summary unavailable, translating without it")
		schema = ""
	}

	sql, err := s.translator.Translate(ctx, req.Question, schema)
	if err != nil {
		s.auditor.LogAccess(ctx, req.UserID, model.AuditActionQuery, "translator",
			model.OutcomeError, nil)
		return nil, apperrors.Internal(err)
	}

	sqlReq := &model.QueryRequest{UserID: req.UserID, Role: req.Role, SQL: sql}
	resp, err := s.ExecuteSQL(ctx, sqlReq)
	if err != nil {
		return nil, err
	}
	resp.SQL = sql

	if explanation, expErr := s.translator.Explain(ctx, req.Question, sql,
		fmt.Sprintf("%d rows", resp.Count)); expErr == nil {
		resp.Explanation = explanation
	}

	return resp, nil
}

// ListTables surfaces the schema catalog; every lookup is audited as a read.
func (s *Service) ListTables(ctx context.Context, userID string) ([]string, error) {
	tables, err := s.engine.ListTables(ctx)
	if err != nil {
		s.auditor.LogAccess(ctx, userID, model.AuditActionRead, "schema", model.OutcomeError, nil)
		return nil, apperrors.Internal(err)
	}
	s.auditor.LogAccess(ctx, userID, model.AuditActionRead, "schema", model.OutcomeSuccess, nil)
	return tables, nil
}

func (s *Service) DescribeTable(ctx context.Context, userID, table string) ([]model.ColumnInfo, error) {
	columns, err := s.engine.DescribeTable(ctx, table)
	if err != nil {
		s.auditor.LogAccess(ctx, userID, model.AuditActionRead, "schema:"+table, model.OutcomeError, nil)
		return nil, apperrors.NotFound("table", err)
	}
	s.auditor.LogAccess(ctx, userID, model.AuditActionRead, "schema:"+table, model.OutcomeSuccess, nil)
	return columns, nil
}

// redact replaces PHI cells with recoverable ciphertext in place. Nil cells
// stay nil; there is nothing to protect.
func (s *Service) redact(ctx context.Context, rs *model.ResultSet, phiFields []string) error {
	for _, row := range rs.Rows {
		for _, field := range phiFields {
			value, ok := row[field]
			if !ok || value == nil {
				continue
			}
			encrypted, err := s.crypto.EncryptField(ctx, field, []byte(fmt.Sprint(value)))
			if err != nil {
				return err
			}
			row[field] = encrypted.String()
			s.metrics.PHIRedactions.Inc()
		}
	}
	return nil
}

// schemaSummary renders a compact one-line-per-table schema for the
// translator prompt, cached briefly to spare the catalog.
func (s *Service) schemaSummary(ctx context.Context) (string, error) {
	if cached, ok := s.schemaCache.Get(schemaCacheKey); ok {
		return cached.(string), nil
	}

	tables, err := s.engine.ListTables(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, table := range tables {
		columns, err := s.engine.DescribeTable(ctx, table)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(columns))
		for i, col := range columns {
			parts[i] = col.Name + " " + col.Type
		}
		fmt.Fprintf(&b, "%s(%s)\n", table, strings.Join(parts, ", "))
	}

	summary := b.String()
	s.schemaCache.Set(schemaCacheKey, summary, cache.DefaultExpiration)
	return summary, nil
}
