package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/securequery/agent-api/internal/model"
	"github.com/securequery/agent-api/internal/repository"
)

type auditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, event *model.AuditEvent) error {
	query := `
        INSERT INTO audit_events (
            id, timestamp, user_id, action, resource, phi_accessed,
            fields_accessed, query_hash, result_count, execution_time_ms,
            outcome, metadata
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.UserID,
		event.Action,
		event.Resource,
		event.PHIAccessed,
		event.FieldsAccessed,
		event.QueryHash,
		event.ResultCount,
		event.ExecutionTimeMS,
		event.Outcome,
		event.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditEvent, error) {
	query := `SELECT * FROM audit_events WHERE 1=1`
	var args []interface{}

	if v, ok := filters["user_id"]; ok {
		args = append(args, v)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if v, ok := filters["action"]; ok {
		args = append(args, v)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if v, ok := filters["outcome"]; ok {
		args = append(args, v)
		query += fmt.Sprintf(" AND outcome = $%d", len(args))
	}
	if v, ok := filters["phi_accessed"]; ok {
		args = append(args, v)
		query += fmt.Sprintf(" AND phi_accessed = $%d", len(args))
	}
	if v, ok := filters["start_date"]; ok {
		args = append(args, v)
		query += fmt.Sprintf(" AND timestamp >= $%d", len(args))
	}
	if v, ok := filters["end_date"]; ok {
		args = append(args, v)
		query += fmt.Sprintf(" AND timestamp <= $%d", len(args))
	}

	query += " ORDER BY timestamp DESC"

	if v, ok := filters["limit"].(int); ok && v > 0 {
		args = append(args, v)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var events []*model.AuditEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}

	return events, nil
}

func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit events: %w", err)
	}

	return result.RowsAffected()
}
