package repository

import (
	"context"
	"time"

	"github.com/securequery/agent-api/internal/model"
)

// AuditRepository is the durable append sink for audit events. The interface
// deliberately exposes no update: events are written once and only ever
// removed by the retention worker.
type AuditRepository interface {
	Create(ctx context.Context, event *model.AuditEvent) error
	List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditEvent, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
