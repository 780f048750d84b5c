package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Action types
const (
	AuditActionRead         = "READ"
	AuditActionWrite        = "WRITE"
	AuditActionDelete       = "DELETE"
	AuditActionQuery        = "QUERY"
	AuditActionDataDisposal = "DATA_DISPOSAL"
)

// Outcomes
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeError   = "ERROR"
	OutcomeDenied  = "DENIED"
)

// AuditEvent is the immutable record of one access or operation. It is
// created exactly once per logged operation and never updated or deleted by
// the application; retention is handled by the disposal worker, which audits
// its own purges.
type AuditEvent struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	Timestamp       time.Time       `json:"timestamp" db:"timestamp"`
	UserID          string          `json:"user_id" db:"user_id"`
	Action          string          `json:"action" db:"action"`
	Resource        string          `json:"resource" db:"resource"`
	PHIAccessed     bool            `json:"phi_accessed" db:"phi_accessed"`
	FieldsAccessed  pq.StringArray  `json:"fields_accessed" db:"fields_accessed"`
	QueryHash       string          `json:"query_hash,omitempty" db:"query_hash"`
	ResultCount     int             `json:"result_count" db:"result_count"`
	ExecutionTimeMS int64           `json:"execution_time_ms" db:"execution_time_ms"`
	Outcome         string          `json:"outcome" db:"outcome"`
	Metadata        json.RawMessage `json:"metadata,omitempty" db:"metadata"`
}
