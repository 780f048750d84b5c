// Package audit is the system of record for compliance review. Every
// access, query and disposal action produces exactly one immutable event,
// whatever its outcome. A failing sink diverts the event to a local fallback
// rather than failing the caller's operation: a lost user-facing response is
// worse than a delayed audit entry, but the failure itself is alerted.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/securequery/agent-api/pkg/metrics"

	"github.com/securequery/agent-api/internal/alert"
	"github.com/securequery/agent-api/internal/model"
	"github.com/securequery/agent-api/internal/repository"
)

const defaultWriteTimeout = 5 * time.Second

type Service struct {
	repo         repository.AuditRepository
	fallback     *FallbackSink
	notifier     alert.Notifier
	metrics      *metrics.Metrics
	writeTimeout time.Duration

	mu     sync.Mutex
	lastTS time.Time
}

type Option func(*Service)

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Service) { s.writeTimeout = d }
}

func NewService(repo repository.AuditRepository, fallback *FallbackSink, notifier alert.Notifier, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		fallback:     fallback,
		notifier:     notifier,
		metrics:      m,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogAccess appends a general-purpose event.
func (s *Service) LogAccess(ctx context.Context, userID, action, resource, outcome string, metadata map[string]interface{}) {
	s.append(ctx, &model.AuditEvent{
		UserID:   userID,
		Action:   action,
		Resource: resource,
		Outcome:  outcome,
		Metadata: marshalMetadata(metadata),
	})
}

// LogPHIAccess appends a PHI access event. PHIAccessed is always true here;
// that is the point of the specialized entry point.
func (s *Service) LogPHIAccess(ctx context.Context, userID, recordID string, fieldsAccessed []string, purpose string) {
	s.append(ctx, &model.AuditEvent{
		UserID:         userID,
		Action:         model.AuditActionRead,
		Resource:       "record:" + recordID,
		PHIAccessed:    true,
		FieldsAccessed: fieldsAccessed,
		Metadata:       marshalMetadata(map[string]interface{}{"purpose": purpose}),
	})
}

// QueryRecord carries the facts of one query execution. Only the one-way
// hash of the query text is retained; raw SQL may embed PHI literals.
type QueryRecord struct {
	UserID         string
	QueryHash      string
	ResultCount    int
	ExecutionTime  time.Duration
	Outcome        string
	PHIAccessed    bool
	FieldsAccessed []string
	Metadata       map[string]interface{}
}

// LogQuery appends a query execution event.
func (s *Service) LogQuery(ctx context.Context, rec QueryRecord) {
	s.append(ctx, &model.AuditEvent{
		UserID:          rec.UserID,
		Action:          model.AuditActionQuery,
		Resource:        "warehouse",
		PHIAccessed:     rec.PHIAccessed,
		FieldsAccessed:  rec.FieldsAccessed,
		QueryHash:       rec.QueryHash,
		ResultCount:     rec.ResultCount,
		ExecutionTimeMS: rec.ExecutionTime.Milliseconds(),
		Outcome:         rec.Outcome,
		Metadata:        marshalMetadata(rec.Metadata),
	})
}

// append finalizes and writes one event. The write context is detached from
// the caller's cancellation: an aborted request must still leave its trail.
func (s *Service) append(ctx context.Context, event *model.AuditEvent) {
	event.ID = uuid.New()
	event.Timestamp = s.nextTimestamp()
	if event.FieldsAccessed == nil {
		event.FieldsAccessed = []string{}
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	if err := s.repo.Create(writeCtx, event); err != nil {
		s.metrics.AuditFallbacks.Inc()
		s.fallback.Write(event, err)
		if s.notifier != nil {
			s.notifier.Notify(writeCtx, alert.Event{
				Kind: alert.KindAuditSinkOutage,
				Details: map[string]string{
					"event_id": event.ID.String(),
					"action":   event.Action,
				},
			})
		}
		return
	}

	s.metrics.AuditEventsWritten.Inc()
}

// nextTimestamp issues monotonically non-decreasing timestamps within this
// process, even under clock adjustment or concurrent callers.
func (s *Service) nextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if now.Before(s.lastTS) {
		now = s.lastTS
	}
	s.lastTS = now
	return now
}

// List exposes the trail for compliance review. Read-only: there is no
// update or single-event delete anywhere on this service.
func (s *Service) List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditEvent, error) {
	return s.repo.List(ctx, filters)
}

func marshalMetadata(metadata map[string]interface{}) json.RawMessage {
	if len(metadata) == 0 {
		return nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		// The event must still record that it had context, even if that
		// context could not be serialized.
		return json.RawMessage(`{"metadata_error":"unmarshalable"}`)
	}
	return raw
}
