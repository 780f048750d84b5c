package audit

import (
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/securequery/agent-api/internal/model"
)

// FallbackSink is the local last-resort destination for audit events the
// durable sink could not take. It writes structured JSON lines so a delayed
// entry can be replayed into the trail later; it records field names and
// hashes only, never values, same as the durable sink.
type FallbackSink struct {
	mu sync.Mutex
	zl zerolog.Logger
}

func NewFallbackSink(w io.Writer) *FallbackSink {
	return &FallbackSink{
		zl: zerolog.New(w).With().Timestamp().Logger(),
	}
}

func (f *FallbackSink) Write(event *model.AuditEvent, sinkErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.zl.Error().
		Str("event_type", "audit_fallback").
		Str("id", event.ID.String()).
		Time("event_timestamp", event.Timestamp).
		Str("user_id", event.UserID).
		Str("action", event.Action).
		Str("resource", event.Resource).
		Bool("phi_accessed", event.PHIAccessed).
		Strs("fields_accessed", event.FieldsAccessed).
		Str("query_hash", event.QueryHash).
		Int("result_count", event.ResultCount).
		Int64("execution_time_ms", event.ExecutionTimeMS).
		Str("outcome", event.Outcome).
		RawJSON("metadata", orEmptyJSON(event.Metadata)).
		AnErr("sink_error", sinkErr).
		Msg("audit sink unavailable, event diverted to fallback")
}

func orEmptyJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
