// Package alert fans security events out to the channels operators actually
// watch. Decryption failures and audit sink outages must be independently
// alertable: they are signals of tampering or evidence loss, not ordinary
// request errors.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/securequery/agent-api/pkg/messaging"
	"github.com/securequery/agent-api/pkg/metrics"

	"github.com/securequery/agent-api/internal/email"
)

const channel = "security.alerts"

// Alert kinds
const (
	KindDecryptionFailure = "decryption_failure"
	KindAuditSinkOutage   = "audit_sink_outage"
)

type Event struct {
	Kind    string            `json:"kind"`
	At      time.Time         `json:"at"`
	Details map[string]string `json:"details,omitempty"`
}

// Notifier raises a security alert. Implementations must never fail the
// caller's request path; delivery is best effort on every channel.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type Service struct {
	broker  messaging.Broker
	mailer  email.Service
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewService builds a notifier. Both broker and mailer are optional; the
// structured log line is always emitted.
func NewService(broker messaging.Broker, mailer email.Service, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		broker:  broker,
		mailer:  mailer,
		metrics: m,
		logger:  logger,
	}
}

func (s *Service) Notify(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	s.metrics.AlertsPublished.WithLabelValues(event.Kind).Inc()

	logEvent := s.logger.Warn().
		Str("alert_kind", event.Kind).
		Time("alert_at", event.At)
	for k, v := range event.Details {
		logEvent = logEvent.Str(k, v)
	}
	logEvent.Msg("security alert")

	if s.broker != nil {
		if err := s.broker.Publish(ctx, channel, messaging.Message{
			Type:    event.Kind,
			Payload: event,
		}); err != nil {
			s.logger.Error().Err(err).Msg("failed to publish security alert")
		}
	}

	if s.mailer != nil {
		subject := fmt.Sprintf("[security] %s", event.Kind)
		body := fmt.Sprintf("kind: %s\nat: %s\n", event.Kind, event.At.Format(time.RFC3339))
		for k, v := range event.Details {
			body += fmt.Sprintf("%s: %s\n", k, v)
		}
		if err := s.mailer.SendSecurityAlert(ctx, subject, body); err != nil {
			s.logger.Error().Err(err).Msg("failed to email security alert")
		}
	}
}
