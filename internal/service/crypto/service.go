// Package crypto wraps the field encryptor with the compliance duties the
// raw primitive cannot carry: auditing that a decryption happened, alerting
// on failures that may indicate tampering, and never letting plaintext or
// key material near a log line.
package crypto

import (
	"context"

	apperrors "github.com/securequery/agent-api/pkg/errors"
	"github.com/securequery/agent-api/pkg/metrics"
	"github.com/securequery/agent-api/pkg/security"

	"github.com/securequery/agent-api/internal/alert"
	"github.com/securequery/agent-api/internal/model"
	"github.com/securequery/agent-api/internal/service/audit"
)

type Service struct {
	encryptor security.Encryptor
	auditor   *audit.Service
	notifier  alert.Notifier
	metrics   *metrics.Metrics
}

func NewService(encryptor security.Encryptor, auditor *audit.Service, notifier alert.Notifier, m *metrics.Metrics) *Service {
	return &Service{
		encryptor: encryptor,
		auditor:   auditor,
		notifier:  notifier,
		metrics:   m,
	}
}

// EncryptField encrypts one field value. The field name travels into the
// audit trail; the value never does.
func (s *Service) EncryptField(ctx context.Context, fieldName string, plaintext []byte) (security.EncryptedValue, error) {
	value, err := s.encryptor.Encrypt(plaintext)
	if err != nil {
		return security.EncryptedValue{}, apperrors.Internal(err)
	}
	return value, nil
}

// DecryptField recovers a field value for an authorized caller. A failure is
// audited as ERROR and alerted: malformed or tampered ciphertext is a
// security signal, never something to swallow.
func (s *Service) DecryptField(ctx context.Context, userID, fieldName string, value security.EncryptedValue) ([]byte, error) {
	plaintext, err := s.encryptor.Decrypt(value)
	if err != nil {
		s.metrics.DecryptionFailures.Inc()
		s.auditor.LogAccess(ctx, userID, model.AuditActionRead, "encrypted_field:"+fieldName,
			model.OutcomeError, map[string]interface{}{
				"key_version": value.KeyVersion,
			})
		if s.notifier != nil {
			s.notifier.Notify(ctx, alert.Event{
				Kind: alert.KindDecryptionFailure,
				Details: map[string]string{
					"user_id": userID,
					"field":   fieldName,
				},
			})
		}
		return nil, apperrors.NewDecryptionError(err)
	}

	s.auditor.LogAccess(ctx, userID, model.AuditActionRead, "encrypted_field:"+fieldName,
		model.OutcomeSuccess, nil)
	return plaintext, nil
}

// HashPHI exposes the deterministic one-way hash for indexing PHI values.
func (s *Service) HashPHI(value string) string {
	return security.HashPHI(value)
}
