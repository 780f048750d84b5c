package crypto

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/securequery/agent-api/pkg/errors"
	"github.com/securequery/agent-api/pkg/metrics"
	"github.com/securequery/agent-api/pkg/security"

	"github.com/securequery/agent-api/internal/alert"
	"github.com/securequery/agent-api/internal/model"
	"github.com/securequery/agent-api/internal/service/audit"
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

type capturingNotifier struct {
	events []alert.Event
}

func (c *capturingNotifier) Notify(ctx context.Context, event alert.Event) {
	c.events = append(c.events, event)
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *capturingNotifier) {
	t.Helper()

	keys := security.DeriveKeys(map[int]string{1: "crypto-test-pass"}, []byte("crypto-test-salt"))
	encryptor, err := security.NewAESEncryptor(keys)
	require.NoError(t, err)

	repo := &memoryRepo{}
	notifier := &capturingNotifier{}
	m := metrics.New("test_crypto", prometheus.NewRegistry())
	auditor := audit.NewService(repo, audit.NewFallbackSink(&bytes.Buffer{}), nil, m)

	return NewService(encryptor, auditor, notifier, m), repo, notifier
}

func TestEncryptDecryptField(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	value, err := svc.EncryptField(ctx, "ssn", []byte("123-45-6789"))
	require.NoError(t, err)

	plaintext, err := svc.DecryptField(ctx, "user-1", "ssn", value)
	require.NoError(t, err)
	assert.Equal(t, "123-45-6789", string(plaintext))

	// The decryption itself is audited, with the field reference only.
	require.Len(t, repo.events, 1)
	ev := repo.events[0]
	assert.Equal(t, "encrypted_field:ssn", ev.Resource)
	assert.Equal(t, model.OutcomeSuccess, ev.Outcome)
	assert.NotContains(t, string(ev.Metadata), "123-45-6789")
}

func TestDecryptFailureAuditedAndAlerted(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	ctx := context.Background()

	value, err := svc.EncryptField(ctx, "ssn", []byte("123-45-6789"))
	require.NoError(t, err)
	value.Ciphertext[len(value.Ciphertext)-1] ^= 0x01

	_, err = svc.DecryptField(ctx, "user-1", "ssn", value)
	require.Error(t, err)
	assert.True(t, apperrors.IsDecryptionError(err))

	require.Len(t, repo.events, 1)
	assert.Equal(t, model.OutcomeError, repo.events[0].Outcome)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, alert.KindDecryptionFailure, notifier.events[0].Kind)
	// Alert details carry references, never plaintext.
	assert.NotContains(t, notifier.events[0].Details, "value")
}

func TestDecryptUnknownKeyVersion(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	value, err := svc.EncryptField(ctx, "name", []byte("Jane Roe"))
	require.NoError(t, err)
	value.KeyVersion = 7

	_, err = svc.DecryptField(ctx, "user-1", "name", value)
	require.Error(t, err)
	assert.True(t, apperrors.IsDecryptionError(err))
	assert.Len(t, notifier.events, 1)
}
