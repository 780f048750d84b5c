package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securequery/agent-api/internal/model"
	"github.com/securequery/agent-api/internal/phi"
)

func newService(t *testing.T) *Service {
	t.Helper()
	classifier, err := phi.NewClassifier(phi.DefaultConfig())
	require.NoError(t, err)
	return NewService(classifier)
}

func TestCheckPHIAccessMatrix(t *testing.T) {
	svc := newService(t)

	phiFields := [][]string{
		{"ssn"},
		{"name", "ssn"},
		{"visit_count", "dob"},
	}
	cleanFields := [][]string{
		{},
		{"visit_count"},
		{"department", "total"},
	}

	privileged := []model.Role{model.RoleAdmin, model.RoleHealthcareProvider}
	unprivileged := []model.Role{model.RoleAnalyst, model.RoleReadOnly, model.RoleUnknown}

	for _, role := range privileged {
		for _, fields := range append(phiFields, cleanFields...) {
			assert.True(t, svc.CheckPHIAccess(role, fields),
				"role %s fields %v", role, fields)
		}
	}

	for _, role := range unprivileged {
		for _, fields := range phiFields {
			assert.False(t, svc.CheckPHIAccess(role, fields),
				"role %s fields %v", role, fields)
		}
		for _, fields := range cleanFields {
			assert.True(t, svc.CheckPHIAccess(role, fields),
				"role %s fields %v", role, fields)
		}
	}
}

func TestCheckPHIAccessUnknownRoleFailsClosed(t *testing.T) {
	svc := newService(t)

	role, err := model.ParseRole("superuser")
	assert.Error(t, err)
	assert.False(t, svc.CheckPHIAccess(role, []string{"ssn"}))
	// Non-PHI requests remain allowed even for the zero role.
	assert.True(t, svc.CheckPHIAccess(role, []string{"visit_count"}))
}

func TestAuthorizeOperation(t *testing.T) {
	svc := newService(t)

	tests := []struct {
		role model.Role
		op   model.Operation
		want bool
	}{
		{model.RoleAdmin, model.OperationRead, true},
		{model.RoleAdmin, model.OperationWrite, true},
		{model.RoleAdmin, model.OperationDelete, true},
		{model.RoleAdmin, model.OperationExport, true},
		{model.RoleHealthcareProvider, model.OperationRead, true},
		{model.RoleHealthcareProvider, model.OperationWrite, false},
		{model.RoleHealthcareProvider, model.OperationExport, false},
		{model.RoleAnalyst, model.OperationRead, true},
		{model.RoleAnalyst, model.OperationDelete, false},
		{model.RoleReadOnly, model.OperationRead, true},
		{model.RoleReadOnly, model.OperationWrite, false},
		{model.RoleUnknown, model.OperationRead, false},
		{model.RoleUnknown, model.OperationWrite, false},
		{model.RoleAdmin, model.Operation("compact"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, svc.AuthorizeOperation(tt.role, tt.op),
			"role %s op %s", tt.role, tt.op)
	}
}

func TestParseRole(t *testing.T) {
	for _, name := range []string{"admin", "healthcare_provider", "analyst", "read_only"} {
		role, err := model.ParseRole(name)
		require.NoError(t, err)
		assert.Equal(t, name, role.String())
	}

	_, err := model.ParseRole("root")
	assert.Error(t, err)
	_, err = model.ParseRole("")
	assert.Error(t, err)
}
