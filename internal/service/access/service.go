// Package access implements the role-based access control decision point.
// Decisions are pure functions of role and classification with no I/O, so
// every call site resolves identically and the finite role x sensitivity
// matrix can be tested exhaustively. Any ambiguity resolves to denial.
package access

import (
	"github.com/securequery/agent-api/internal/model"
	"github.com/securequery/agent-api/internal/phi"
)

type Service struct {
	classifier phi.Classifier
}

func NewService(classifier phi.Classifier) *Service {
	return &Service{classifier: classifier}
}

// CheckPHIAccess reports whether the role may see the requested fields in
// clear. An empty request trivially passes; a request touching no
// PHI-classified field passes for every role. Unknown roles carry no
// capabilities and are denied.
func (s *Service) CheckPHIAccess(role model.Role, requestedFields []string) bool {
	phiRequested := false
	for _, field := range requestedFields {
		if s.classifier.Classify(field, nil) {
			phiRequested = true
			break
		}
	}
	if !phiRequested {
		return true
	}

	return role.Capabilities().Has(model.CapReadPHI)
}

// AuthorizeOperation reports whether the role may perform a non-field
// operation. Reads are open to every recognized role; anything else needs
// the matching capability. Unrecognized operations and roles are denied.
func (s *Service) AuthorizeOperation(role model.Role, op model.Operation) bool {
	caps := role.Capabilities()

	switch op {
	case model.OperationRead:
		return role != model.RoleUnknown
	case model.OperationWrite:
		return caps.Has(model.CapWrite)
	case model.OperationDelete:
		return caps.Has(model.CapDelete)
	case model.OperationExport:
		return caps.Has(model.CapExport)
	default:
		return false
	}
}
