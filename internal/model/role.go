package model

import "fmt"

// Role is the closed set of identity classes. Representing it as a tagged
// variant rather than a free string means an unknown role token is a
// construction-time error at the boundary, and everything downstream that
// receives a zero Role evaluates with no capabilities at all.
type Role int

const (
	RoleUnknown Role = iota
	RoleReadOnly
	RoleAnalyst
	RoleHealthcareProvider
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleReadOnly:           "read_only",
	RoleAnalyst:            "analyst",
	RoleHealthcareProvider: "healthcare_provider",
	RoleAdmin:              "admin",
}

// ParseRole maps a role token onto the closed role set. Unknown tokens fail;
// callers that must proceed anyway treat the zero value as least-privileged.
func ParseRole(s string) (Role, error) {
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return RoleUnknown, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Capability is a bit set of what a role may do.
type Capability uint8

const (
	CapReadPHI Capability = 1 << iota
	CapWrite
	CapDelete
	CapExport
)

func (c Capability) Has(cap Capability) bool {
	return c&cap == cap
}

// Capabilities derives the capability set for a role. It is a pure function
// of the role: any value outside the closed set, including RoleUnknown, gets
// the empty set.
func (r Role) Capabilities() Capability {
	switch r {
	case RoleAdmin:
		return CapReadPHI | CapWrite | CapDelete | CapExport
	case RoleHealthcareProvider:
		return CapReadPHI
	case RoleAnalyst, RoleReadOnly:
		return 0
	default:
		return 0
	}
}

// Operation is a non-field operation kind subject to authorization.
type Operation string

const (
	OperationRead   Operation = "read"
	OperationWrite  Operation = "write"
	OperationDelete Operation = "delete"
	OperationExport Operation = "export"
)
