package enums

import "fmt"

// MemberRole represents a family-level permissions role.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
	// MemberRolePet marks a roster entry that never authenticates.
	MemberRolePet MemberRole = "pet"
)

var validMemberRoles = []MemberRole{
	MemberRoleAdmin,
	MemberRoleMember,
	MemberRolePet,
}

// String implements fmt.Stringer.
func (m MemberRole) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MemberRole.
func (m MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == m {
			return true
		}
	}
	return false
}

// Authenticates reports whether members with this role sign in with their own identity.
func (m MemberRole) Authenticates() bool {
	return m == MemberRoleAdmin || m == MemberRoleMember
}

// ParseMemberRole converts raw input into a MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}
