package entities

import "strings"

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleCR      Role = "CR"
	RoleFaculty Role = "FACULTY"
	RoleAdmin   Role = "ADMIN"
)

// Actor is the authenticated caller as seen by the election lifecycle.
type Actor struct {
	StudentID string
	Role      Role
	ClassName string
}

func (a Actor) IsAuthenticated() bool {
	return strings.TrimSpace(a.StudentID) != ""
}

// CanCreateElection covers FACULTY, ADMIN and CR.
func (a Actor) CanCreateElection() bool {
	switch a.Role {
	case RoleFaculty, RoleAdmin, RoleCR:
		return true
	default:
		return false
	}
}

// CanAdministerElection covers close and delete, which CRs may not perform.
func (a Actor) CanAdministerElection() bool {
	switch a.Role {
	case RoleFaculty, RoleAdmin:
		return true
	default:
		return false
	}
}

// RoleTransition records what promoteToCR changed for one class.
type RoleTransition struct {
	ClassName  string
	DemotedID  string
	PromotedID string
	NoOp       bool
}

func (t RoleTransition) Applied() bool {
	return !t.NoOp && strings.TrimSpace(t.PromotedID) != ""
}
