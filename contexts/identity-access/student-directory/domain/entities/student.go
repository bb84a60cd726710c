package entities

import (
	"strings"
	"time"
)

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleCR      Role = "CR"
	RoleFaculty Role = "FACULTY"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole accepts any of the four roles in any case.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleCR:
		return RoleCR, true
	case RoleFaculty:
		return RoleFaculty, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Registrable reports whether a new account may claim the role. CR is only
// ever granted by winning an election.
func (r Role) Registrable() bool {
	return r == RoleStudent || r == RoleFaculty || r == RoleAdmin
}

var Classes = []string{
	"CSE-1", "CSE-2", "CSE-3", "CSE-4",
	"ECE-1", "ECE-2", "ECE-3", "ECE-4",
	"EEE-1", "EEE-2", "EEE-3", "EEE-4",
	"MECH-1", "MECH-2", "MECH-3", "MECH-4",
	"CIVIL-1", "CIVIL-2", "CIVIL-3", "CIVIL-4",
}

var AcademicYears = []string{"E1", "E2", "E3", "E4"}

func IsValidClass(value string) bool {
	return contains(Classes, value)
}

func IsValidAcademicYear(value string) bool {
	return contains(AcademicYears, value)
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

// Student is the identity record. PasswordHash and RefreshTokenHash never
// leave the context.
type Student struct {
	StudentID        string
	IDNo             string
	Email            string
	PasswordHash     string
	Name             string
	ClassName        string
	Branch           string
	Section          string
	Phone            string
	AcademicYear     string
	Role             Role
	AvatarURL        string
	RefreshTokenHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CanListStudents covers the roles allowed to browse the directory.
func (s Student) CanListStudents() bool {
	switch s.Role {
	case RoleAdmin, RoleFaculty, RoleCR:
		return true
	default:
		return false
	}
}

// NormalizeEmail lowercases and trims, matching how emails are stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
