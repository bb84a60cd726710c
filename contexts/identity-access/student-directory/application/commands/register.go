package commands

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	application "campus/contexts/identity-access/student-directory/application"
	"campus/contexts/identity-access/student-directory/domain/entities"
	domainerrors "campus/contexts/identity-access/student-directory/domain/errors"
	"campus/contexts/identity-access/student-directory/ports"
)

const MinPasswordLength = 8

type RegisterCommand struct {
	IDNo         string
	Email        string
	Password     string
	Name         string
	Role         string
	ClassName    string
	AcademicYear string
	Branch       string
	Section      string
	Phone        string
}

type RegisterUseCase struct {
	Students ports.StudentRepository
	Hasher   ports.PasswordHasher
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	// AllowPrivilegedRoles lets sign-up claim FACULTY or ADMIN. Off in
	// production once the first staff accounts exist.
	AllowPrivilegedRoles bool
	Logger               *slog.Logger
}

func (uc RegisterUseCase) Register(ctx context.Context, cmd RegisterCommand) (entities.Student, error) {
	logger := application.ResolveLogger(uc.Logger)
	idNo := strings.TrimSpace(cmd.IDNo)
	email := entities.NormalizeEmail(cmd.Email)
	name := strings.TrimSpace(cmd.Name)
	if idNo == "" || email == "" || strings.TrimSpace(cmd.Password) == "" || name == "" {
		return entities.Student{}, domainerrors.ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return entities.Student{}, domainerrors.ErrInvalidEmail
	}
	if len(cmd.Password) < MinPasswordLength {
		return entities.Student{}, domainerrors.ErrWeakPassword
	}

	role := entities.RoleStudent
	if strings.TrimSpace(cmd.Role) != "" {
		parsed, ok := entities.ParseRole(cmd.Role)
		if !ok || !parsed.Registrable() {
			return entities.Student{}, domainerrors.ErrInvalidRole
		}
		if parsed != entities.RoleStudent && !uc.AllowPrivilegedRoles {
			logger.Warn("privileged self-registration rejected",
				"event", "student_register_privileged_role_rejected",
				"module", "identity-access/student-directory",
				"layer", "application",
				"role", string(parsed),
			)
			return entities.Student{}, domainerrors.ErrForbidden
		}
		role = parsed
	}
	className := strings.TrimSpace(cmd.ClassName)
	if className != "" && !entities.IsValidClass(className) {
		return entities.Student{}, domainerrors.ErrInvalidClass
	}
	academicYear := strings.TrimSpace(cmd.AcademicYear)
	if academicYear != "" && !entities.IsValidAcademicYear(academicYear) {
		return entities.Student{}, domainerrors.ErrInvalidAcademicYear
	}

	exists, err := uc.Students.ExistsByEmailOrIDNo(ctx, email, idNo)
	if err != nil {
		return entities.Student{}, err
	}
	if exists {
		return entities.Student{}, domainerrors.ErrAlreadyRegistered
	}

	passwordHash, err := uc.Hasher.Hash(cmd.Password)
	if err != nil {
		return entities.Student{}, err
	}
	studentID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Student{}, err
	}
	now := uc.now()
	student := entities.Student{
		StudentID:    studentID,
		IDNo:         idNo,
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		ClassName:    className,
		Branch:       strings.TrimSpace(cmd.Branch),
		Section:      strings.TrimSpace(cmd.Section),
		Phone:        strings.TrimSpace(cmd.Phone),
		AcademicYear: academicYear,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	event, err := newStudentEnvelope(ctx, uc.IDGen, EventStudentRegistered, studentID, now, map[string]any{
		"student_id":  studentID,
		"id_no":       idNo,
		"role":        string(role),
		"class_name":  className,
		"occurred_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return entities.Student{}, err
	}
	if err := uc.Students.CreateStudent(ctx, student, event); err != nil {
		return entities.Student{}, err
	}

	logger.Info("student registered",
		"event", "student_registered",
		"module", "identity-access/student-directory",
		"layer", "application",
		"student_id", studentID,
		"role", string(role),
	)
	return student, nil
}

func (uc RegisterUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
