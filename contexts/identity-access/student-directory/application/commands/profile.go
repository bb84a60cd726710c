package commands

import (
	"context"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	application "campus/contexts/identity-access/student-directory/application"
	"campus/contexts/identity-access/student-directory/domain/entities"
	domainerrors "campus/contexts/identity-access/student-directory/domain/errors"
	"campus/contexts/identity-access/student-directory/ports"
)

const MaxAvatarBytes = 2 << 20

// UpdateProfileCommand leaves a field untouched when its pointer is nil.
type UpdateProfileCommand struct {
	StudentID    string
	Name         *string
	Email        *string
	ClassName    *string
	AcademicYear *string
	Branch       *string
	Section      *string
	Phone        *string
}

type UploadAvatarCommand struct {
	StudentID   string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type ProfileUseCase struct {
	Students ports.StudentRepository
	Avatars  ports.AvatarStorage
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func (uc ProfileUseCase) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (entities.Student, error) {
	student, err := uc.Students.GetStudent(ctx, cmd.StudentID)
	if err != nil {
		return entities.Student{}, err
	}
	updated := student

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return entities.Student{}, domainerrors.ErrInvalidInput
		}
		updated.Name = name
	}
	if cmd.Email != nil {
		email := entities.NormalizeEmail(*cmd.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return entities.Student{}, domainerrors.ErrInvalidEmail
		}
		if email != student.Email {
			exists, err := uc.Students.ExistsByEmailOrIDNo(ctx, email, "")
			if err != nil {
				return entities.Student{}, err
			}
			if exists {
				return entities.Student{}, domainerrors.ErrAlreadyRegistered
			}
		}
		updated.Email = email
	}
	if cmd.ClassName != nil {
		className := strings.TrimSpace(*cmd.ClassName)
		if className != "" && !entities.IsValidClass(className) {
			return entities.Student{}, domainerrors.ErrInvalidClass
		}
		// Moving a CR would leave one class without a CR and may give
		// another class two.
		if student.Role == entities.RoleCR && className != student.ClassName {
			return entities.Student{}, domainerrors.ErrClassLockedForCR
		}
		updated.ClassName = className
	}
	if cmd.AcademicYear != nil {
		academicYear := strings.TrimSpace(*cmd.AcademicYear)
		if academicYear != "" && !entities.IsValidAcademicYear(academicYear) {
			return entities.Student{}, domainerrors.ErrInvalidAcademicYear
		}
		updated.AcademicYear = academicYear
	}
	if cmd.Branch != nil {
		updated.Branch = strings.TrimSpace(*cmd.Branch)
	}
	if cmd.Section != nil {
		updated.Section = strings.TrimSpace(*cmd.Section)
	}
	if cmd.Phone != nil {
		updated.Phone = strings.TrimSpace(*cmd.Phone)
	}

	return uc.save(ctx, updated, "profile")
}

func (uc ProfileUseCase) UploadAvatar(ctx context.Context, cmd UploadAvatarCommand) (entities.Student, error) {
	if uc.Avatars == nil {
		return entities.Student{}, domainerrors.ErrAvatarStorageDisabled
	}
	if cmd.Body == nil || cmd.Size <= 0 || cmd.Size > MaxAvatarBytes ||
		!strings.HasPrefix(strings.ToLower(strings.TrimSpace(cmd.ContentType)), "image/") {
		return entities.Student{}, domainerrors.ErrInvalidAvatar
	}
	student, err := uc.Students.GetStudent(ctx, cmd.StudentID)
	if err != nil {
		return entities.Student{}, err
	}
	url, err := uc.Avatars.UploadAvatar(ctx, ports.AvatarUpload{
		StudentID:   student.StudentID,
		FileName:    cmd.FileName,
		ContentType: cmd.ContentType,
		Size:        cmd.Size,
		Body:        cmd.Body,
	})
	if err != nil {
		application.ResolveLogger(uc.Logger).Error("student avatar upload failed",
			"event", "student_avatar_upload_failed",
			"module", "identity-access/student-directory",
			"layer", "application",
			"student_id", student.StudentID,
			"error", err.Error(),
		)
		return entities.Student{}, err
	}
	student.AvatarURL = url
	return uc.save(ctx, student, "avatar")
}

func (uc ProfileUseCase) save(ctx context.Context, student entities.Student, change string) (entities.Student, error) {
	now := uc.now()
	student.UpdatedAt = now
	event, err := newStudentEnvelope(ctx, uc.IDGen, EventStudentProfileUpdated, student.StudentID, now, map[string]any{
		"student_id":  student.StudentID,
		"class_name":  student.ClassName,
		"change":      change,
		"occurred_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return entities.Student{}, err
	}
	if err := uc.Students.UpdateProfile(ctx, student, event); err != nil {
		return entities.Student{}, err
	}
	application.ResolveLogger(uc.Logger).Info("student profile updated",
		"event", "student_profile_updated",
		"module", "identity-access/student-directory",
		"layer", "application",
		"student_id", student.StudentID,
		"change", change,
	)
	return student, nil
}

func (uc ProfileUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
