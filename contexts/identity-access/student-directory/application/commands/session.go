package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "campus/contexts/identity-access/student-directory/application"
	"campus/contexts/identity-access/student-directory/domain/entities"
	domainerrors "campus/contexts/identity-access/student-directory/domain/errors"
	"campus/contexts/identity-access/student-directory/ports"
)

type LoginCommand struct {
	Identifier string
	Password   string
}

type LoginResult struct {
	Student      entities.Student
	AccessToken  string
	RefreshToken string
}

type SessionUseCase struct {
	Students ports.StudentRepository
	Hasher   ports.PasswordHasher
	Tokens   ports.TokenIssuer
	Clock    ports.Clock
	Logger   *slog.Logger
}

// Login accepts either the email or the idNo as identifier. Unknown
// identifiers and wrong passwords fail the same way.
func (uc SessionUseCase) Login(ctx context.Context, cmd LoginCommand) (LoginResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	identifier := strings.TrimSpace(cmd.Identifier)
	if identifier == "" || strings.TrimSpace(cmd.Password) == "" {
		return LoginResult{}, domainerrors.ErrMissingCredentials
	}

	student, err := uc.Students.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, domainerrors.ErrStudentNotFound) {
			return LoginResult{}, domainerrors.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !uc.Hasher.Compare(student.PasswordHash, cmd.Password) {
		logger.Warn("student login rejected",
			"event", "student_login_rejected",
			"module", "identity-access/student-directory",
			"layer", "application",
			"student_id", student.StudentID,
		)
		return LoginResult{}, domainerrors.ErrInvalidCredentials
	}

	now := uc.now()
	accessToken, err := uc.Tokens.IssueAccessToken(student, now)
	if err != nil {
		return LoginResult{}, err
	}
	refreshToken, err := uc.Tokens.IssueRefreshToken(student, now)
	if err != nil {
		return LoginResult{}, err
	}
	if err := uc.Students.SetRefreshTokenHash(ctx, student.StudentID, hashToken(refreshToken), now); err != nil {
		return LoginResult{}, err
	}
	student.RefreshTokenHash = hashToken(refreshToken)

	logger.Info("student logged in",
		"event", "student_logged_in",
		"module", "identity-access/student-directory",
		"layer", "application",
		"student_id", student.StudentID,
	)
	return LoginResult{
		Student:      student,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh issues a new access token for the refresh token stored at the
// last login. A logout or a newer login invalidates older refresh tokens.
func (uc SessionUseCase) Refresh(ctx context.Context, refreshToken string) (string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return "", domainerrors.ErrRefreshTokenRequired
	}
	studentID, err := uc.Tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return "", domainerrors.ErrInvalidRefreshToken
	}
	student, err := uc.Students.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrStudentNotFound) {
			return "", domainerrors.ErrInvalidRefreshToken
		}
		return "", err
	}
	if student.RefreshTokenHash == "" || student.RefreshTokenHash != hashToken(refreshToken) {
		return "", domainerrors.ErrInvalidRefreshToken
	}
	return uc.Tokens.IssueAccessToken(student, uc.now())
}

func (uc SessionUseCase) Logout(ctx context.Context, studentID string) error {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return domainerrors.ErrUnauthenticated
	}
	if err := uc.Students.SetRefreshTokenHash(ctx, studentID, "", uc.now()); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("student logged out",
		"event", "student_logged_out",
		"module", "identity-access/student-directory",
		"layer", "application",
		"student_id", studentID,
	)
	return nil
}

func (uc SessionUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
