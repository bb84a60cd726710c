package queries

import (
	"context"
	"errors"
	"strings"

	"campus/contexts/identity-access/student-directory/domain/entities"
	domainerrors "campus/contexts/identity-access/student-directory/domain/errors"
	"campus/contexts/identity-access/student-directory/ports"
)

type ListStudentsQuery struct {
	Requester entities.Student
	ClassName string
	Search    string
}

type StudentsUseCase struct {
	Students ports.StudentRepository
	Tokens   ports.TokenIssuer
}

// Authenticate resolves an access token to the current stored student, so
// role changes apply on the next request without re-login.
func (uc StudentsUseCase) Authenticate(ctx context.Context, token string) (entities.Student, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return entities.Student{}, domainerrors.ErrUnauthenticated
	}
	claims, err := uc.Tokens.ParseAccessToken(token)
	if err != nil {
		return entities.Student{}, domainerrors.ErrInvalidAccessToken
	}
	student, err := uc.Students.GetStudent(ctx, claims.StudentID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrStudentNotFound) {
			return entities.Student{}, domainerrors.ErrInvalidAccessToken
		}
		return entities.Student{}, err
	}
	return student, nil
}

func (uc StudentsUseCase) GetProfile(ctx context.Context, studentID string) (entities.Student, error) {
	return uc.Students.GetStudent(ctx, studentID)
}

// ListStudents is sorted by name.
func (uc StudentsUseCase) ListStudents(ctx context.Context, query ListStudentsQuery) ([]entities.Student, error) {
	if !query.Requester.CanListStudents() {
		return nil, domainerrors.ErrForbidden
	}
	return uc.Students.ListStudents(ctx, ports.StudentFilter{
		ClassName: strings.TrimSpace(query.ClassName),
		Search:    strings.TrimSpace(query.Search),
	})
}
