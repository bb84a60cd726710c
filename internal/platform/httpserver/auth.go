package httpserver

import (
	"context"
	"net/http"
	"strings"

	electionentities "campus/contexts/academic-governance/election-service/domain/entities"
	studententities "campus/contexts/identity-access/student-directory/domain/entities"
	studenterrors "campus/contexts/identity-access/student-directory/domain/errors"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

type studentContextKey struct{}

// authenticated resolves the caller from the accessToken cookie, the token
// query parameter or a Bearer header, in that order. The student is reloaded
// on every request so role changes apply immediately.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractAccessToken(r)
		if token == "" {
			s.writeDomainError(w, r, studenterrors.ErrUnauthenticated)
			return
		}
		student, err := s.students.Handler.Authenticate(r.Context(), token)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), studentContextKey{}, student)
		next(w, r.WithContext(ctx))
	}
}

func extractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(accessTokenCookie); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

func currentStudent(r *http.Request) studententities.Student {
	student, _ := r.Context().Value(studentContextKey{}).(studententities.Student)
	return student
}

// currentActor is the caller as the election context sees it.
func currentActor(r *http.Request) electionentities.Actor {
	student := currentStudent(r)
	return electionentities.Actor{
		StudentID: student.StudentID,
		Role:      electionentities.Role(student.Role),
		ClassName: student.ClassName,
	}
}
