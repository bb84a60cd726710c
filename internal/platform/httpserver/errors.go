package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	electionerrors "campus/contexts/academic-governance/election-service/domain/errors"
	studenterrors "campus/contexts/identity-access/student-directory/domain/errors"

	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success    bool         `json:"success"`
	StatusCode int          `json:"statusCode"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Errors     []FieldError `json:"errors"`
	Stack      string       `json:"stack,omitempty"`
}

type errorMapping struct {
	status int
	code   string
}

// domainErrors lists every sentinel the contexts return. Anything else is
// a 500.
var domainErrors = []struct {
	target error
	errorMapping
}{
	{electionerrors.ErrUnauthenticated, errorMapping{http.StatusUnauthorized, "unauthenticated"}},
	{electionerrors.ErrForbidden, errorMapping{http.StatusForbidden, "forbidden"}},
	{electionerrors.ErrVoterNotEligible, errorMapping{http.StatusForbidden, "voter_not_eligible"}},
	{electionerrors.ErrInvalidElectionInput, errorMapping{http.StatusUnprocessableEntity, "invalid_election"}},
	{electionerrors.ErrInvalidCandidateCount, errorMapping{http.StatusUnprocessableEntity, "invalid_candidate_count"}},
	{electionerrors.ErrCandidateClassMismatch, errorMapping{http.StatusUnprocessableEntity, "candidate_class_mismatch"}},
	{electionerrors.ErrInvalidCandidateID, errorMapping{http.StatusUnprocessableEntity, "invalid_candidate_id"}},
	{electionerrors.ErrInvalidElectionID, errorMapping{http.StatusUnprocessableEntity, "invalid_election_id"}},
	{electionerrors.ErrInvalidElectionFilter, errorMapping{http.StatusUnprocessableEntity, "invalid_election_filter"}},
	{electionerrors.ErrElectionNotFound, errorMapping{http.StatusNotFound, "election_not_found"}},
	{electionerrors.ErrCandidateNotFound, errorMapping{http.StatusNotFound, "candidate_not_found"}},
	{electionerrors.ErrStudentNotFound, errorMapping{http.StatusNotFound, "student_not_found"}},
	{electionerrors.ErrElectionClosed, errorMapping{http.StatusBadRequest, "election_closed"}},
	{electionerrors.ErrWinnerClassMismatch, errorMapping{http.StatusBadRequest, "winner_class_mismatch"}},
	{electionerrors.ErrAlreadyVoted, errorMapping{http.StatusConflict, "already_voted"}},
	{electionerrors.ErrIdempotencyConflict, errorMapping{http.StatusConflict, "idempotency_conflict"}},
	{electionerrors.ErrConflict, errorMapping{http.StatusConflict, "conflict"}},

	{studenterrors.ErrInvalidInput, errorMapping{http.StatusUnprocessableEntity, "invalid_input"}},
	{studenterrors.ErrMissingCredentials, errorMapping{http.StatusUnprocessableEntity, "missing_credentials"}},
	{studenterrors.ErrInvalidEmail, errorMapping{http.StatusUnprocessableEntity, "invalid_email"}},
	{studenterrors.ErrWeakPassword, errorMapping{http.StatusUnprocessableEntity, "weak_password"}},
	{studenterrors.ErrInvalidClass, errorMapping{http.StatusUnprocessableEntity, "invalid_class"}},
	{studenterrors.ErrInvalidAcademicYear, errorMapping{http.StatusUnprocessableEntity, "invalid_academic_year"}},
	{studenterrors.ErrInvalidRole, errorMapping{http.StatusUnprocessableEntity, "invalid_role"}},
	{studenterrors.ErrInvalidAvatar, errorMapping{http.StatusUnprocessableEntity, "invalid_avatar"}},
	{studenterrors.ErrAlreadyRegistered, errorMapping{http.StatusConflict, "already_registered"}},
	{studenterrors.ErrConflict, errorMapping{http.StatusConflict, "conflict"}},
	{studenterrors.ErrInvalidCredentials, errorMapping{http.StatusUnauthorized, "invalid_credentials"}},
	{studenterrors.ErrRefreshTokenRequired, errorMapping{http.StatusUnauthorized, "refresh_token_required"}},
	{studenterrors.ErrInvalidRefreshToken, errorMapping{http.StatusUnauthorized, "invalid_refresh_token"}},
	{studenterrors.ErrUnauthenticated, errorMapping{http.StatusUnauthorized, "unauthenticated"}},
	{studenterrors.ErrInvalidAccessToken, errorMapping{http.StatusUnauthorized, "invalid_access_token"}},
	{studenterrors.ErrForbidden, errorMapping{http.StatusForbidden, "forbidden"}},
	{studenterrors.ErrStudentNotFound, errorMapping{http.StatusNotFound, "student_not_found"}},
	{studenterrors.ErrClassLockedForCR, errorMapping{http.StatusBadRequest, "class_locked_for_cr"}},
	{studenterrors.ErrAvatarStorageDisabled, errorMapping{http.StatusServiceUnavailable, "avatar_storage_disabled"}},
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, candidate := range domainErrors {
		if errors.Is(err, candidate.target) {
			s.writeError(w, r, candidate.status, candidate.code, candidate.target.Error(), nil, nil)
			return
		}
	}
	s.logger.Error("request failed",
		"event", "http_request_failed",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err.Error(),
	)
	s.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", nil, err)
}

// writeError renders the error body. cause is only rendered, with its
// stack, in development.
func (s *Server) writeError(
	w http.ResponseWriter,
	_ *http.Request,
	status int,
	code string,
	message string,
	fields []FieldError,
	cause error,
) {
	if fields == nil {
		fields = []FieldError{}
	}
	body := ErrorResponse{
		Success:    false,
		StatusCode: status,
		Code:       code,
		Message:    message,
		Errors:     fields,
	}
	if s.options.Development && cause != nil {
		body.Stack = fmt.Sprintf("%+v", cause)
	}
	writeJSON(w, status, body)
}

func fieldErrors(validationErrs validator.ValidationErrors) []FieldError {
	fields := make([]FieldError, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		fields = append(fields, FieldError{
			Field:   fieldPath(fieldErr.Namespace()),
			Message: fieldMessage(fieldErr),
		})
	}
	return fields
}

// fieldPath drops the leading struct name, giving "candidates[0].studentId".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func fieldMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return fieldErr.Field() + " is required"
	case "email":
		return fieldErr.Field() + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fieldErr.Field(), fieldErr.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fieldErr.Field(), fieldErr.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fieldErr.Field(), fieldErr.Param())
	default:
		return fieldErr.Field() + " is invalid"
	}
}
