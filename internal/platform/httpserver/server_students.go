package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"campus/contexts/identity-access/student-directory/application/commands"
	studenthttp "campus/contexts/identity-access/student-directory/transport/http"
)

// handleRegister godoc
// @Summary Register a student, faculty or admin account
// @Tags student
// @Accept json
// @Produce json
// @Param request body studenthttp.RegisterRequest true "account"
// @Success 201 {object} studenthttp.StudentResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /student/register [post]
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req studenthttp.RegisterRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	resp, err := s.students.Handler.RegisterHandler(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleLogin godoc
// @Summary Log in with email or idNo
// @Tags student
// @Accept json
// @Produce json
// @Param request body studenthttp.LoginRequest true "credentials"
// @Success 200 {object} studenthttp.LoginResponse
// @Failure 401 {object} ErrorResponse
// @Router /student/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req studenthttp.LoginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	resp, err := s.students.Handler.LoginHandler(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.setTokenCookie(w, accessTokenCookie, resp.AccessToken)
	s.setTokenCookie(w, refreshTokenCookie, resp.RefreshToken)
	writeJSON(w, http.StatusOK, resp)
}

// handleRefreshToken godoc
// @Summary Issue a new access token
// @Tags student
// @Accept json
// @Produce json
// @Param request body studenthttp.RefreshRequest false "refresh token, or the refreshToken cookie"
// @Success 200 {object} studenthttp.RefreshResponse
// @Failure 401 {object} ErrorResponse
// @Router /student/refresh-token [post]
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var refreshToken string
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		refreshToken = cookie.Value
	}
	if refreshToken == "" {
		var req studenthttp.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, r, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", nil, nil)
			return
		}
		refreshToken = req.RefreshToken
	}
	resp, err := s.students.Handler.RefreshHandler(r.Context(), refreshToken)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.setTokenCookie(w, accessTokenCookie, resp.AccessToken)
	writeJSON(w, http.StatusOK, resp)
}

// handleLogout godoc
// @Summary Log out and revoke the refresh token
// @Tags student
// @Produce json
// @Security BearerAuth
// @Success 200 {object} studenthttp.SuccessResponse
// @Router /student/logout [post]
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	resp, err := s.students.Handler.LogoutHandler(r.Context(), currentStudent(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.clearTokenCookie(w, accessTokenCookie)
	s.clearTokenCookie(w, refreshTokenCookie)
	writeJSON(w, http.StatusOK, resp)
}

// handleGetProfile godoc
// @Summary Current student's profile
// @Tags student
// @Produce json
// @Security BearerAuth
// @Success 200 {object} studenthttp.StudentResponse
// @Router /student/profile [get]
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	resp, err := s.students.Handler.GetProfileHandler(r.Context(), currentStudent(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUpdateProfile godoc
// @Summary Update profile fields
// @Tags student
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body studenthttp.UpdateProfileRequest true "fields to change"
// @Success 200 {object} studenthttp.StudentResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /student/profile [put]
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req studenthttp.UpdateProfileRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	resp, err := s.students.Handler.UpdateProfileHandler(r.Context(), currentStudent(r), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUploadAvatar godoc
// @Summary Upload an avatar image
// @Tags student
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "image up to 2MB"
// @Success 200 {object} studenthttp.StudentResponse
// @Failure 422 {object} ErrorResponse
// @Router /student/profile/avatar [put]
func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, commands.MaxAvatarBytes+(1<<20))
	if err := r.ParseMultipartForm(commands.MaxAvatarBytes); err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, "invalid_avatar", "avatar must be an image of at most 2MB",
			[]FieldError{{Field: "avatar", Message: "avatar file is required"}}, nil)
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, "invalid_avatar", "avatar file is required",
			[]FieldError{{Field: "avatar", Message: "avatar file is required"}}, nil)
		return
	}
	defer file.Close()

	resp, err := s.students.Handler.UploadAvatarHandler(
		r.Context(),
		currentStudent(r),
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		file,
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListStudents godoc
// @Summary List students
// @Tags student
// @Produce json
// @Security BearerAuth
// @Param className query string false "class"
// @Param search query string false "name or idNo substring"
// @Success 200 {object} studenthttp.ListStudentsResponse
// @Failure 403 {object} ErrorResponse
// @Router /student [get]
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.students.Handler.ListStudentsHandler(r.Context(), currentStudent(r), studenthttp.ListStudentsRequest{
		ClassName: query.Get("className"),
		Search:    query.Get("search"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) setTokenCookie(w http.ResponseWriter, name string, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   !s.options.Development,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearTokenCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !s.options.Development,
		SameSite: http.SameSiteStrictMode,
	})
}
