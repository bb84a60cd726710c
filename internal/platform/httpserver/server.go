package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	electionservice "campus/contexts/academic-governance/election-service"
	studentdirectory "campus/contexts/identity-access/student-directory"

	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "campus/internal/platform/httpserver/docs"
)

// VoteLimiter caps how often one voter may hit the vote endpoint.
type VoteLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Options struct {
	Addr string
	// Development adds the error stack to 5xx bodies.
	Development    bool
	VoteLimiter    VoteLimiter
	VoteRateLimit  int
	VoteRateWindow time.Duration
	Logger         *slog.Logger
}

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	options   Options
	validate  *validator.Validate
	elections electionservice.Module
	students  studentdirectory.Module
}

func New(
	elections electionservice.Module,
	students studentdirectory.Module,
	options Options,
) *Server {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := options.Addr
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		options:   options,
		validate:  newValidator(),
		elections: elections,
		students:  students,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server stopping",
			"event", "http_server_stopping",
			"module", "internal/platform/httpserver",
			"layer", "platform",
		)
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/student/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/v1/student/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/v1/student/refresh-token", s.handleRefreshToken)
	s.mux.HandleFunc("POST /api/v1/student/logout", s.authenticated(s.handleLogout))
	s.mux.HandleFunc("GET /api/v1/student/profile", s.authenticated(s.handleGetProfile))
	s.mux.HandleFunc("PUT /api/v1/student/profile", s.authenticated(s.handleUpdateProfile))
	s.mux.HandleFunc("PUT /api/v1/student/profile/avatar", s.authenticated(s.handleUploadAvatar))
	s.mux.HandleFunc("GET /api/v1/student", s.authenticated(s.handleListStudents))

	s.mux.HandleFunc("POST /api/v1/elections", s.authenticated(s.handleCreateElection))
	s.mux.HandleFunc("GET /api/v1/elections", s.authenticated(s.handleListElections))
	s.mux.HandleFunc("GET /api/v1/elections/{election_id}", s.authenticated(s.handleGetElection))
	s.mux.HandleFunc("POST /api/v1/elections/{election_id}/vote", s.authenticated(s.handleVote))
	s.mux.HandleFunc("POST /api/v1/elections/{election_id}/close", s.authenticated(s.handleCloseElection))
	s.mux.HandleFunc("DELETE /api/v1/elections/{election_id}", s.authenticated(s.handleDeleteElection))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeAndValidate rejects unknown fields and runs the validate tags.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", nil, nil)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			s.writeError(w, r, http.StatusUnprocessableEntity, "validation_failed", "request validation failed",
				fieldErrors(validationErrs), nil)
			return false
		}
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error(), nil, nil)
		return false
	}
	return true
}

func newValidator() *validator.Validate {
	validate := validator.New()
	// Report JSON names instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
