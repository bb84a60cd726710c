package httpserver

import (
	"net/http"
	"strconv"

	electionhttp "campus/contexts/academic-governance/election-service/transport/http"
)

const voteRateKeyPrefix = "vote:"

// handleCreateElection godoc
// @Summary Create an election
// @Tags elections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "replays the first result for the same key"
// @Param request body electionhttp.CreateElectionRequest true "election"
// @Success 201 {object} electionhttp.ElectionResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /elections [post]
func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req electionhttp.CreateElectionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	resp, err := s.elections.Handler.CreateElectionHandler(
		r.Context(),
		currentActor(r),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleListElections godoc
// @Summary List elections, newest first
// @Tags elections
// @Produce json
// @Security BearerAuth
// @Param status query string false "OPEN or CLOSED"
// @Param className query string false "class"
// @Param branch query string false "branch"
// @Param includeClosed query bool false "include closed elections"
// @Success 200 {object} electionhttp.ListElectionsResponse
// @Router /elections [get]
func (s *Server) handleListElections(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := electionhttp.ListElectionsRequest{
		Status:    query.Get("status"),
		ClassName: query.Get("className"),
		Branch:    query.Get("branch"),
	}
	if raw := query.Get("includeClosed"); raw != "" {
		includeClosed, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, http.StatusUnprocessableEntity, "invalid_include_closed",
				"includeClosed must be a boolean", []FieldError{{Field: "includeClosed", Message: "includeClosed must be a boolean"}}, nil)
			return
		}
		req.IncludeClosed = includeClosed
	}
	resp, err := s.elections.Handler.ListElectionsHandler(r.Context(), currentActor(r), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetElection godoc
// @Summary Get one election
// @Tags elections
// @Produce json
// @Security BearerAuth
// @Param election_id path string true "election id"
// @Success 200 {object} electionhttp.ElectionResponse
// @Failure 404 {object} ErrorResponse
// @Router /elections/{election_id} [get]
func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.GetElectionHandler(r.Context(), currentActor(r), r.PathValue("election_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleVote godoc
// @Summary Cast a vote
// @Tags elections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param election_id path string true "election id"
// @Param request body electionhttp.VoteRequest true "vote"
// @Success 200 {object} electionhttp.SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /elections/{election_id}/vote [post]
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	if !s.allowVote(w, r, actor.StudentID) {
		return
	}
	var req electionhttp.VoteRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	resp, err := s.elections.Handler.VoteHandler(r.Context(), actor, r.PathValue("election_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCloseElection godoc
// @Summary Close an election and declare the result
// @Tags elections
// @Produce json
// @Security BearerAuth
// @Param election_id path string true "election id"
// @Success 200 {object} electionhttp.ElectionResponse
// @Failure 403 {object} ErrorResponse
// @Router /elections/{election_id}/close [post]
func (s *Server) handleCloseElection(w http.ResponseWriter, r *http.Request) {
	resp, alreadyClosed, err := s.elections.Handler.CloseElectionHandler(r.Context(), currentActor(r), r.PathValue("election_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if alreadyClosed {
		w.Header().Set("X-Already-Closed", "true")
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteElection godoc
// @Summary Delete an election
// @Tags elections
// @Produce json
// @Security BearerAuth
// @Param election_id path string true "election id"
// @Success 200 {object} electionhttp.SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Router /elections/{election_id} [delete]
func (s *Server) handleDeleteElection(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.DeleteElectionHandler(r.Context(), currentActor(r), r.PathValue("election_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// allowVote fails open when the limiter itself errors.
func (s *Server) allowVote(w http.ResponseWriter, r *http.Request, voterID string) bool {
	if s.options.VoteLimiter == nil || s.options.VoteRateLimit <= 0 {
		return true
	}
	allowed, err := s.options.VoteLimiter.Allow(r.Context(), voteRateKeyPrefix+voterID, s.options.VoteRateLimit, s.options.VoteRateWindow)
	if err != nil {
		s.logger.Warn("vote rate limiter unavailable",
			"event", "vote_rate_limiter_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"voter_id", voterID,
			"error", err.Error(),
		)
		return true
	}
	if !allowed {
		s.writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many vote attempts, try again later", nil, nil)
		return false
	}
	return true
}
