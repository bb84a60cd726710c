package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	electionservice "campus/contexts/academic-governance/election-service"
	electionentities "campus/contexts/academic-governance/election-service/domain/entities"
	electionports "campus/contexts/academic-governance/election-service/ports"
	electionhttp "campus/contexts/academic-governance/election-service/transport/http"
	studentdirectory "campus/contexts/identity-access/student-directory"
	studenthttp "campus/contexts/identity-access/student-directory/transport/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLimiter struct {
	allow bool
	keys  []string
}

func (l *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, nil
}

type testEnv struct {
	server    *Server
	elections electionservice.Module
	students  studentdirectory.Module
	limiter   *fakeLimiter
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	env := testEnv{
		elections: electionservice.NewInMemoryModule(nil, nil),
		students:  studentdirectory.NewInMemoryModule(nil, nil),
		limiter:   &fakeLimiter{allow: true},
	}
	env.server = New(env.elections, env.students, Options{
		Addr:           ":0",
		VoteLimiter:    env.limiter,
		VoteRateLimit:  5,
		VoteRateWindow: time.Minute,
	})
	return env
}

func (e testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch value := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(value))
	default:
		raw, err := json.Marshal(value)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.mux.ServeHTTP(rr, req)
	return rr
}

// signup registers and logs in an account, then mirrors it into the election
// store the way both contexts share one students table in production.
func (e testEnv) signup(t *testing.T, idNo, role, className string) (string, string) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/v1/student/register", "", studenthttp.RegisterRequest{
		IDNo:      idNo,
		Email:     idNo + "@campus.test",
		Password:  "long-enough",
		Name:      "Student " + idNo,
		Role:      role,
		ClassName: className,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodPost, "/api/v1/student/login", "", studenthttp.LoginRequest{
		Identifier: idNo,
		Password:   "long-enough",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var login studenthttp.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))

	e.elections.Store.SetStudent(electionports.StudentProjection{
		StudentID: login.Student.ID,
		IDNo:      idNo,
		Name:      login.Student.Name,
		Email:     login.Student.Email,
		ClassName: className,
		Role:      electionentities.Role(login.Student.Role),
	})
	return login.Student.ID, login.AccessToken
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func TestElectionsRequireAuthentication(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/v1/elections", "", nil)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	body := decodeError(t, rr)
	assert.False(t, body.Success)
	assert.Equal(t, "unauthenticated", body.Code)
	assert.Equal(t, http.StatusUnauthorized, body.StatusCode)
	assert.Empty(t, body.Stack)
}

func TestInvalidTokenIsRejected(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/v1/student/profile", "not-a-jwt", nil)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid_access_token", decodeError(t, rr).Code)
}

func TestAccessTokenFromCookieQueryOrHeader(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.signup(t, "r1", "", "CSE-2")

	requests := map[string]*http.Request{
		"cookie": httptest.NewRequest(http.MethodGet, "/api/v1/student/profile", nil),
		"query":  httptest.NewRequest(http.MethodGet, "/api/v1/student/profile?token="+token, nil),
		"header": httptest.NewRequest(http.MethodGet, "/api/v1/student/profile", nil),
	}
	requests["cookie"].AddCookie(&http.Cookie{Name: accessTokenCookie, Value: token})
	requests["header"].Header.Set("Authorization", "bearer "+token)

	for name, req := range requests {
		rr := httptest.NewRecorder()
		env.server.mux.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, name)

		var profile studenthttp.StudentResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &profile))
		assert.Equal(t, id, profile.ID, name)
	}
}

func TestLoginSetsHTTPOnlyCookies(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "r2", "", "CSE-2")

	rr := env.do(t, http.MethodPost, "/api/v1/student/login", "", studenthttp.LoginRequest{Identifier: "r2", Password: "long-enough"})
	require.Equal(t, http.StatusOK, rr.Code)

	names := map[string]bool{}
	for _, cookie := range rr.Result().Cookies() {
		assert.True(t, cookie.HttpOnly, cookie.Name)
		names[cookie.Name] = true
	}
	assert.True(t, names[accessTokenCookie])
	assert.True(t, names[refreshTokenCookie])
}

func TestLoginWithWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "r3", "", "CSE-2")

	rr := env.do(t, http.MethodPost, "/api/v1/student/login", "", studenthttp.LoginRequest{Identifier: "r3", Password: "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid_credentials", decodeError(t, rr).Code)
}

func TestRegisterValidationReportsFields(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/v1/student/register", "", `{"idNo":"r4","email":"bad","password":"short","name":""}`)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decodeError(t, rr)
	fields := map[string]bool{}
	for _, field := range body.Errors {
		fields[field.Field] = true
	}
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])
	assert.True(t, fields["name"])
}

func TestRegisterRejectsUnknownFieldsAndDuplicates(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/v1/student/register", "", `{"idNo":"r5","email":"r5@campus.test","password":"long-enough","name":"x","isAdmin":true}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	env.signup(t, "r5", "", "CSE-2")
	rr = env.do(t, http.MethodPost, "/api/v1/student/register", "", studenthttp.RegisterRequest{
		IDNo: "r5", Email: "other@campus.test", Password: "long-enough", Name: "Other",
	})
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "already_registered", decodeError(t, rr).Code)
}

func TestStudentCannotCreateElection(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.signup(t, "c1", "", "CSE-2")
	b, _ := env.signup(t, "c2", "", "CSE-2")
	_, token := env.signup(t, "s1", "", "CSE-2")

	rr := env.do(t, http.MethodPost, "/api/v1/elections", token, createRequest(a, b))
	require.Equal(t, http.StatusForbidden, rr.Code, rr.Body.String())
}

func TestCreateElectionRejectsSingleCandidate(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.signup(t, "c1", "", "CSE-2")
	_, token := env.signup(t, "f1", "FACULTY", "")

	req := createRequest(a)
	rr := env.do(t, http.MethodPost, "/api/v1/elections", token, req)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decodeError(t, rr)
	require.NotEmpty(t, body.Errors)
	assert.Equal(t, "candidates", body.Errors[0].Field)
}

func TestElectionFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.signup(t, "c1", "", "CSE-2")
	b, _ := env.signup(t, "c2", "", "CSE-2")
	_, faculty := env.signup(t, "f1", "FACULTY", "")
	_, voter1 := env.signup(t, "v1", "", "CSE-2")
	_, voter2 := env.signup(t, "v2", "", "CSE-2")
	_, outsider := env.signup(t, "x1", "", "ECE-2")

	rr := env.do(t, http.MethodPost, "/api/v1/elections", faculty, createRequest(a, b))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var election electionhttp.ElectionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &election))
	assert.True(t, election.IsOpen)
	require.Len(t, election.Candidates, 2)

	votePath := "/api/v1/elections/" + election.ID + "/vote"
	rr = env.do(t, http.MethodPost, votePath, voter1, electionhttp.VoteRequest{CandidateID: a})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = env.do(t, http.MethodPost, votePath, voter2, electionhttp.VoteRequest{CandidateID: a})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodPost, votePath, voter1, electionhttp.VoteRequest{CandidateID: b})
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "already_voted", decodeError(t, rr).Code)

	rr = env.do(t, http.MethodPost, votePath, outsider, electionhttp.VoteRequest{CandidateID: a})
	require.Equal(t, http.StatusForbidden, rr.Code)

	closePath := "/api/v1/elections/" + election.ID + "/close"
	rr = env.do(t, http.MethodPost, closePath, voter1, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodPost, closePath, faculty, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var closed electionhttp.ElectionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &closed))
	assert.False(t, closed.IsOpen)
	assert.True(t, closed.ResultDeclared)
	require.NotNil(t, closed.Winner)
	assert.Equal(t, a, closed.Winner.ID)

	winner, err := env.elections.Store.GetStudent(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, electionentities.RoleCR, winner.Role)

	rr = env.do(t, http.MethodPost, closePath, faculty, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", rr.Header().Get("X-Already-Closed"))

	rr = env.do(t, http.MethodPost, votePath, outsider, electionhttp.VoteRequest{CandidateID: a})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "election_closed", decodeError(t, rr).Code)
}

func TestVoteRateLimited(t *testing.T) {
	env := newTestEnv(t)
	voterID, token := env.signup(t, "v1", "", "CSE-2")
	env.limiter.allow = false

	rr := env.do(t, http.MethodPost, "/api/v1/elections/7f1c1c1e-8a0a-4f7e-9d5a-1b2c3d4e5f60/vote", token,
		electionhttp.VoteRequest{CandidateID: "0b6a9f3e-2d4c-4a8b-b1e2-3c4d5e6f7a81"})
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, []string{voteRateKeyPrefix + voterID}, env.limiter.keys)
}

func TestListStudentsForbiddenForStudents(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "s1", "", "CSE-2")

	rr := env.do(t, http.MethodGet, "/api/v1/student", token, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestUploadAvatarMultipart(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "s1", "", "CSE-2")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="avatar"; filename="me.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/student/profile/avatar", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	env.server.mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var profile studenthttp.StudentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &profile))
	assert.NotEmpty(t, profile.AvatarURL)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCreateElectionTreatsUnknownPositionsAsCR(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.signup(t, "p1", "", "CSE-2")
	b, _ := env.signup(t, "p2", "", "CSE-2")
	c, _ := env.signup(t, "p3", "", "CSE-2")
	_, faculty := env.signup(t, "pf", "FACULTY", "")

	req := createRequest(a, b, c)
	req.Candidates[0].Position = "cr"
	req.Candidates[1].Position = "gr"
	req.Candidates[2].Position = "President"

	rr := env.do(t, http.MethodPost, "/api/v1/elections", faculty, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var election electionhttp.ElectionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &election))
	require.Len(t, election.Candidates, 3)
	for _, candidate := range election.Candidates {
		assert.Equal(t, "CR", candidate.Position)
	}
}

func createRequest(candidates ...string) electionhttp.CreateElectionRequest {
	req := electionhttp.CreateElectionRequest{
		Title:        "CR election",
		ClassName:    "CSE-2",
		Branch:       "CSE",
		AcademicYear: "E2",
	}
	for _, id := range candidates {
		req.Candidates = append(req.Candidates, electionhttp.CandidateRequest{StudentID: id})
	}
	return req
}
