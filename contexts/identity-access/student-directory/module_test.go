package studentdirectory_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	studentdirectory "campus/contexts/identity-access/student-directory"
	"campus/contexts/identity-access/student-directory/adapters/memory"
	"campus/contexts/identity-access/student-directory/adapters/security"
	"campus/contexts/identity-access/student-directory/domain/entities"
	domainerrors "campus/contexts/identity-access/student-directory/domain/errors"
	httptransport "campus/contexts/identity-access/student-directory/transport/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func register(t *testing.T, module studentdirectory.Module, idNo, name, role string) httptransport.StudentResponse {
	t.Helper()
	student, err := module.Handler.RegisterHandler(context.Background(), httptransport.RegisterRequest{
		IDNo:         idNo,
		Email:        strings.ToUpper(idNo) + "@Campus.Test",
		Password:     "s3cret-pass",
		Name:         name,
		Role:         role,
		ClassName:    "CSE-2",
		AcademicYear: "E2",
	})
	require.NoError(t, err)
	return student
}

func actor(t *testing.T, module studentdirectory.Module, id string) entities.Student {
	t.Helper()
	student, err := module.Store.GetStudent(context.Background(), id)
	require.NoError(t, err)
	return student
}

func TestRegisterDefaultsToStudentAndLowercasesEmail(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	student := register(t, module, "r100", "Asha", "")

	assert.Equal(t, "STUDENT", student.Role)
	assert.Equal(t, "r100@campus.test", student.Email)

	stored := actor(t, module, student.ID)
	assert.NotEqual(t, "s3cret-pass", stored.PasswordHash)
	assert.NotEmpty(t, stored.PasswordHash)

	pending, err := module.Store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "student.registered", pending[0].EventType)
}

func TestRegisterStaffRolesClosedByDefault(t *testing.T) {
	store := memory.NewStore(nil)
	tokens, err := security.NewJWTIssuer("access", 0, "refresh", 0)
	require.NoError(t, err)
	module := studentdirectory.NewModule(studentdirectory.Dependencies{
		Students: store,
		Hasher:   security.NewBcryptHasher(bcrypt.MinCost),
		Tokens:   tokens,
		Outbox:   store,
		Clock:    store,
		IDGen:    store,
	})

	for _, role := range []string{"FACULTY", "ADMIN"} {
		_, err := module.Handler.RegisterHandler(context.Background(), httptransport.RegisterRequest{
			IDNo:     "staff-" + role,
			Email:    role + "@campus.test",
			Password: "s3cret-pass",
			Name:     "Staff",
			Role:     role,
		})
		assert.ErrorIs(t, err, domainerrors.ErrForbidden, role)
	}

	student, err := module.Handler.RegisterHandler(context.Background(), httptransport.RegisterRequest{
		IDNo:     "r200",
		Email:    "r200@campus.test",
		Password: "s3cret-pass",
		Name:     "Ravi",
		Role:     "STUDENT",
	})
	require.NoError(t, err)
	assert.Equal(t, "STUDENT", student.Role)
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	base := httptransport.RegisterRequest{IDNo: "r1", Email: "a@campus.test", Password: "long-enough", Name: "A"}

	cases := []struct {
		name   string
		mutate func(*httptransport.RegisterRequest)
		want   error
	}{
		{"missing name", func(r *httptransport.RegisterRequest) { r.Name = " " }, domainerrors.ErrInvalidInput},
		{"bad email", func(r *httptransport.RegisterRequest) { r.Email = "not-an-email" }, domainerrors.ErrInvalidEmail},
		{"short password", func(r *httptransport.RegisterRequest) { r.Password = "short" }, domainerrors.ErrWeakPassword},
		{"bad class", func(r *httptransport.RegisterRequest) { r.ClassName = "CSE-9" }, domainerrors.ErrInvalidClass},
		{"bad year", func(r *httptransport.RegisterRequest) { r.AcademicYear = "E7" }, domainerrors.ErrInvalidAcademicYear},
		{"self-assigned CR", func(r *httptransport.RegisterRequest) { r.Role = "CR" }, domainerrors.ErrInvalidRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := module.Handler.RegisterHandler(context.Background(), req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRegisterRejectsDuplicateEmailOrIDNo(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	register(t, module, "r200", "Ben", "")

	_, err := module.Handler.RegisterHandler(context.Background(), httptransport.RegisterRequest{
		IDNo: "r200", Email: "other@campus.test", Password: "long-enough", Name: "Other",
	})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyRegistered)

	_, err = module.Handler.RegisterHandler(context.Background(), httptransport.RegisterRequest{
		IDNo: "r201", Email: "R200@campus.test", Password: "long-enough", Name: "Other",
	})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyRegistered)
}

func TestLoginByEmailOrIDNo(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	student := register(t, module, "r300", "Chen", "")

	for _, identifier := range []string{"r300", "R300@campus.test"} {
		result, err := module.Handler.LoginHandler(context.Background(), httptransport.LoginRequest{
			Identifier: identifier,
			Password:   "s3cret-pass",
		})
		require.NoError(t, err, identifier)
		assert.Equal(t, student.ID, result.Student.ID)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)

		authenticated, err := module.Handler.Authenticate(context.Background(), result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, student.ID, authenticated.StudentID)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	register(t, module, "r400", "Dana", "")

	_, err := module.Handler.LoginHandler(context.Background(), httptransport.LoginRequest{Identifier: "r400", Password: "wrong-pass"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	_, err = module.Handler.LoginHandler(context.Background(), httptransport.LoginRequest{Identifier: "nobody", Password: "wrong-pass"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	_, err = module.Handler.LoginHandler(context.Background(), httptransport.LoginRequest{Identifier: "r400"})
	assert.ErrorIs(t, err, domainerrors.ErrMissingCredentials)
}

func TestRefreshAndLogout(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	student := register(t, module, "r500", "Eli", "")
	login, err := module.Handler.LoginHandler(context.Background(), httptransport.LoginRequest{Identifier: "r500", Password: "s3cret-pass"})
	require.NoError(t, err)

	refreshed, err := module.Handler.RefreshHandler(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = module.Handler.RefreshHandler(context.Background(), login.AccessToken)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidRefreshToken)

	_, err = module.Handler.RefreshHandler(context.Background(), "")
	assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenRequired)

	_, err = module.Handler.LogoutHandler(context.Background(), actor(t, module, student.ID))
	require.NoError(t, err)

	_, err = module.Handler.RefreshHandler(context.Background(), login.RefreshToken)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidRefreshToken)
}

func TestNewerLoginInvalidatesOlderRefreshToken(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	register(t, module, "r550", "Fay", "")
	first, err := module.Handler.LoginHandler(context.Background(), httptransport.LoginRequest{Identifier: "r550", Password: "s3cret-pass"})
	require.NoError(t, err)
	second, err := module.Handler.LoginHandler(context.Background(), httptransport.LoginRequest{Identifier: "r550", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, err = module.Handler.RefreshHandler(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidRefreshToken)
	_, err = module.Handler.RefreshHandler(context.Background(), second.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)

	_, err := module.Handler.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)

	_, err = module.Handler.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidAccessToken)
}

func TestAuthenticateSeesRoleChangesWithoutRelogin(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	student := register(t, module, "r600", "Gia", "")
	login, err := module.Handler.LoginHandler(context.Background(), httptransport.LoginRequest{Identifier: "r600", Password: "s3cret-pass"})
	require.NoError(t, err)

	stored := actor(t, module, student.ID)
	stored.Role = entities.RoleCR
	module.Store.PutStudent(stored)

	authenticated, err := module.Handler.Authenticate(context.Background(), login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, entities.RoleCR, authenticated.Role)
}

func TestUpdateProfileChangesOnlyGivenFields(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	student := register(t, module, "r700", "Hana", "")
	name := "Hana K"
	phone := " 555-0101 "

	updated, err := module.Handler.UpdateProfileHandler(context.Background(), actor(t, module, student.ID), httptransport.UpdateProfileRequest{
		Name:  &name,
		Phone: &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hana K", updated.Name)
	assert.Equal(t, "555-0101", updated.Phone)
	assert.Equal(t, "CSE-2", updated.ClassName)
	assert.Equal(t, "STUDENT", updated.Role)
}

func TestUpdateProfileRejectsTakenEmailAndBadClass(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	first := register(t, module, "r800", "Ivo", "")
	register(t, module, "r801", "Jun", "")

	taken := "r801@campus.test"
	_, err := module.Handler.UpdateProfileHandler(context.Background(), actor(t, module, first.ID), httptransport.UpdateProfileRequest{Email: &taken})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyRegistered)

	badClass := "XYZ-1"
	_, err = module.Handler.UpdateProfileHandler(context.Background(), actor(t, module, first.ID), httptransport.UpdateProfileRequest{ClassName: &badClass})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidClass)
}

func TestClassRepresentativeCannotChangeClass(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	student := register(t, module, "r900", "Kai", "")
	stored := actor(t, module, student.ID)
	stored.Role = entities.RoleCR
	module.Store.PutStudent(stored)

	other := "ECE-2"
	_, err := module.Handler.UpdateProfileHandler(context.Background(), stored, httptransport.UpdateProfileRequest{ClassName: &other})
	assert.ErrorIs(t, err, domainerrors.ErrClassLockedForCR)

	same := "CSE-2"
	_, err = module.Handler.UpdateProfileHandler(context.Background(), stored, httptransport.UpdateProfileRequest{ClassName: &same})
	assert.NoError(t, err)
}

func TestUploadAvatar(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	student := register(t, module, "r1000", "Lea", "")
	body := []byte("\x89PNG fake image")

	updated, err := module.Handler.UploadAvatarHandler(context.Background(), actor(t, module, student.ID),
		"me.png", "image/png", int64(len(body)), bytes.NewReader(body))
	require.NoError(t, err)
	require.NotEmpty(t, updated.AvatarURL)

	stored, ok := module.Store.Avatar(updated.AvatarURL)
	require.True(t, ok)
	assert.Equal(t, body, stored)
}

func TestUploadAvatarRejectsNonImagesAndLargeFiles(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	student := register(t, module, "r1100", "Mo", "")
	current := actor(t, module, student.ID)

	_, err := module.Handler.UploadAvatarHandler(context.Background(), current, "a.txt", "text/plain", 4, strings.NewReader("text"))
	assert.ErrorIs(t, err, domainerrors.ErrInvalidAvatar)

	_, err = module.Handler.UploadAvatarHandler(context.Background(), current, "a.png", "image/png", (2<<20)+1, strings.NewReader("x"))
	assert.ErrorIs(t, err, domainerrors.ErrInvalidAvatar)
}

func TestListStudentsRequiresPrivilegedRole(t *testing.T) {
	module := studentdirectory.NewInMemoryModule(nil, nil)
	plain := register(t, module, "r1200", "Zed", "")
	faculty := register(t, module, "f1", "Prof Yu", "FACULTY")
	register(t, module, "r1201", "Amy", "")

	_, err := module.Handler.ListStudentsHandler(context.Background(), actor(t, module, plain.ID), httptransport.ListStudentsRequest{})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	list, err := module.Handler.ListStudentsHandler(context.Background(), actor(t, module, faculty.ID), httptransport.ListStudentsRequest{
		ClassName: "CSE-2",
	})
	require.NoError(t, err)
	require.Len(t, list.Items, 3)
	assert.Equal(t, "Amy", list.Items[0].Name)
	assert.Equal(t, "Zed", list.Items[2].Name)

	list, err = module.Handler.ListStudentsHandler(context.Background(), actor(t, module, faculty.ID), httptransport.ListStudentsRequest{
		Search: "R120",
	})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
}
