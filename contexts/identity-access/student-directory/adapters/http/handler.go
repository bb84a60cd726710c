package httpadapter

import (
	"context"
	"io"
	"log/slog"

	"campus/contexts/identity-access/student-directory/application/commands"
	"campus/contexts/identity-access/student-directory/application/queries"
	"campus/contexts/identity-access/student-directory/domain/entities"
	httptransport "campus/contexts/identity-access/student-directory/transport/http"
)

type Handler struct {
	Register commands.RegisterUseCase
	Sessions commands.SessionUseCase
	Profiles commands.ProfileUseCase
	Students queries.StudentsUseCase
	Logger   *slog.Logger
}

func (h Handler) RegisterHandler(ctx context.Context, req httptransport.RegisterRequest) (httptransport.StudentResponse, error) {
	student, err := h.Register.Register(ctx, commands.RegisterCommand{
		IDNo:         req.IDNo,
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		Role:         req.Role,
		ClassName:    req.ClassName,
		AcademicYear: req.AcademicYear,
		Branch:       req.Branch,
		Section:      req.Section,
		Phone:        req.Phone,
	})
	if err != nil {
		return httptransport.StudentResponse{}, err
	}
	return MapStudent(student), nil
}

func (h Handler) LoginHandler(ctx context.Context, req httptransport.LoginRequest) (httptransport.LoginResponse, error) {
	result, err := h.Sessions.Login(ctx, commands.LoginCommand{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		return httptransport.LoginResponse{}, err
	}
	return httptransport.LoginResponse{
		Student:      MapStudent(result.Student),
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}, nil
}

func (h Handler) RefreshHandler(ctx context.Context, refreshToken string) (httptransport.RefreshResponse, error) {
	accessToken, err := h.Sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return httptransport.RefreshResponse{}, err
	}
	return httptransport.RefreshResponse{AccessToken: accessToken}, nil
}

func (h Handler) LogoutHandler(ctx context.Context, actor entities.Student) (httptransport.SuccessResponse, error) {
	if err := h.Sessions.Logout(ctx, actor.StudentID); err != nil {
		return httptransport.SuccessResponse{}, err
	}
	return httptransport.SuccessResponse{Success: true}, nil
}

func (h Handler) GetProfileHandler(ctx context.Context, actor entities.Student) (httptransport.StudentResponse, error) {
	student, err := h.Students.GetProfile(ctx, actor.StudentID)
	if err != nil {
		return httptransport.StudentResponse{}, err
	}
	return MapStudent(student), nil
}

func (h Handler) UpdateProfileHandler(
	ctx context.Context,
	actor entities.Student,
	req httptransport.UpdateProfileRequest,
) (httptransport.StudentResponse, error) {
	student, err := h.Profiles.UpdateProfile(ctx, commands.UpdateProfileCommand{
		StudentID:    actor.StudentID,
		Name:         req.Name,
		Email:        req.Email,
		ClassName:    req.ClassName,
		AcademicYear: req.AcademicYear,
		Branch:       req.Branch,
		Section:      req.Section,
		Phone:        req.Phone,
	})
	if err != nil {
		return httptransport.StudentResponse{}, err
	}
	return MapStudent(student), nil
}

func (h Handler) UploadAvatarHandler(
	ctx context.Context,
	actor entities.Student,
	fileName string,
	contentType string,
	size int64,
	body io.Reader,
) (httptransport.StudentResponse, error) {
	student, err := h.Profiles.UploadAvatar(ctx, commands.UploadAvatarCommand{
		StudentID:   actor.StudentID,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		Body:        body,
	})
	if err != nil {
		return httptransport.StudentResponse{}, err
	}
	return MapStudent(student), nil
}

func (h Handler) ListStudentsHandler(
	ctx context.Context,
	actor entities.Student,
	req httptransport.ListStudentsRequest,
) (httptransport.ListStudentsResponse, error) {
	students, err := h.Students.ListStudents(ctx, queries.ListStudentsQuery{
		Requester: actor,
		ClassName: req.ClassName,
		Search:    req.Search,
	})
	if err != nil {
		return httptransport.ListStudentsResponse{}, err
	}
	items := make([]httptransport.StudentResponse, 0, len(students))
	for _, student := range students {
		items = append(items, MapStudent(student))
	}
	return httptransport.ListStudentsResponse{Items: items}, nil
}

// Authenticate resolves a raw access token to the stored student.
func (h Handler) Authenticate(ctx context.Context, token string) (entities.Student, error) {
	return h.Students.Authenticate(ctx, token)
}

// MapStudent drops the password and refresh token hashes.
func MapStudent(student entities.Student) httptransport.StudentResponse {
	return httptransport.StudentResponse{
		ID:           student.StudentID,
		IDNo:         student.IDNo,
		Email:        student.Email,
		Name:         student.Name,
		ClassName:    student.ClassName,
		Branch:       student.Branch,
		Section:      student.Section,
		Phone:        student.Phone,
		AcademicYear: student.AcademicYear,
		Role:         string(student.Role),
		AvatarURL:    student.AvatarURL,
		CreatedAt:    student.CreatedAt,
		UpdatedAt:    student.UpdatedAt,
	}
}
