package http

import "time"

type RegisterRequest struct {
	IDNo         string `json:"idNo" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	Name         string `json:"name" validate:"required"`
	Role         string `json:"role,omitempty" validate:"omitempty,oneof=STUDENT FACULTY ADMIN"`
	ClassName    string `json:"class,omitempty"`
	AcademicYear string `json:"acadmicYear,omitempty" validate:"omitempty,oneof=E1 E2 E3 E4"`
	Branch       string `json:"branch,omitempty"`
	Section      string `json:"section,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// LoginRequest takes the email or the idNo as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type UpdateProfileRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	ClassName    *string `json:"class,omitempty"`
	AcademicYear *string `json:"acadmicYear,omitempty"`
	Branch       *string `json:"branch,omitempty"`
	Section      *string `json:"section,omitempty"`
	Phone        *string `json:"phone,omitempty"`
}

type ListStudentsRequest struct {
	ClassName string
	Search    string
}

type StudentResponse struct {
	ID           string    `json:"id"`
	IDNo         string    `json:"idNo"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	ClassName    string    `json:"class,omitempty"`
	Branch       string    `json:"branch,omitempty"`
	Section      string    `json:"section,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	AcademicYear string    `json:"acadmicYear,omitempty"`
	Role         string    `json:"role"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type LoginResponse struct {
	Student      StudentResponse `json:"student"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type ListStudentsResponse struct {
	Items []StudentResponse `json:"items"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
