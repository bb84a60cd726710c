package errors

import "errors"

var (
	ErrInvalidInput          = errors.New("idNo, email, password and name are required")
	ErrMissingCredentials    = errors.New("identifier and password are required")
	ErrInvalidEmail          = errors.New("invalid email address")
	ErrWeakPassword          = errors.New("password must be at least 8 characters")
	ErrInvalidClass          = errors.New("invalid class")
	ErrInvalidAcademicYear   = errors.New("invalid academic year")
	ErrInvalidRole           = errors.New("role cannot be self-assigned")
	ErrAlreadyRegistered     = errors.New("student already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrRefreshTokenRequired  = errors.New("refresh token is required")
	ErrInvalidRefreshToken   = errors.New("invalid refresh token")
	ErrUnauthenticated       = errors.New("unauthorized access, please login to continue")
	ErrInvalidAccessToken    = errors.New("invalid or expired token, please login again")
	ErrForbidden             = errors.New("you are not authorised to perform this action")
	ErrStudentNotFound       = errors.New("student not found")
	ErrClassLockedForCR      = errors.New("a class representative cannot change class")
	ErrInvalidAvatar         = errors.New("avatar must be an image of at most 2MB")
	ErrAvatarStorageDisabled = errors.New("avatar storage is not configured")
	ErrConflict              = errors.New("student conflict")
)
