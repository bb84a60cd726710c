package security

import (
	"errors"
	"strings"
	"time"

	"campus/contexts/identity-access/student-directory/domain/entities"
	domainerrors "campus/contexts/identity-access/student-directory/domain/errors"
	"campus/contexts/identity-access/student-directory/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "campus"

// JWTIssuer signs access and refresh tokens with separate HS256 secrets.
type JWTIssuer struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
}

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewJWTIssuer(accessSecret string, accessTTL time.Duration, refreshSecret string, refreshTTL time.Duration) (JWTIssuer, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return JWTIssuer{}, errors.New("jwt secrets are required")
	}
	if accessSecret == refreshSecret {
		return JWTIssuer{}, errors.New("access and refresh secrets must differ")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return JWTIssuer{
		AccessSecret:  []byte(accessSecret),
		AccessTTL:     accessTTL,
		RefreshSecret: []byte(refreshSecret),
		RefreshTTL:    refreshTTL,
	}, nil
}

func (j JWTIssuer) IssueAccessToken(student entities.Student, now time.Time) (string, error) {
	claims := accessClaims{
		Role:             string(student.Role),
		RegisteredClaims: registered(student.StudentID, now, j.AccessTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.AccessSecret)
}

func (j JWTIssuer) IssueRefreshToken(student entities.Student, now time.Time) (string, error) {
	claims := registered(student.StudentID, now, j.RefreshTTL)
	// jti keeps two refresh tokens minted in the same second distinct.
	claims.ID = uuid.NewString()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.RefreshSecret)
}

func (j JWTIssuer) ParseAccessToken(token string) (ports.AccessClaims, error) {
	var claims accessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, keyFunc(j.AccessSecret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return ports.AccessClaims{}, domainerrors.ErrInvalidAccessToken
	}
	role, ok := entities.ParseRole(claims.Role)
	if !ok {
		return ports.AccessClaims{}, domainerrors.ErrInvalidAccessToken
	}
	result := ports.AccessClaims{StudentID: claims.Subject, Role: role}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return result, nil
}

func (j JWTIssuer) ParseRefreshToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, keyFunc(j.RefreshSecret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", domainerrors.ErrInvalidRefreshToken
	}
	return claims.Subject, nil
}

func registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func keyFunc(secret []byte) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) {
		return secret, nil
	}
}

var _ ports.TokenIssuer = JWTIssuer{}
var _ ports.PasswordHasher = BcryptHasher{}
