package services

import (
	"crypto/subtle"
	"errors"
	"time"

	"belgian-housing-api/config"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "admin"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginDisabled      = errors.New("admin login is not configured")
)

type AuthService struct {
	jwtSecret []byte
	expiryH   int
	admin     config.AdminConfig
}

func NewAuthService(cfg config.JWTConfig, admin config.AdminConfig) *AuthService {
	return &AuthService{
		jwtSecret: []byte(cfg.Secret),
		expiryH:   cfg.ExpiryHours,
		admin:     admin,
	}
}

func (s *AuthService) HashPassword(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(bytes), err
}

func (s *AuthService) CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Login checks the single admin credential and issues a token. Without a
// configured ADMIN_PASSWORD_HASH nobody can log in.
func (s *AuthService) Login(username, password string) (string, time.Time, error) {
	if s.admin.PasswordHash == "" {
		return "", time.Time{}, ErrLoginDisabled
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	passOK := s.CheckPassword(s.admin.PasswordHash, password)
	if !userOK || !passOK {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.GenerateToken(username, RoleAdmin)
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (s *AuthService) GenerateToken(username, role string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(time.Duration(s.expiryH) * time.Hour)
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Enabled reports whether an admin credential is configured. Without one no
// token is accepted, whoever signed it.
func (s *AuthService) Enabled() bool { return s.admin.PasswordHash != "" }

func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrLoginDisabled
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.jwtSecret, nil
		},
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
