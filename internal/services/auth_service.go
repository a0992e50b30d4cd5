package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/config"
	"github.com/policygraph/policygraph/internal/models"
)

// tokenTTL is how long an issued admin token stays valid.
const tokenTTL = 24 * time.Hour

// AuthService authenticates administrators of the policy store's admin API
// and issues/verifies the JWTs the auth middleware checks.
type AuthService struct {
	db     *gorm.DB
	secret []byte
}

// NewAuthService returns an AuthService using the provided DB and config.
func NewAuthService(db *gorm.DB, cfg config.Config) *AuthService {
	return &AuthService{db: db, secret: []byte(cfg.JWTSecret)}
}

// Claims are the JWT claims carried by admin tokens.
type Claims struct {
	UserUUID string `json:"user_uuid"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Login verifies credentials and returns a signed token.
func (s *AuthService) Login(email, password string) (string, *models.User, error) {
	var user models.User
	if err := s.db.Where("email = ? AND enabled = ?", email, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, classifyStorageError(err)
	}

	if !user.CheckPassword(password) {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.db.Model(&user).Update("last_login", now).Error; err != nil {
		return "", nil, classifyStorageError(err)
	}

	token, err := s.issueToken(&user, now)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

func (s *AuthService) issueToken(user *models.User, now time.Time) (string, error) {
	claims := Claims{
		UserUUID: user.UUID,
		Email:    user.Email,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			Subject:   user.UUID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token, returning its claims.
func (s *AuthService) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// EnsureAdmin creates the bootstrap administrator if no user exists yet.
// Returns whether a user was created.
func (s *AuthService) EnsureAdmin(email, password string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return false, classifyStorageError(err)
	}
	if count > 0 {
		return false, nil
	}

	user := models.User{
		UUID:    uuid.NewString(),
		Email:   email,
		Name:    "Administrator",
		Role:    "admin",
		Enabled: true,
	}
	if err := user.SetPassword(password); err != nil {
		return false, err
	}
	if err := s.db.Create(&user).Error; err != nil {
		return false, classifyStorageError(err)
	}
	return true, nil
}
