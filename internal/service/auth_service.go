package service

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gradeflow/gradeflow-api/internal/models"
	"github.com/gradeflow/gradeflow-api/pkg/config"
	"github.com/gradeflow/gradeflow-api/pkg/errors"
)

// UserReader resolves login identities.
type UserReader interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByCWID(ctx context.Context, cwid string) (*models.User, error)
}

// AuthService issues and validates JWT access tokens.
type AuthService struct {
	users    UserReader
	cfg      config.JWTConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(users UserReader, cfg config.JWTConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:    users,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
	}
}

// Login checks credentials and issues a signed access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(err, errors.ErrValidation.Code, errors.ErrValidation.Status, "invalid login request")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(s.cfg.Expiration)
	claims := models.JWTClaims{
		CWID:  user.CWID,
		Email: user.Email,
		Admin: user.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.CWID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "failed to sign token")
	}

	s.logger.Sugar().Infow("user logged in", "cwid", user.CWID)
	return &models.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        *user,
	}, nil
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrUnauthorized
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.Clone(errors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}
