package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	pkgerrors "assesy/pkg/errors"
	"assesy/pkg/utils/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultAdminTokenTTL = 8 * time.Hour
	defaultJWTIssuer     = "assesy"
	adminRole            = "admin"
	accessTokenType      = "access"
)

// AuthServiceConfig holds configuration for AuthService.
type AuthServiceConfig struct {
	JWTSecret []byte
	JWTIssuer string
	TokenTTL  time.Duration
	Username  string
	// PasswordHash is a bcrypt hash. Password is hashed at construction when
	// no hash is configured.
	PasswordHash string
	Password     string
}

// Operator is the authenticated admin.
type Operator struct {
	Username string
	Role     string
}

// LoginResult is an issued admin token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService authenticates the single operator account.
type AuthService struct {
	config       AuthServiceConfig
	passwordHash []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg AuthServiceConfig) (*AuthService, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("admin username is required")
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaultAdminTokenTTL
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = defaultJWTIssuer
	}
	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		if cfg.Password == "" {
			return nil, fmt.Errorf("admin password or password hash is required")
		}
		generated, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password failed: %w", err)
		}
		hash = generated
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid admin password hash: %w", err)
	}
	cfg.Password = ""
	return &AuthService{config: cfg, passwordHash: hash}, nil
}

// Login checks the operator credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if username == "" || password == "" {
		return LoginResult{}, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("username and password are required")
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.config.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		logger.Warn(ctx, "admin login rejected", zap.String("username", username))
		return LoginResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
	}

	now := time.Now()
	expiresAt := now.Add(s.config.TokenTTL)
	claims := tokenClaims{
		Role:      adminRole,
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.config.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.JWTSecret)
	if err != nil {
		return LoginResult{}, pkgerrors.Wrap(fmt.Errorf("sign token failed: %w", err), pkgerrors.TokenGenerationFailed)
	}
	logger.Info(ctx, "admin logged in", zap.String("username", username))
	return LoginResult{Token: signed, ExpiresAt: expiresAt}, nil
}

type tokenClaims struct {
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Authenticate validates an access token and returns its operator.
func (s *AuthService) Authenticate(_ context.Context, raw string) (Operator, error) {
	if raw == "" {
		return Operator{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, err := s.parseToken(raw)
	if err != nil {
		return Operator{}, err
	}
	return Operator{Username: claims.Subject, Role: claims.Role}, nil
}

func (s *AuthService) parseToken(raw string) (*tokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.config.JWTSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.New(pkgerrors.TokenExpired)
		}
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if claims.Issuer != s.config.JWTIssuer || claims.TokenType != accessTokenType || claims.Role != adminRole {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if claims.Subject != s.config.Username {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	return claims, nil
}
