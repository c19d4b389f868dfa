// Package auth implements the single-administrator login: credential check,
// signed session tokens and logout revocation.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	AdminSubject = "admin"
	AdminUserID  = 1
	DefaultTTL   = 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrRevokedToken       = errors.New("token revoked")
)

type Config struct {
	Email    string
	Password string
	// Secret signs tokens. A random secret is generated when empty, which
	// invalidates tokens on restart.
	Secret string
	TTL    time.Duration
}

type Claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	email    []byte
	password []byte
	secret   []byte
	ttl      time.Duration
	revoker  Revoker
	now      func() time.Time
	logger   *zap.Logger
}

func NewAuthenticator(config Config, revoker Revoker, logger *zap.Logger) (*Authenticator, error) {
	secret := []byte(config.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		logger.Warn("No session secret configured, using a random one")
	}
	if config.Email == "" || config.Password == "" {
		logger.Warn("Admin credentials are not configured, admin login is disabled")
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}

	return &Authenticator{
		email:    []byte(config.Email),
		password: []byte(config.Password),
		secret:   secret,
		ttl:      config.TTL,
		revoker:  revoker,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// CheckCredentials compares in constant time. It always fails when no
// credentials are configured.
func (a *Authenticator) CheckCredentials(email, password string) bool {
	if len(a.email) == 0 || len(a.password) == 0 {
		return false
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), a.email)
	passwordOK := subtle.ConstantTimeCompare([]byte(password), a.password)
	return emailOK&passwordOK == 1
}

// Login issues a token for valid credentials.
func (a *Authenticator) Login(email, password string) (string, time.Time, error) {
	if !a.CheckCredentials(email, password) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.Issue()
}

func (a *Authenticator) Issue() (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := Claims{
		UserID: AdminUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   AdminSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (a *Authenticator) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject != AdminSubject || claims.UserID != AdminUserID {
		return nil, fmt.Errorf("%w: unexpected subject", ErrInvalidToken)
	}
	return claims, nil
}

// Verify checks signature, expiry, subject and revocation.
func (a *Authenticator) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := a.parse(token)
	if err != nil {
		return nil, err
	}

	revoked, err := a.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		a.logger.Error("Failed to check token revocation", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if revoked {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke blocks token until it would have expired anyway. Invalid tokens
// are ignored.
func (a *Authenticator) Revoke(ctx context.Context, token string) error {
	claims, err := a.parse(token)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(a.now())
	if ttl <= 0 {
		return nil
	}
	return a.revoker.Revoke(ctx, claims.ID, ttl)
}
