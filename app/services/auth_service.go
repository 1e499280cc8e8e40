package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Session identifies one process lifetime. Tokens minted under a different
// session are rejected, so restarting the server logs everyone out.
type Session struct {
	id string
}

// NewSession generates a fresh random session.
func NewSession() Session {
	return Session{id: uuid.NewString()}
}

// ID returns the session identifier.
func (s Session) ID() string { return s.id }

// CredentialVerifier checks a username/password pair.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) error
}

// StaticCredentials accepts exactly one configured username/password pair.
type StaticCredentials struct {
	username []byte
	hash     []byte
}

// NewStaticCredentials hashes password with bcrypt at the given cost.
func NewStaticCredentials(username, password string, cost int) (*StaticCredentials, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &StaticCredentials{username: []byte(username), hash: hash}, nil
}

// Verify returns ErrInvalidCredentials unless both fields match.
func (c *StaticCredentials) Verify(_ context.Context, username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), c.username) == 1
	// Always run the hash comparison so a wrong username costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword(c.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// AuthService mints and validates session-bound bearer tokens.
type AuthService struct {
	verifier CredentialVerifier
	session  Session
	secret   []byte
	now      func() time.Time
}

// NewAuthService creates an AuthService signing with secret.
func NewAuthService(verifier CredentialVerifier, session Session, secret string) *AuthService {
	return &AuthService{
		verifier: verifier,
		session:  session,
		secret:   []byte(secret),
		now:      time.Now,
	}
}

// Authenticate verifies the credentials and returns a signed token for username.
// The token carries no expiry; it stays valid until the process restarts.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (string, error) {
	if err := s.verifier.Verify(ctx, username, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return "", err
		}
		return "", fmt.Errorf("verify credentials: %w", err)
	}

	claims := sessionClaims{
		SessionID: s.session.ID(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  username,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks the token signature and session and returns its subject.
func (s *AuthService) Validate(token string) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(claims.SessionID), []byte(s.session.ID())) != 1 {
		return "", ErrSessionExpired
	}
	return claims.Subject, nil
}
