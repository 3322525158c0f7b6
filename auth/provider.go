/*
Package auth is the identity boundary for the reservation engine.

PURPOSE:
  Turns a (username, vehicleNumber) pair into an Identity with a
  synthesized user id and a signed session token. There is deliberately
  no credential verification: any non-empty strings sign in. The admin
  flag derives from case-insensitive equality to a reserved username and
  nothing else.

SESSIONS:
  Tokens are HS256 JWTs carrying the identity in their claims. Each token
  also carries a session id (jti) registered in an in-memory set, so
  SignOut can revoke a session immediately even though the token itself
  stays well-formed until it expires.

SEE ALSO:
  - api/handlers.go: Login/logout endpoints and the bearer middleware
*/
package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/warp/parking-engine/parking"
)

// DefaultAdminUsername is the reserved name that grants the admin flag.
const DefaultAdminUsername = "admin"

// DefaultSessionTTL bounds how long an issued token stays valid.
const DefaultSessionTTL = 24 * time.Hour

var (
	// ErrEmptyUsername is returned when the username is blank.
	ErrEmptyUsername = errors.New("username is required")

	// ErrEmptyVehicle is returned when the vehicle number is blank.
	ErrEmptyVehicle = errors.New("vehicle number is required")

	// ErrInvalidToken is returned for malformed, expired, or revoked
	// session tokens. It unwraps to parking.ErrUnauthenticated so the
	// engine's error taxonomy applies end to end.
	ErrInvalidToken = fmt.Errorf("%w: invalid or expired session", parking.ErrUnauthenticated)
)

// =============================================================================
// PROVIDER
// =============================================================================

// Provider issues and validates sessions.
type Provider struct {
	adminUsername string
	secret        []byte
	ttl           time.Duration
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[string]parking.Identity // keyed by token jti
}

// Option configures a Provider.
type Option func(*Provider)

// WithAdminUsername overrides the reserved admin name.
func WithAdminUsername(name string) Option {
	return func(p *Provider) { p.adminUsername = name }
}

// WithSessionTTL overrides the token lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(p *Provider) { p.ttl = ttl }
}

// NewProvider creates a provider signing tokens with the given secret.
func NewProvider(secret []byte, opts ...Option) *Provider {
	p := &Provider{
		adminUsername: DefaultAdminUsername,
		secret:        secret,
		ttl:           DefaultSessionTTL,
		now:           func() time.Time { return time.Now().UTC() },
		sessions:      make(map[string]parking.Identity),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SignIn accepts any non-empty username and vehicle number, synthesizes
// a user id, and returns the identity with its session token.
func (p *Provider) SignIn(username, vehicleNumber string) (parking.Identity, string, error) {
	username = strings.TrimSpace(username)
	vehicleNumber = strings.TrimSpace(vehicleNumber)
	if username == "" {
		return parking.Identity{}, "", ErrEmptyUsername
	}
	if vehicleNumber == "" {
		return parking.Identity{}, "", ErrEmptyVehicle
	}

	id := parking.Identity{
		UserID:        uuid.NewString(),
		Username:      username,
		VehicleNumber: vehicleNumber,
		IsAdmin:       parking.IsAdminUsername(username, p.adminUsername),
	}

	sessionID := uuid.NewString()
	now := p.now()
	claims := jwt.MapClaims{
		"jti":      sessionID,
		"sub":      id.UserID,
		"username": id.Username,
		"vehicle":  id.VehicleNumber,
		"admin":    id.IsAdmin,
		"iat":      jwt.NewNumericDate(now),
		"exp":      jwt.NewNumericDate(now.Add(p.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return parking.Identity{}, "", fmt.Errorf("signing session token: %w", err)
	}

	p.mu.Lock()
	p.sessions[sessionID] = id
	p.mu.Unlock()

	return id, token, nil
}

// FromToken validates a session token and returns the identity behind
// it. Revoked and expired sessions fail with ErrInvalidToken.
func (p *Provider) FromToken(token string) (parking.Identity, error) {
	sessionID, err := p.parseSessionID(token)
	if err != nil {
		return parking.Identity{}, err
	}

	p.mu.RLock()
	id, ok := p.sessions[sessionID]
	p.mu.RUnlock()
	if !ok {
		return parking.Identity{}, ErrInvalidToken
	}
	return id, nil
}

// SignOut revokes the session behind the token. Idempotent: revoking an
// already-revoked or unknown session is a no-op.
func (p *Provider) SignOut(token string) {
	sessionID, err := p.parseSessionID(token)
	if err != nil {
		return
	}
	p.mu.Lock()
	delete(p.sessions, sessionID)
	p.mu.Unlock()
}

func (p *Provider) parseSessionID(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(p.now))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sessionID, ok := claims["jti"].(string)
	if !ok || sessionID == "" {
		return "", ErrInvalidToken
	}
	return sessionID, nil
}
