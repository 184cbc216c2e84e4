// Package auth mints and verifies the signed bearer tokens that gate the
// realtime gateways.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	apperrors "github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/errors"
)

const defaultTokenTTL = 24 * time.Hour

// claims is the wire shape of a token. Subject carries the user id.
type claims struct {
	jwt.RegisteredClaims
	Role    string `json:"role"`
	CadetID *int64 `json:"cadet_id,omitempty"`
}

// Manager signs and verifies HS256 bearer tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewManager(secret string, clock clockwork.Clock) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
		clock:  clock,
	}
}

// WithTTL overrides the token lifetime.
func (m *Manager) WithTTL(ttl time.Duration) *Manager {
	m.ttl = ttl
	return m
}

// Mint issues a signed token for the given identity.
func (m *Manager) Mint(identity domain.Identity) (string, error) {
	if !identity.Role.Valid() {
		return "", fmt.Errorf("cannot mint token for invalid role %q", identity.Role)
	}

	now := m.clock.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Role:    string(identity.Role),
		CadetID: identity.CadetID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the identity it carries.
// All failures map to an unauthorized error so gateways can reject the
// connection without leaking why.
func (m *Manager) Verify(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, apperrors.UnauthorizedError("missing token")
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(tokenString, &parsed, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, apperrors.UnauthorizedError("token expired")
		}
		return domain.Identity{}, apperrors.UnauthorizedError("invalid token")
	}

	userID, err := strconv.ParseInt(parsed.Subject, 10, 64)
	if err != nil {
		return domain.Identity{}, apperrors.UnauthorizedError("invalid token subject")
	}

	role := domain.Role(parsed.Role)
	if !role.Valid() {
		return domain.Identity{}, apperrors.UnauthorizedError("invalid token role")
	}

	identity := domain.Identity{
		UserID:  userID,
		Role:    role,
		CadetID: parsed.CadetID,
	}
	if role == domain.RoleCadet && identity.CadetID == nil {
		return domain.Identity{}, apperrors.UnauthorizedError("cadet token missing cadet_id")
	}
	return identity, nil
}
