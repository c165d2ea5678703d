package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"evride/internal/domain"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired or wrongly signed.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrMissingSecret is returned when the provider is built without a signing secret.
	ErrMissingSecret = errors.New("jwt secret is required")
)

// Claims represents the JWT payload. The subject is the user id.
type Claims struct {
	Role domain.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   domain.UserRole
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == domain.UserRoleAdmin
}

// Provider validates bearer tokens issued by the identity provider. It can
// also issue tokens for local development and tests.
type Provider struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewProvider creates a Provider for HS256 tokens signed with secret.
func NewProvider(secret, issuer string, ttl time.Duration) (*Provider, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Provider{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue creates a signed token for userID.
func (p *Provider) Issue(userID string, role domain.UserRole) (string, error) {
	if role == "" {
		role = domain.UserRoleUser
	}
	now := p.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// CurrentUser validates raw and returns the identity it carries.
func (p *Provider) CurrentUser(raw string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = domain.UserRoleUser
	}
	return Identity{UserID: claims.Subject, Role: role}, nil
}
