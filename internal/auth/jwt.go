package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenLeeway absorbs clock skew between the issuer and this service.
const tokenLeeway = 30 * time.Second

var (
	// ErrMissingToken indicates the request carried no bearer token.
	ErrMissingToken = errors.New("auth: missing bearer token")
	// ErrInvalidToken indicates the token failed verification or carries bad claims.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims are the JWT claims accepted by the mapping API.
type Claims struct {
	TenantID string   `json:"tenant_id"`
	Role     string   `json:"role"`
	Programs []string `json:"programs,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken verifies an HS256 token and returns the identity it carries.
func ParseToken(tokenString string, secret []byte) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}
	if len(secret) == 0 {
		return Identity{}, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(tokenLeeway),
	)
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.identity()
}

func (c *Claims) identity() (Identity, error) {
	if c.TenantID == "" {
		return Identity{}, fmt.Errorf("%w: missing tenant_id", ErrInvalidToken)
	}
	role, ok := NormalizeRole(c.Role)
	if !ok {
		return Identity{}, fmt.Errorf("%w: role %q", ErrInvalidToken, c.Role)
	}
	for _, program := range c.Programs {
		if program == "" {
			return Identity{}, fmt.Errorf("%w: empty program in scope", ErrInvalidToken)
		}
	}
	return Identity{
		TenantID: c.TenantID,
		Subject:  c.Subject,
		Role:     role,
		Programs: append([]string(nil), c.Programs...),
	}, nil
}
