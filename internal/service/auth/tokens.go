package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kirinyoku/tix-bus/internal/domain"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	AccountID int64
	Role      domain.Role
}

// HasRole reports whether the principal holds one of roles.
func (p Principal) HasRole(roles ...domain.Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

type claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token with sub, role, iat and exp claims.
func (t *Tokens) Issue(p Principal) (string, time.Time, error) {
	const op = "auth.Tokens.Issue"

	now := t.now().UTC()
	exp := now.Add(t.ttl)

	c := claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.AccountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s:%w", op, err)
	}

	return signed, exp, nil
}

// Parse verifies the signature and expiry of raw.
func (t *Tokens) Parse(raw string) (Principal, error) {
	const op = "auth.Tokens.Parse"

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%s:%w", op, errors.Join(invalidToken(), err))
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, fmt.Errorf("%s:%w", op, invalidToken())
	}

	switch c.Role {
	case domain.RoleUser, domain.RoleStaff, domain.RoleAdmin:
	default:
		return Principal{}, fmt.Errorf("%s:%w", op, invalidToken())
	}

	return Principal{AccountID: id, Role: c.Role}, nil
}
