package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/victornm/speedcolor/internal/errors"
)

const DefaultTTL = 7 * 24 * time.Hour

// Identity is what a verified bearer token says about its holder.
type Identity struct {
	UserID string
	Email  string
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

// Tokens issues and verifies HS256 signed JWTs.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(c TokenConfig) *Tokens {
	t := &Tokens{
		secret: []byte(c.Secret),
		ttl:    c.TTL,
		now:    c.Now,
	}

	if t.ttl <= 0 {
		t.ttl = DefaultTTL
	}
	if t.now == nil {
		t.now = time.Now
	}

	return t
}

func (t *Tokens) Issue(userID, email string) (string, error) {
	now := t.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return s, nil
}

// Verify returns an Unauthenticated error for any token that is not valid right now.
func (t *Tokens) Verify(token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, errors.Unauthenticated("Unauthorized")
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(tk *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("Invalid token"),
			errors.WithCause(err),
		)
	}

	if claims.Subject == "" {
		return Identity{}, errors.Unauthenticated("Invalid token")
	}

	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
