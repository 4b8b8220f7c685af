package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cpstats-backend/internal/components/assert"
	"cpstats-backend/internal/components/chrono"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mazen160/go-random"
)

const DefaultTokenTTL = time.Hour * 24 * 30

// Verifier checks and issues HS256 signed credentials whose subject is the
// identity's id.
type Verifier struct {
	secret []byte
	issuer string
	clock  chrono.API
}

func NewVerifier(secret, issuer string, clock chrono.API) Verifier {
	assert.NotEmptyStr(secret, "jwt secret")
	assert.NotNil(clock, "clock")
	return Verifier{
		secret: []byte(secret),
		issuer: issuer,
		clock:  clock,
	}
}

func (v Verifier) parserOptions() []jwt.ParserOption {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	return options
}

func (v Verifier) VerifyCredential(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingCredential
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.parserOptions()...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, fmt.Errorf("%w: subject is empty", ErrInvalidCredential)
	}

	return Identity{ID: claims.Subject}, nil
}

// Issue mints a credential for `id` that expires after `ttl`.
func (v Verifier) Issue(id string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", errors.New("id is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	jti, err := random.String(16)
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := v.clock.Now()
	claims := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   id,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
