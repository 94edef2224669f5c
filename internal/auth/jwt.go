package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator accepts HS256 tokens whose subject is the joining username.
type JWTValidator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTValidator(secret, issuer string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue signs a token for username valid for ttl.
func (v *JWTValidator) Issue(username string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Issuer:    v.issuer,
		Subject:   Canonical(username),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *JWTValidator) Validate(username, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", ErrInvalidIdentity)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if !SameUser(claims.Subject, username) {
		return "", fmt.Errorf("%w: token subject %q does not match %q", ErrInvalidIdentity, claims.Subject, username)
	}
	return Canonical(username), nil
}
