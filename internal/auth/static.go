package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// StaticValidator checks tokens against bcrypt hashes configured per user.
// Meant for local play and tests.
type StaticValidator struct {
	hashes map[string][]byte
}

// NewStaticValidator takes username -> bcrypt hash of that user's token.
func NewStaticValidator(users map[string]string) *StaticValidator {
	h := make(map[string][]byte, len(users))
	for u, hash := range users {
		h[fold.String(Canonical(u))] = []byte(hash)
	}
	return &StaticValidator{hashes: h}
}

func (v *StaticValidator) Validate(username, token string) (string, error) {
	hash, ok := v.hashes[fold.String(Canonical(username))]
	if !ok {
		return "", fmt.Errorf("%w: unknown user %q", ErrInvalidIdentity, username)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
		return "", fmt.Errorf("%w: bad token for %q", ErrInvalidIdentity, username)
	}
	return Canonical(username), nil
}

// HashToken returns the bcrypt hash to put in the config for token.
func HashToken(token string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
