// Package auth checks the identity a client claims when it joins a room.
package auth

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidIdentity means the token is bad, expired, or names someone else.
var ErrInvalidIdentity = errors.New("invalid identity")

// Validator resolves a join request's (username, token) pair to the
// username the rest of the server should use.
type Validator interface {
	Validate(username, token string) (string, error)
}

var fold = cases.Fold()

// Canonical is the stored form of a username: trimmed and NFKC normalised.
func Canonical(username string) string {
	return norm.NFKC.String(strings.TrimSpace(username))
}

// SameUser compares two usernames ignoring case and compatibility forms.
func SameUser(a, b string) bool {
	return fold.String(Canonical(a)) == fold.String(Canonical(b))
}
