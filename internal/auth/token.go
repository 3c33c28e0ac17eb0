package auth

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ErrMissingToken indicates the Authorization header carried no usable token.
var ErrMissingToken = errors.New("missing bearer token")

// NewToken returns a fresh opaque bearer token.
func NewToken() string {
	return uuid.NewString()
}

// NewUserID returns a fresh, sortable user identifier.
func NewUserID() string {
	return ulid.Make().String()
}

// ParseAuthorization extracts the token from an "<scheme> <token>" header.
// The scheme itself is not checked.
func ParseAuthorization(header string) (string, error) {
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return "", ErrMissingToken
	}
	return fields[1], nil
}
