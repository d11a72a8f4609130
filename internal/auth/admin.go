// Package auth guards the operational endpoints with a single admin
// bearer token, verified against a bcrypt hash so the plaintext token
// never lives in configuration.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrUnauthorized = errors.New("unauthorized")

type AdminAuth struct {
	tokenHash string
}

// NewAdminAuth takes the bcrypt hash of the admin token. An empty hash
// disables the guarded endpoints entirely.
func NewAdminAuth(tokenHash string) *AdminAuth {
	return &AdminAuth{tokenHash: tokenHash}
}

func (a *AdminAuth) Enabled() bool {
	return a.tokenHash != ""
}

func (a *AdminAuth) Verify(token string) error {
	if !a.Enabled() {
		return ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.tokenHash), []byte(token)); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// Require wraps an http.Handler and rejects requests without a valid
// admin bearer token.
func (a *AdminAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractBearerToken(r)
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if err := a.Verify(token); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HashToken produces the bcrypt hash to put in configuration.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func ExtractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
