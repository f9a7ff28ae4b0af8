// Package middleware provides HTTP middleware for reviewer authentication.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// reviewerKey is the context key for storing the authenticated reviewer.
const reviewerKey ContextKey = "reviewer"

// TokenValidator validates bearer tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (ReviewerGetter, error)
}

// ReviewerGetter extracts the reviewer identity from token claims.
type ReviewerGetter interface {
	GetReviewer() string
}

// RequireReviewer creates middleware that validates bearer tokens and adds the
// reviewer to the request context.
func RequireReviewer(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reviewer := claims.GetReviewer()
			if reviewer == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), reviewerKey, reviewer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from a case-insensitive "Bearer" Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetReviewer extracts the authenticated reviewer from the request context.
func GetReviewer(r *http.Request) (string, error) {
	reviewer, ok := r.Context().Value(reviewerKey).(string)
	if !ok || reviewer == "" {
		return "", fmt.Errorf("reviewer not found in request context")
	}
	return reviewer, nil
}
