package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/api/dto"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/auth"
)

// SessionCookie is the cookie login sets for browser clients.
const SessionCookie = "token"

// Auth validates the session credential and stores the principal it
// asserts. Handlers still resolve that principal through access.Gate, which
// checks it against the directory.
func Auth(jwtService auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string

			// 1. Check Authorization header (API requests)
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}

			// 2. Check cookie (browser form pages)
			if token == "" {
				if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
					token = cookie.Value
				}
			}

			if token == "" {
				unauthorized(w, "missing session")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				unauthorized(w, "invalid session")
				return
			}

			ctx := access.NewContext(r.Context(), &access.Principal{
				ID:    claims.UserID,
				Role:  claims.Role,
				Email: claims.Email,
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, apperr.KindUnauthenticated, msg)
}

func writeError(w http.ResponseWriter, status int, kind apperr.Kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.Envelope{
		Error: &dto.ErrorBody{Kind: string(kind), Message: msg},
	})
}
