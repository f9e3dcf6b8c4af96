package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"realm-server/internal/auth"
	"realm-server/internal/shared/errors"
	"realm-server/internal/shared/response"
)

type contextKey string

const UserContextKey contextKey = "user"

func JWTMiddleware(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := slog.With(
				"middleware", "jwt",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			logger.Debug("Processing JWT authentication")

			token := auth.TokenFromRequest(r)
			if token == "" {
				response.Error(w, r, logger, errors.Unauthorized("authentication required"))
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				response.Error(w, r, logger, errors.Unauthorized("invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			logger.Debug("JWT authentication successful", "username", claims.Username)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper to get user from context
func GetUserFromContext(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(UserContextKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
