package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	jwttoken "gsid-registry/internal/jwt_token"
	"gsid-registry/pkg/requestcontext"
)

// JWTValidator validates service tokens presented by center integrations.
type JWTValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

// RequireAuth authenticates requests with either a Bearer service token or an
// X-API-Key checked against a bcrypt hash. The resolved actor lands in the
// request context for audit attribution.
func RequireAuth(validator JWTValidator, apiKeyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"request_id", requestID,
						"error", err,
					)
					writeUnauthorized(w, "Invalid or expired token")
					return
				}
				ctx = requestcontext.WithActor(ctx, claims.Actor)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if key := r.Header.Get("X-API-Key"); key != "" && apiKeyHash != "" {
				if err := bcrypt.CompareHashAndPassword([]byte(apiKeyHash), []byte(key)); err != nil {
					logger.WarnContext(ctx, "unauthorized access - api key mismatch",
						"request_id", requestID,
					)
					writeUnauthorized(w, "Invalid API key")
					return
				}
				ctx = requestcontext.WithActor(ctx, "api-key")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			logger.WarnContext(ctx, "unauthorized access - missing credentials",
				"request_id", requestID,
			)
			writeUnauthorized(w, "Missing or invalid credentials")
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
