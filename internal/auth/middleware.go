package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "parksync/internal/errors"
)

// Middleware resolves the bearer token into an Actor stored on the request
// context. Requests without a valid token are rejected with 401.
func Middleware(tokens *TokenMaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, apperrors.ErrUnauthorized("missing bearer token"))
				return
			}
			actor, err := tokens.Parse(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeError(w, apperrors.ErrUnauthorized("invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole rejects authenticated requests whose actor lacks role.
func RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				writeError(w, apperrors.ErrUnauthorized("authentication required"))
				return
			}
			if actor.Role != role {
				writeError(w, apperrors.NewHTTPError(http.StatusForbidden, "forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, e *apperrors.HTTPError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	json.NewEncoder(w).Encode(map[string]string{"error": e.Message})
}
