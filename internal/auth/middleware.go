package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	httputil "github.com/secureauth/sentinel/pkg/http"
)

type contextKey string

// AccountContextKey is the context key the verified account id is stored
// under.
const AccountContextKey contextKey = "account_id"

// RequireAccount rejects requests without a valid bearer token and injects
// the verified account id into the request context.
func RequireAccount(verifier *TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				httputil.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			accountID, _, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				logger.Debug("token verification failed", slog.String("path", r.URL.Path))
				httputil.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), AccountContextKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccountID returns the authenticated account id from the request context.
func GetAccountID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(AccountContextKey).(uuid.UUID)
	return id, ok
}
