package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "civitas/pkg/domain"
	"civitas/pkg/platform/middleware/request"
	"civitas/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// MergeChecker reports whether an account has been folded into another.
type MergeChecker interface {
	MergedInto(ctx context.Context, accountID id.AccountID) (id.AccountID, bool, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	AccountID string
	JTI       string
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth validates the bearer token and places the account id in the
// request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			accountID, err := id.ParseAccountID(claims.AccountID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed subject",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid token subject")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithAccountID(ctx, accountID)))
		})
	}
}

// RejectMerged blocks accounts that were merged into a canonical account.
// Must run after RequireAuth.
func RejectMerged(checker MergeChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			accountID := requestcontext.AccountID(ctx)
			if accountID.IsNil() {
				next.ServeHTTP(w, r)
				return
			}
			canonical, merged, err := checker.MergedInto(ctx, accountID)
			if err != nil {
				logger.ErrorContext(ctx, "failed to check account merge state",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "")
				return
			}
			if merged {
				logger.InfoContext(ctx, "merged account rejected",
					"account_id", accountID.String(),
					"merged_into", canonical.String(),
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "account_merged", "Account has been merged into "+canonical.String())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
