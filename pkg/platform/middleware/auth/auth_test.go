package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "civitas/pkg/domain"
	"civitas/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) { return s.claims, s.err }

type stubMergeChecker struct {
	into   id.AccountID
	merged bool
	err    error
}

func (s stubMergeChecker) MergedInto(context.Context, id.AccountID) (id.AccountID, bool, error) {
	return s.into, s.merged, s.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRequireAuth(t *testing.T) {
	accountID := id.NewAccountID()

	var seen id.AccountID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.AccountID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireAuth(stubValidator{}, discard())(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Missing or invalid Authorization header")
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		RequireAuth(stubValidator{err: errors.New("bad")}, discard())(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed subject", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer ok")
		RequireAuth(stubValidator{claims: &JWTClaims{AccountID: "not-a-uuid"}}, discard())(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token sets account", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer ok")
		RequireAuth(stubValidator{claims: &JWTClaims{AccountID: accountID.String()}}, discard())(next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, accountID, seen)
	})
}

func TestRejectMerged(t *testing.T) {
	accountID := id.NewAccountID()
	canonical := id.NewAccountID()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(requestcontext.WithAccountID(req.Context(), accountID))
	}

	t.Run("merged account is forbidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RejectMerged(stubMergeChecker{into: canonical, merged: true}, discard())(next).ServeHTTP(rec, newReq())
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "account_merged")
		assert.Contains(t, rec.Body.String(), canonical.String())
	})

	t.Run("canonical account passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RejectMerged(stubMergeChecker{}, discard())(next).ServeHTTP(rec, newReq())
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("lookup failure is internal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RejectMerged(stubMergeChecker{err: errors.New("db down")}, discard())(next).ServeHTTP(rec, newReq())
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
