package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeInvalidProof, "bad proof")
		assert.True(t, HasCode(err, CodeInvalidProof))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("verify: %w", New(CodeSessionExpired, "expired"))
		assert.True(t, HasCode(err, CodeSessionExpired))
	})

	t.Run("matches nested domain errors", func(t *testing.T) {
		inner := New(CodeUpstreamUnavailable, "provider down")
		outer := Wrap(inner, CodeInternal, "verification failed")
		assert.True(t, HasCode(outer, CodeUpstreamUnavailable))
		assert.True(t, Retryable(outer))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidProof:           http.StatusUnprocessableEntity,
		CodeAgeIneligible:          http.StatusUnprocessableEntity,
		CodeDuplicateIdentity:      http.StatusConflict,
		CodeSessionNotFound:        http.StatusNotFound,
		CodeSessionExpired:         http.StatusGone,
		CodeSessionAlreadyConsumed: http.StatusConflict,
		CodeFreshnessExceeded:      http.StatusPreconditionRequired,
		CodeUpstreamUnavailable:    http.StatusServiceUnavailable,
		CodeAccountMerged:          http.StatusForbidden,
		Code("unknown"):            http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), string(code))
	}
}
