package providers

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civitas/internal/verification/models"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
)

func TestHTTPVerifier(t *testing.T) {
	t.Run("decodes disclosure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/verify", r.URL.Path)
			var body map[string]json.RawMessage
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.JSONEq(t, `{"mrz":"x"}`, string(body["proof"]))
			_, _ = w.Write([]byte(`{"valid":true,"attributes":{"document_number":"X1","document_type":"passport","nationality":"USA","birth_year":1990}}`))
		}))
		defer srv.Close()

		v := NewHTTPVerifier("pp", models.ProviderPassport, srv.URL, time.Second)
		d, err := v.Verify(context.Background(), json.RawMessage(`{"mrz":"x"}`))
		require.NoError(t, err)
		assert.True(t, d.Valid)
		assert.Equal(t, "X1", d.Attributes.DocumentNumber)
		assert.Equal(t, 1990, d.Attributes.BirthYear)
		assert.Equal(t, models.ProviderPassport, v.Type())
	})

	statusCases := []struct {
		status    int
		category  ErrorCategory
		retryable bool
		code      dErrors.Code
	}{
		{http.StatusServiceUnavailable, ErrorProviderOutage, true, dErrors.CodeUpstreamUnavailable},
		{http.StatusTooManyRequests, ErrorRateLimited, true, dErrors.CodeUpstreamUnavailable},
		{http.StatusUnprocessableEntity, ErrorBadData, false, dErrors.CodeInvalidProof},
		{http.StatusUnauthorized, ErrorAuthentication, false, dErrors.CodeInternal},
		{http.StatusTeapot, ErrorContractMismatch, false, dErrors.CodeInternal},
	}
	for _, tc := range statusCases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			_, err := NewHTTPVerifier("pp", models.ProviderPassport, srv.URL, time.Second).
				Verify(context.Background(), json.RawMessage(`{}`))
			require.Error(t, err)
			assert.Equal(t, tc.category, GetCategory(err))
			assert.Equal(t, tc.retryable, IsRetryable(err))
			assert.True(t, dErrors.HasCode(ToDomainError(err), tc.code))
		})
	}

	t.Run("timeout is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		_, err := NewHTTPVerifier("pp", models.ProviderPassport, srv.URL, 20*time.Millisecond).
			Verify(context.Background(), json.RawMessage(`{}`))
		require.Error(t, err)
		assert.Equal(t, ErrorTimeout, GetCategory(err))
		assert.True(t, dErrors.Retryable(ToDomainError(err)))
	})

	t.Run("malformed body is a contract mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()
		_, err := NewHTTPVerifier("pp", models.ProviderPassport, srv.URL, time.Second).
			Verify(context.Background(), json.RawMessage(`{}`))
		assert.Equal(t, ErrorContractMismatch, GetCategory(err))
	})
}

func TestHTTPMobileVerifier(t *testing.T) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	sessionID := id.NewSessionID()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, sessionID.String(), body["session_id"])
		assert.NotEmpty(t, body["reader_key"])
		_, _ = w.Write([]byte(`{"valid":true,"attributes":{"document_number":"M1","document_type":"mDL","nationality":"GB","birth_year":1980,"reference_document_number":"P1","reference_document_type":"passport"},"address":{"postal_code":"SW1A 1AA","city":"London","region":"ENG"}}`))
	}))
	defer srv.Close()

	d, err := NewHTTPMobileVerifier("wallet", srv.URL, time.Second).Open(context.Background(), key, sessionID, []byte("cbor"))
	require.NoError(t, err)
	assert.Equal(t, "P1", d.Attributes.ReferenceDocumentNumber)
	assert.Equal(t, "London", d.Address.City)

	d.Wipe()
	assert.Empty(t, d.Address.City)
	assert.Empty(t, d.Attributes.DocumentNumber)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(StaticVerifier{ProviderID: "a", ProviderType: models.ProviderPassport}))
	require.Error(t, r.Register(StaticVerifier{ProviderID: "b", ProviderType: models.ProviderPassport}))

	v, err := r.Get(models.ProviderPassport)
	require.NoError(t, err)
	assert.Equal(t, "a", v.ID())

	_, err = r.Get(models.ProviderMobileCredential)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestToDomainErrorPassesThroughDomainErrors(t *testing.T) {
	de := dErrors.New(dErrors.CodeAgeIneligible, "too young")
	assert.Same(t, error(de), ToDomainError(de))
	assert.Nil(t, ToDomainError(nil))
	assert.True(t, dErrors.HasCode(ToDomainError(errors.New("boom")), dErrors.CodeInternal))
}

func TestStaticVerifier(t *testing.T) {
	v := StaticVerifier{ProviderID: "dev", ProviderType: models.ProviderPassport}
	_, err := v.Verify(context.Background(), nil)
	assert.Equal(t, ErrorBadData, GetCategory(err))

	d, err := v.Verify(context.Background(), json.RawMessage(`{"valid":true,"attributes":{"document_number":"X"}}`))
	require.NoError(t, err)
	assert.Equal(t, "X", d.Attributes.DocumentNumber)
	assert.NotEmpty(t, d.Payload)

	_, err = StaticMobileVerifier{ProviderID: "dev"}.Open(context.Background(), nil, id.NewSessionID(), []byte(`{}`))
	require.Error(t, err)
}
