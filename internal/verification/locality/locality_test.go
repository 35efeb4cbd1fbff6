package locality

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civitas/internal/verification/privacy"
	"civitas/internal/verification/providers"
	"civitas/internal/verification/trust"
	"civitas/pkg/platform/circuit"
)

var address = privacy.AddressFields{PostalCode: "SW1A 1AA", City: "London", Region: "ENG"}

func TestHTTPResolver(t *testing.T) {
	t.Run("resolves locality", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req resolveRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "SW1A 1AA", req.PostalCode)
			_, _ = w.Write([]byte(`{"locality_id":"gb-eng-westminster","precision":"fine"}`))
		}))
		defer srv.Close()

		loc, err := NewHTTPResolver(srv.URL, time.Second).Resolve(context.Background(), address)
		require.NoError(t, err)
		assert.Equal(t, "gb-eng-westminster", loc.ID)
		assert.Equal(t, trust.PrecisionFine, loc.Precision)
	})

	t.Run("unknown precision is a contract mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"locality_id":"x","precision":"street"}`))
		}))
		defer srv.Close()

		_, err := NewHTTPResolver(srv.URL, time.Second).Resolve(context.Background(), address)
		assert.Equal(t, providers.ErrorContractMismatch, providers.GetCategory(err))
	})

	t.Run("outage is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewHTTPResolver(srv.URL, time.Second).Resolve(context.Background(), address)
		assert.True(t, providers.IsRetryable(err))
	})

	t.Run("unresolvable address is bad data", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewHTTPResolver(srv.URL, time.Second).Resolve(context.Background(), address)
		assert.Equal(t, providers.ErrorBadData, providers.GetCategory(err))
	})
}

func TestStaticResolver(t *testing.T) {
	ctx := context.Background()
	r := StaticResolver{}

	a, err := r.Resolve(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, trust.PrecisionFine, a.Precision)

	b, err := r.Resolve(ctx, privacy.AddressFields{PostalCode: "sw1a 2bb", Region: "eng"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID, "same outward code resolves to the same locality")

	c, err := r.Resolve(ctx, privacy.AddressFields{City: "London", Region: "ENG"})
	require.NoError(t, err)
	assert.Equal(t, trust.PrecisionCoarse, c.Precision)
	assert.NotEqual(t, a.ID, c.ID)

	empty, err := r.Resolve(ctx, privacy.AddressFields{})
	require.NoError(t, err)
	assert.Empty(t, empty.ID)
}

func TestStaticResolverPassesBoundary(t *testing.T) {
	b, err := privacy.NewBoundary(StaticResolver{}, []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	raw := address
	d, err := b.Reduce(context.Background(), &raw, []byte("payload"))
	require.NoError(t, err)
	assert.NotEmpty(t, d.LocalityID)
	assert.True(t, raw.Empty())
}

func TestGuardedResolver(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := circuit.New("locality", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))
	r := GuardedResolver{Resolver: NewHTTPResolver(srv.URL, time.Second), Breaker: breaker}

	_, err := r.Resolve(context.Background(), address)
	require.Error(t, err)
	assert.True(t, providers.IsRetryable(err))

	_, err = r.Resolve(context.Background(), address)
	assert.ErrorIs(t, err, providers.ErrCircuitOpen)
	assert.Equal(t, 1, calls)
}
