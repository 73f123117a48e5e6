package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeRateAPIClient_LatestRate(t *testing.T) {
	t.Parallel()

	t.Run("returns the NPR rate", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/test-key/latest/USD", r.URL.Path)
			_, _ = w.Write([]byte(`{"result":"success","base_code":"USD","conversion_rates":{"USD":1,"NPR":133.2}}`))
		}))
		defer server.Close()

		client := NewExchangeRateAPIClient(server.URL+"/", "test-key", time.Second)
		got, err := client.LatestRate(context.Background())
		require.NoError(t, err)
		require.Equal(t, decimal.RequireFromString("133.2"), got)
	})

	t.Run("returns error on non 200 response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewExchangeRateAPIClient(server.URL, "test-key", time.Second)
		_, err := client.LatestRate(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "status 502")
	})

	t.Run("returns error when the API reports failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":"error","error-type":"invalid-key"}`))
		}))
		defer server.Close()

		client := NewExchangeRateAPIClient(server.URL, "bad-key", time.Second)
		_, err := client.LatestRate(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid-key")
	})

	t.Run("returns error when NPR is missing", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":"success","conversion_rates":{"EUR":0.93}}`))
		}))
		defer server.Close()

		client := NewExchangeRateAPIClient(server.URL, "test-key", time.Second)
		_, err := client.LatestRate(context.Background())
		require.ErrorIs(t, err, errRateMissing)
	})

	t.Run("returns error when the rate is non-positive", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":"success","conversion_rates":{"NPR":0}}`))
		}))
		defer server.Close()

		client := NewExchangeRateAPIClient(server.URL, "test-key", time.Second)
		_, err := client.LatestRate(context.Background())
		require.ErrorIs(t, err, errInvalidNonPositiveRate)
	})

	t.Run("returns error on malformed body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
		}))
		defer server.Close()

		client := NewExchangeRateAPIClient(server.URL, "test-key", time.Second)
		_, err := client.LatestRate(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "decode")
	})

	t.Run("requires an API key", func(t *testing.T) {
		t.Parallel()

		client := NewExchangeRateAPIClient("", " ", time.Second)
		_, err := client.LatestRate(context.Background())
		require.ErrorIs(t, err, errMissingAPIKey)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			_, _ = fmt.Fprint(w, `{"result":"success","conversion_rates":{"NPR":133.2}}`)
		}))
		defer server.Close()

		client := NewExchangeRateAPIClient(server.URL, "test-key", time.Second)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := client.LatestRate(ctx)
		require.Error(t, err)
	})
}
