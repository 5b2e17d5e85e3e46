package coingecko

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func server(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/simple/price", r.URL.Path)
		assert.Equal(t, "solana", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSolanaUSD(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *float64
	}{
		{"present", `{"solana":{"usd":142.37}}`, ptr(142.37)},
		{"asset missing", `{}`, nil},
		{"currency missing", `{"solana":{}}`, nil},
		{"null price", `{"solana":{"usd":null}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := server(t, http.StatusOK, tt.body)
			c := New(srv.URL+"/api/v3", srv.Client())

			got, err := c.SolanaUSD(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSolanaUSD_Failures(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		srv := server(t, http.StatusTooManyRequests, `{"status":{"error_code":429}}`)
		_, err := New(srv.URL+"/api/v3", srv.Client()).SolanaUSD(context.Background())
		require.Error(t, err)
		assert.True(t, apierr.Is(err, apierr.KindUpstream))
	})

	t.Run("undecodable", func(t *testing.T) {
		srv := server(t, http.StatusOK, `<html>`)
		_, err := New(srv.URL+"/api/v3", srv.Client()).SolanaUSD(context.Background())
		require.Error(t, err)
		assert.True(t, apierr.Is(err, apierr.KindUpstream))
	})
}

func ptr(f float64) *float64 { return &f }
