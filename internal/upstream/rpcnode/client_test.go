package rpcnode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/saifu-wallet/gateway/internal/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOwner = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

func rpcServer(t *testing.T, handler func(method string, raw []byte) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req struct {
			Method string `json:"method"`
		}
		_ = json.Unmarshal(raw, &req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, handler(req.Method, raw))
	}))
}

func TestGetBalance(t *testing.T) {
	srv := rpcServer(t, func(method string, raw []byte) string {
		assert.Equal(t, "getBalance", method)
		assert.Contains(t, string(raw), testOwner)
		assert.Contains(t, string(raw), "confirmed")
		return `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":1500000000}}`
	})
	defer srv.Close()

	c := New(connection.NewStatic(srv.URL, ""), srv.Client())
	lamports, err := c.GetBalance(context.Background(), solana.MustPublicKeyFromBase58(testOwner))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), lamports)
}

func TestGetBalance_UpstreamErrorIsRedacted(t *testing.T) {
	c := New(connection.NewStatic("http://127.0.0.1:1/?api-key=topsecret", "topsecret"), &http.Client{Timeout: time.Second})

	_, err := c.GetBalance(context.Background(), solana.MustPublicKeyFromBase58(testOwner))
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindUpstream))
	assert.NotContains(t, err.Error(), "topsecret")
}

func TestGetBalance_ResolverError(t *testing.T) {
	c := New(connection.Static{Err: apierr.ErrMissingCredential}, nil)

	_, err := c.GetBalance(context.Background(), solana.MustPublicKeyFromBase58(testOwner))
	assert.ErrorIs(t, err, apierr.ErrMissingCredential)
}

func TestForward(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"method":"getSlot"}`, string(body))
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":7,"result":42}`)
	}))
	defer srv.Close()

	c := New(connection.NewStatic(srv.URL, ""), srv.Client())
	resp, err := c.Forward(context.Background(), []byte(`{"jsonrpc":"2.0","id":7,"method":"getSlot"}`))
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, `{"jsonrpc":"2.0","id":7,"result":42}`, string(resp.Body))
}

func TestForward_TransportErrorIsRedacted(t *testing.T) {
	c := New(connection.NewStatic("http://127.0.0.1:1/?api-key=topsecret", "topsecret"), &http.Client{Timeout: time.Second})

	_, err := c.Forward(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "topsecret")
	assert.NotContains(t, err.Error(), "api-key")
}
