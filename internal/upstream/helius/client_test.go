package helius

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBalances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/addresses/owner123/balances", r.URL.Path)
		assert.Equal(t, "key", r.URL.Query().Get("api-key"))
		_, _ = io.WriteString(w, `{"tokens":[
			{"mint":"M1","amount":2500000,"decimals":6,"symbol":"USDC","name":"USD Coin","logo":"https://x/logo.png"},
			{"mint":"M2","amount":"7","decimals":0},
			"garbage",
			{"mint":"M3","amount":1}
		],"nativeBalance":1}`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "key", srv.Client())
	out, err := c.GetBalances(context.Background(), "owner123")
	require.NoError(t, err)

	tokens := out.TokenList()
	require.Len(t, tokens, 4)

	require.NotNil(t, tokens[0])
	assert.Equal(t, "M1", tokens[0].Mint)
	assert.Equal(t, "2500000", tokens[0].Amount.String())
	require.NotNil(t, tokens[0].Decimals)
	assert.Equal(t, 6, *tokens[0].Decimals)
	assert.Equal(t, "USDC", *tokens[0].Symbol)

	require.NotNil(t, tokens[1])
	assert.Equal(t, "7", tokens[1].Amount.String())
	assert.Nil(t, tokens[1].Symbol)

	assert.Nil(t, tokens[2])

	require.NotNil(t, tokens[3])
	assert.Nil(t, tokens[3].Decimals)
}

func TestTokenList_MissingOrNonArray(t *testing.T) {
	for _, body := range []string{`{}`, `{"tokens":null}`, `{"tokens":{"a":1}}`, `{"tokens":"nope"}`} {
		var b Balances
		require.NoError(t, json.Unmarshal([]byte(body), &b))
		assert.Empty(t, b.TokenList(), body)
	}
}

func TestGetBalances_MissingCredentialMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := New(srv.URL, "  ", srv.Client())
	_, err := c.GetBalances(context.Background(), "owner")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindConfig))
	assert.Equal(t, int32(0), calls.Load())
}

func TestGetBalances_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", srv.Client())
	_, err := c.GetBalances(context.Background(), "owner")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindUpstream))
	assert.Contains(t, err.Error(), "401")
}
