package connection

import (
	"testing"

	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_WithCredential(t *testing.T) {
	for _, policy := range []Policy{PolicyPermissive, PolicyStrict} {
		r := NewResolver(Config{Network: "devnet", Credential: " abc123 ", Policy: policy})

		ep, err := r.Resolve()
		require.NoError(t, err)
		assert.Equal(t, "https://devnet.helius-rpc.com/?api-key=abc123", ep.URL)
		assert.False(t, ep.Public)
		assert.True(t, r.HasCredential())
	}
}

func TestResolve_PermissiveFallsBackToPublic(t *testing.T) {
	tests := []struct {
		network string
		want    string
	}{
		{"mainnet-beta", "https://api.mainnet-beta.solana.com"},
		{"devnet", "https://api.devnet.solana.com"},
		{"testnet", "https://api.testnet.solana.com"},
		{"localnet", "https://api.devnet.solana.com"},
	}

	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			r := NewResolver(Config{Network: tt.network, Credential: "   ", Policy: PolicyPermissive})
			ep, err := r.Resolve()
			require.NoError(t, err)
			assert.Equal(t, tt.want, ep.URL)
			assert.True(t, ep.Public)
		})
	}
}

func TestResolve_StrictFailsClosed(t *testing.T) {
	r := NewResolver(Config{Network: "mainnet-beta", Policy: PolicyStrict})

	_, err := r.Resolve()
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindConfig))
	assert.Equal(t, "missing credential", err.Error())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyPermissive, p)

	p, err = ParsePolicy("STRICT")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	_, err = ParsePolicy("lenient")
	assert.Error(t, err)
}

func TestEndpoint_WebSocketURLAndRedact(t *testing.T) {
	r := NewResolver(Config{Network: "devnet", Credential: "s3cr3t/key", ProviderHost: "example-rpc.io"})
	ep, err := r.Resolve()
	require.NoError(t, err)

	assert.Equal(t, "https://devnet.example-rpc.io/?api-key=s3cr3t%2Fkey", ep.URL)
	assert.Equal(t, "wss://devnet.example-rpc.io/?api-key=s3cr3t%2Fkey", ep.WebSocketURL())

	msg := `Post "` + ep.URL + `": dial tcp: lookup devnet.example-rpc.io: no such host`
	redacted := ep.Redact(msg)
	assert.NotContains(t, redacted, "s3cr3t")
	assert.Contains(t, redacted, "api-key=REDACTED")

	static := NewStatic("http://127.0.0.1:8899", "")
	assert.Equal(t, "ws://127.0.0.1:8899", static.Endpoint.WebSocketURL())
	assert.Equal(t, "unchanged", static.Endpoint.Redact("unchanged"))
}
