package connection

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/saifu-wallet/gateway/internal/apierr"
)

// Policy decides what happens when no provider credential is configured.
type Policy string

const (
	// PolicyPermissive falls back to the network's public, rate-limited endpoint.
	PolicyPermissive Policy = "permissive"
	// PolicyStrict refuses to resolve without a credential.
	PolicyStrict Policy = "strict"
)

const DefaultProviderHost = "helius-rpc.com"

var publicEndpoints = map[string]string{
	"mainnet-beta": "https://api.mainnet-beta.solana.com",
	"testnet":      "https://api.testnet.solana.com",
	"devnet":       "https://api.devnet.solana.com",
}

// ParsePolicy validates a configured policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyPermissive, PolicyStrict:
		return p, nil
	case "":
		return PolicyPermissive, nil
	default:
		return "", fmt.Errorf("invalid RPC policy %q (must be %s or %s)", s, PolicyPermissive, PolicyStrict)
	}
}

// Endpoint is a resolved RPC endpoint.
type Endpoint struct {
	URL string
	// Public marks the unauthenticated, rate-limited fallback.
	Public bool

	credential string
}

// WebSocketURL returns the subscription endpoint on the same host.
func (e Endpoint) WebSocketURL() string {
	switch {
	case strings.HasPrefix(e.URL, "https://"):
		return "wss://" + strings.TrimPrefix(e.URL, "https://")
	case strings.HasPrefix(e.URL, "http://"):
		return "ws://" + strings.TrimPrefix(e.URL, "http://")
	default:
		return e.URL
	}
}

// Redact masks the credential in msg. Client errors from net/http and
// solana-go embed the request URL, which carries the api key.
func (e Endpoint) Redact(msg string) string {
	if e.credential == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, e.credential, "REDACTED")
	if escaped := url.QueryEscape(e.credential); escaped != e.credential {
		msg = strings.ReplaceAll(msg, escaped, "REDACTED")
	}
	return msg
}

// Config carries everything the resolver needs. It is built once from the
// process configuration and never read from the environment directly.
type Config struct {
	Network      string
	Credential   string
	ProviderHost string
	Policy       Policy
}

// Resolver selects the RPC endpoint for each request.
type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	if cfg.ProviderHost == "" {
		cfg.ProviderHost = DefaultProviderHost
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyPermissive
	}
	cfg.Credential = strings.TrimSpace(cfg.Credential)
	return &Resolver{cfg: cfg}
}

// Resolve returns the credentialed endpoint when a credential is configured.
// Without one, PolicyPermissive returns the public endpoint and PolicyStrict
// fails with apierr.ErrMissingCredential. Resolve performs no I/O.
func (r *Resolver) Resolve() (Endpoint, error) {
	if r.cfg.Credential != "" {
		return Endpoint{
			URL: fmt.Sprintf("https://%s.%s/?api-key=%s",
				r.cfg.Network, r.cfg.ProviderHost, url.QueryEscape(r.cfg.Credential)),
			credential: r.cfg.Credential,
		}, nil
	}

	if r.cfg.Policy == PolicyStrict {
		return Endpoint{}, apierr.ErrMissingCredential
	}
	return Endpoint{URL: PublicEndpoint(r.cfg.Network), Public: true}, nil
}

// HasCredential reports whether a provider credential is configured.
func (r *Resolver) HasCredential() bool {
	return r.cfg.Credential != ""
}

// Policy returns the configured fallback policy.
func (r *Resolver) Policy() Policy {
	return r.cfg.Policy
}

// PublicEndpoint returns the public RPC URL for network; unknown networks use devnet.
func PublicEndpoint(network string) string {
	if u, ok := publicEndpoints[network]; ok {
		return u
	}
	return publicEndpoints["devnet"]
}

// Static always resolves to a fixed endpoint. It is used to point the
// gateway at a self-hosted node and in tests.
type Static struct {
	Endpoint Endpoint
	Err      error
}

// NewStatic builds a Static resolver whose endpoint redacts credential.
func NewStatic(rawURL, credential string) Static {
	return Static{Endpoint: Endpoint{URL: rawURL, credential: credential}}
}

func (s Static) Resolve() (Endpoint, error) {
	return s.Endpoint, s.Err
}
