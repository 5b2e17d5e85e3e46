// Package rpcnode talks to a Solana JSON-RPC node: typed calls go through
// solana-go, proxied calls are forwarded as raw bytes.
package rpcnode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/saifu-wallet/gateway/internal/connection"
	"github.com/saifu-wallet/gateway/internal/upstream"
)

// Resolver picks the endpoint for each call.
type Resolver interface {
	Resolve() (connection.Endpoint, error)
}

type Client struct {
	resolver   Resolver
	httpClient *http.Client
}

func New(resolver Resolver, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{resolver: resolver, httpClient: httpClient}
}

// Endpoint resolves the endpoint the next call would use.
func (c *Client) Endpoint() (connection.Endpoint, error) {
	return c.resolver.Resolve()
}

func (c *Client) rpcClient(ep connection.Endpoint) *rpc.Client {
	return rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(ep.URL, &jsonrpc.RPCClientOpts{
		HTTPClient: c.httpClient,
	}))
}

// GetBalance returns the lamport balance of owner at confirmed commitment.
func (c *Client) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	ep, err := c.resolver.Resolve()
	if err != nil {
		return 0, err
	}

	out, err := c.rpcClient(ep).GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, apierr.Upstream(redacted(ep, fmt.Errorf("getBalance: %w", upstream.StripURL(err))))
	}
	if out == nil {
		return 0, apierr.Upstream(errors.New("getBalance: empty result"))
	}
	return out.Value, nil
}

// Forward posts a JSON-RPC body to the resolved endpoint and returns the
// reply as received. Any error returned has the credential masked and the
// request URL stripped, so its message is safe to show to clients.
func (c *Client) Forward(ctx context.Context, body []byte) (*upstream.Response, error) {
	ep, err := c.resolver.Resolve()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return nil, redacted(ep, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := upstream.Do(c.httpClient, req)
	if err != nil {
		return nil, redacted(ep, upstream.StripURL(err))
	}
	return resp, nil
}

func redacted(ep connection.Endpoint, err error) error {
	return errors.New(ep.Redact(err.Error()))
}
