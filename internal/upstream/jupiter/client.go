// Package jupiter is a thin transport for the Jupiter v6 swap API. Replies
// are returned unparsed so callers can pass them through untouched.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/saifu-wallet/gateway/internal/upstream"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// SwapPayload is the body of POST /v6/swap.
type SwapPayload struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

// Quote requests GET /v6/quote with params as the query string.
func (c *Client) Quote(ctx context.Context, params url.Values) (*upstream.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v6/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("build quote request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := upstream.Do(c.httpClient, req)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("swap router quote failed: %w", upstream.StripURL(err)))
	}
	return resp, nil
}

// Swap requests a serialized, unsigned swap transaction for a quote.
func (c *Client) Swap(ctx context.Context, payload SwapPayload) (*upstream.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("encode swap request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v6/swap", bytes.NewReader(body))
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("build swap request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := upstream.Do(c.httpClient, req)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("swap router swap failed: %w", upstream.StripURL(err)))
	}
	return resp, nil
}
