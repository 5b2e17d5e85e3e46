// Package coingecko queries the CoinGecko simple price endpoint.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/saifu-wallet/gateway/internal/upstream"
)

const (
	AssetSolana = "solana"
	CurrencyUSD = "usd"
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

// SimplePrice returns price[asset][currency]. Assets or currencies the
// oracle does not know are simply absent from the map.
func (c *Client) SimplePrice(ctx context.Context, assets []string, currency string) (map[string]map[string]*float64, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(assets, ","))
	q.Set("vs_currencies", currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("build price request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := upstream.Do(c.httpClient, req)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("price oracle request failed: %w", upstream.StripURL(err)))
	}
	if !resp.OK() {
		return nil, apierr.Upstream(&upstream.StatusError{Upstream: "price oracle", Status: resp.Status})
	}

	out := map[string]map[string]*float64{}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, apierr.Upstream(fmt.Errorf("decode price response: %w", err))
	}
	return out, nil
}

// SolanaUSD returns the SOL/USD spot price, or nil when the oracle omits it.
func (c *Client) SolanaUSD(ctx context.Context) (*float64, error) {
	prices, err := c.SimplePrice(ctx, []string{AssetSolana}, CurrencyUSD)
	if err != nil {
		return nil, err
	}
	byCurrency := prices[AssetSolana]
	return byCurrency[CurrencyUSD], nil
}
