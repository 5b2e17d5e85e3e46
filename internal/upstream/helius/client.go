// Package helius reads token holdings from the Helius balances API.
package helius

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/saifu-wallet/gateway/internal/upstream"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: httpClient,
	}
}

// Balances is the subset of the balances reply the gateway reads. Tokens is
// kept raw because the indexer may omit it or send a non-array.
type Balances struct {
	Tokens json.RawMessage `json:"tokens"`
}

// Token is one raw holding. Pointer fields distinguish absent from zero.
type Token struct {
	Mint     string      `json:"mint"`
	Amount   json.Number `json:"amount"`
	Decimals *int        `json:"decimals"`
	Symbol   *string     `json:"symbol"`
	Name     *string     `json:"name"`
	Logo     *string     `json:"logo"`
}

// GetBalances fetches holdings for address. The address is path-escaped but
// not validated.
func (c *Client) GetBalances(ctx context.Context, address string) (*Balances, error) {
	if c.apiKey == "" {
		return nil, apierr.ErrMissingCredential
	}

	endpoint := fmt.Sprintf("%s/v0/addresses/%s/balances?%s",
		c.baseURL, url.PathEscape(address), url.Values{"api-key": {c.apiKey}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("build indexer request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := upstream.Do(c.httpClient, req)
	if err != nil {
		return nil, apierr.Upstream(c.redact(fmt.Errorf("indexer request failed: %w", upstream.StripURL(err))))
	}
	if !resp.OK() {
		return nil, apierr.Upstream(&upstream.StatusError{Upstream: "balance indexer", Status: resp.Status})
	}

	var out Balances
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, apierr.Upstream(fmt.Errorf("decode indexer response: %w", err))
	}
	return &out, nil
}

// TokenList decodes Tokens. A missing or non-array value yields an empty
// list; entries that are not objects are returned as nil.
func (b *Balances) TokenList() []*Token {
	if b == nil || len(b.Tokens) == 0 {
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(b.Tokens, &raw); err != nil {
		return nil
	}

	tokens := make([]*Token, len(raw))
	for i, entry := range raw {
		trimmed := strings.TrimSpace(string(entry))
		if !strings.HasPrefix(trimmed, "{") {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		var tok Token
		if err := dec.Decode(&tok); err != nil {
			continue
		}
		tokens[i] = &tok
	}
	return tokens
}

func (c *Client) redact(err error) error {
	return errors.New(strings.ReplaceAll(err.Error(), c.apiKey, "REDACTED"))
}
