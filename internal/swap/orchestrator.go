// Package swap validates swap requests and relays them to the swap router.
// Quotes are passed through unmodified; no signing happens here.
package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/saifu-wallet/gateway/internal/upstream"
	"github.com/saifu-wallet/gateway/internal/upstream/jupiter"
	"go.uber.org/zap"
)

const (
	DefaultSlippageBps = "50"

	msgMissingQuoteParams = "Missing required parameters: inputMint, outputMint, amount"
	msgMissingSwapParams  = "Missing required parameters: quoteResponse, userPublicKey"
	msgSwapFailed         = "Swap transaction failed"
)

// Router is the swap routing upstream.
type Router interface {
	Quote(ctx context.Context, params url.Values) (*upstream.Response, error)
	Swap(ctx context.Context, payload jupiter.SwapPayload) (*upstream.Response, error)
}

type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      string
	SlippageBps string
}

type SwapRequest struct {
	QuoteResponse json.RawMessage `json:"quoteResponse"`
	UserPublicKey string          `json:"userPublicKey"`
}

// SwapTransaction carries the router's serialized, unsigned transaction.
type SwapTransaction struct {
	SwapTransaction string `json:"swapTransaction"`
}

type Orchestrator struct {
	router Router
	logger *zap.SugaredLogger
}

func NewOrchestrator(router Router, logger *zap.SugaredLogger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{router: router, logger: logger}
}

// Quote validates req and returns the router's quote bytes untouched.
func (o *Orchestrator) Quote(ctx context.Context, req QuoteRequest) (json.RawMessage, error) {
	if req.InputMint == "" || req.OutputMint == "" || req.Amount == "" {
		return nil, apierr.Validation(msgMissingQuoteParams)
	}

	slippage := req.SlippageBps
	if slippage == "" {
		slippage = DefaultSlippageBps
	}

	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", req.Amount)
	params.Set("slippageBps", slippage)

	resp, err := o.router.Quote(ctx, params)
	if err != nil {
		return nil, err
	}

	if !json.Valid(resp.Body) {
		return nil, apierr.Upstream(fmt.Errorf("swap router returned a non-JSON quote (HTTP %d)", resp.Status))
	}
	if msg, ok := errorField(resp.Body); ok {
		o.logger.Debugw("Swap router rejected quote", "status", resp.Status, "error", msg)
		return nil, apierr.Rejected(msg)
	}
	if !resp.OK() {
		return nil, apierr.Upstream(&upstream.StatusError{Upstream: "swap router", Status: resp.Status})
	}
	return json.RawMessage(resp.Body), nil
}

// BuildTransaction asks the router for an unsigned swap transaction.
func (o *Orchestrator) BuildTransaction(ctx context.Context, req SwapRequest) (*SwapTransaction, error) {
	if isFalsy(req.QuoteResponse) || strings.TrimSpace(req.UserPublicKey) == "" {
		return nil, apierr.Validation(msgMissingSwapParams)
	}

	resp, err := o.router.Swap(ctx, jupiter.SwapPayload{
		QuoteResponse:    req.QuoteResponse,
		UserPublicKey:    req.UserPublicKey,
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, apierr.Upstream(fmt.Errorf("swap router returned a non-JSON reply (HTTP %d)", resp.Status))
	}

	if out.SwapTransaction == "" {
		msg, ok := errorField(resp.Body)
		if !ok {
			msg = msgSwapFailed
		}
		o.logger.Debugw("Swap router returned no transaction", "status", resp.Status, "error", msg)
		return nil, apierr.Rejected(msg)
	}

	return &SwapTransaction{SwapTransaction: out.SwapTransaction}, nil
}

// errorField returns a non-empty top-level "error" from a JSON object.
// Non-string values are rendered as their JSON text.
func errorField(body []byte) (string, bool) {
	var head struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &head); err != nil || isNull(head.Error) {
		return "", false
	}

	var s string
	if err := json.Unmarshal(head.Error, &s); err == nil {
		if s == "" {
			return "", false
		}
		return s, true
	}
	return string(head.Error), true
}

// isFalsy reports whether raw is absent or one of the JSON literals a caller
// could send in place of a quote: null, false, 0 or "".
func isFalsy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return true
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
