// Package rpcproxy forwards browser JSON-RPC traffic to the resolved Solana
// node so the provider credential never leaves the server.
package rpcproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/saifu-wallet/gateway/internal/upstream"
	"go.uber.org/zap"
)

// Forwarder posts a raw JSON-RPC body upstream. Returned errors must be
// safe to show to clients.
type Forwarder interface {
	Forward(ctx context.Context, body []byte) (*upstream.Response, error)
}

type Proxy struct {
	forwarder Forwarder
	logger    *zap.SugaredLogger
}

func NewProxy(forwarder Forwarder, logger *zap.SugaredLogger) *Proxy {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Proxy{forwarder: forwarder, logger: logger}
}

// Forward relays body and always returns a JSON-RPC envelope. Successful
// upstream replies are returned byte-for-byte, including upstream errors.
func (p *Proxy) Forward(ctx context.Context, body []byte) []byte {
	if !json.Valid(body) {
		return ErrorEnvelope(nullID, CodeParseError, "Parse error")
	}
	id := requestID(body)

	resp, err := p.forwarder.Forward(ctx, body)
	if err != nil {
		p.logger.Warnw("RPC proxy transport failure", "error", err)
		return ErrorEnvelope(id, CodeInternalError, err.Error())
	}

	if !resp.OK() {
		p.logger.Warnw("RPC node returned non-2xx", "status", resp.Status)
		return ErrorEnvelope(id, CodeServerError, fmt.Sprintf("HTTP %d: %s", resp.Status, http.StatusText(resp.Status)))
	}

	if !json.Valid(resp.Body) {
		p.logger.Warnw("RPC node returned non-JSON body", "status", resp.Status, "bytes", len(resp.Body))
		return ErrorEnvelope(id, CodeInternalError, "Invalid JSON in RPC node response")
	}

	return resp.Body
}
