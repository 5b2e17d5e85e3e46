package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/saifu-wallet/gateway/internal/swap"
	"github.com/saifu-wallet/gateway/internal/wallet"
	"go.uber.org/zap"
)

type BalanceService interface {
	NativeBalance(ctx context.Context, address string) (wallet.Balance, error)
	TokenBalances(ctx context.Context, address string) ([]wallet.TokenDescriptor, error)
}

type PriceService interface {
	NativeAssetPriceUSD(ctx context.Context) (*float64, error)
}

type SwapService interface {
	Quote(ctx context.Context, req swap.QuoteRequest) (json.RawMessage, error)
	BuildTransaction(ctx context.Context, req swap.SwapRequest) (*swap.SwapTransaction, error)
}

type RPCProxy interface {
	Forward(ctx context.Context, body []byte) []byte
}

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	balances BalanceService
	prices   PriceService
	swaps    SwapService
	rpc      RPCProxy
	rpcWS    http.Handler
	ready    ReadinessChecker
	logger   *zap.SugaredLogger
	now      func() time.Time
}

type HandlerDeps struct {
	Balances BalanceService
	Prices   PriceService
	Swaps    SwapService
	RPC      RPCProxy
	// RPCWebSocket is optional; without it /api/rpc/ws is not mounted.
	RPCWebSocket http.Handler
	Ready        ReadinessChecker
	Logger       *zap.SugaredLogger
}

func NewHandler(deps HandlerDeps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		balances: deps.Balances,
		prices:   deps.Prices,
		swaps:    deps.Swaps,
		rpc:      deps.RPC,
		rpcWS:    deps.RPCWebSocket,
		ready:    deps.Ready,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *Handler) GetSolBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.balances.NativeBalance(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance.Float()})
}

func (h *Handler) GetTokenBalances(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.balances.TokenBalances(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if tokens == nil {
		tokens = []wallet.TokenDescriptor{}
	}
	h.writeJSON(w, http.StatusOK, TokenBalancesResponse{Tokens: tokens})
}

func (h *Handler) GetSolPrice(w http.ResponseWriter, r *http.Request) {
	price, err := h.prices.NativeAssetPriceUSD(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PriceResponse{Price: price})
}

func (h *Handler) GetSwapQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quote, err := h.swaps.Quote(r.Context(), swap.QuoteRequest{
		InputMint:   q.Get("inputMint"),
		OutputMint:  q.Get("outputMint"),
		Amount:      q.Get("amount"),
		SlippageBps: q.Get("slippageBps"),
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeRaw(w, http.StatusOK, quote)
}

func (h *Handler) PostSwapTransaction(w http.ResponseWriter, r *http.Request) {
	var req swap.SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeErr(w, r, bodyError(err))
		return
	}

	tx, err := h.swaps.BuildTransaction(r.Context(), req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// PostRPC answers with a JSON-RPC envelope and HTTP 200 in every case except
// an oversized body.
func (h *Handler) PostRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeErr(w, r, bodyError(err))
		return
	}
	h.writeRaw(w, http.StatusOK, h.rpc.Forward(r.Context(), body))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready.Ping(ctx); err != nil {
			h.logger.Warnw("Readiness check failed", "error", err)
			h.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Rate limit store unavailable"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
}

func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
}

// Utility methods
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apierr.StatusOf(err)
	fields := []any{
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"kind", apierr.KindOf(err).String(),
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("API error", fields...)
	} else {
		h.logger.Infow("API error", fields...)
	}

	h.writeJSON(w, status, ErrorResponse{Error: apierr.Message(err)})
}

type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string   { return e.msg }
func (e *statusError) StatusCode() int { return e.status }

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &statusError{status: http.StatusRequestEntityTooLarge, msg: "Request body too large"}
	}
	return apierr.Validation("Invalid JSON body")
}
