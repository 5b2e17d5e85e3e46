package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/saifu-wallet/gateway/internal/api"
	"github.com/saifu-wallet/gateway/internal/config"
	"github.com/saifu-wallet/gateway/internal/connection"
	"github.com/saifu-wallet/gateway/internal/metrics"
	"github.com/saifu-wallet/gateway/internal/ratelimit"
	"github.com/saifu-wallet/gateway/internal/rpcproxy"
	"github.com/saifu-wallet/gateway/internal/swap"
	"github.com/saifu-wallet/gateway/internal/upstream"
	"github.com/saifu-wallet/gateway/internal/upstream/coingecko"
	"github.com/saifu-wallet/gateway/internal/upstream/helius"
	"github.com/saifu-wallet/gateway/internal/upstream/jupiter"
	"github.com/saifu-wallet/gateway/internal/upstream/rpcnode"
	"github.com/saifu-wallet/gateway/internal/wallet"
	"github.com/saifu-wallet/gateway/pkg/kv"
	_ "github.com/saifu-wallet/gateway/pkg/kv/memory"
	_ "github.com/saifu-wallet/gateway/pkg/kv/redis"
	"go.uber.org/zap"
)

// recorder is what the gateway needs from *metrics.Metrics.
type recorder interface {
	metrics.Recorder
	rpcproxy.SessionCounter
}

type app struct {
	router *chi.Mux
	store  kv.Store
}

func (a *app) Close() error {
	return a.store.Close()
}

// newApp wires upstream adapters, services and the router from cfg.
func newApp(cfg *config.Config, logger *zap.SugaredLogger, rec recorder, metricsHandler http.Handler) (*app, error) {
	resolver := connection.NewResolver(cfg.Connection())

	// Fail fast on a strict policy without credential.
	if _, err := resolver.Resolve(); err != nil {
		return nil, fmt.Errorf("resolve RPC endpoint: %w", err)
	}

	store, err := kv.NewStoreFromConfig(kv.Config{
		Backend:  kv.Backend(cfg.RateLimit.Backend),
		RedisURL: cfg.RateLimit.RedisURL,
		Logger: func(msg string, fields ...any) {
			logger.Warnw(msg, fields...)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit store: %w", err)
	}

	rpcHTTP := upstream.NewClient(upstream.ClientOptions{
		Name:     "rpc-node",
		Timeout:  cfg.Upstream.Timeout,
		Recorder: rec,
		Limiter:  upstream.NewPublicLimiter(cfg.Solana.PublicRPS),
		LimitHosts: []string{
			upstream.HostOf(connection.PublicEndpoint(cfg.Solana.Network)),
		},
	})
	client := func(name string) *http.Client {
		return upstream.NewClient(upstream.ClientOptions{Name: name, Timeout: cfg.Upstream.Timeout, Recorder: rec})
	}

	node := rpcnode.New(resolver, rpcHTTP)
	indexer := helius.New(cfg.Upstream.IndexerBaseURL, cfg.Solana.APIKey, client("balance-indexer"))
	oracle := coingecko.New(cfg.Upstream.PriceOracleURL, client("price-oracle"))
	router := jupiter.New(cfg.Upstream.SwapRouterURL, client("swap-router"))

	origins := api.NewOriginPolicy(cfg.AllowedOrigins())

	handler := api.NewHandler(api.HandlerDeps{
		Balances:     wallet.NewBalanceService(node, indexer, logger),
		Prices:       wallet.NewPriceService(oracle),
		Swaps:        swap.NewOrchestrator(router, logger),
		RPC:          rpcproxy.NewProxy(node, logger),
		RPCWebSocket: rpcproxy.NewRelay(resolver, origins.CheckRequest, rec, logger),
		Ready:        store,
		Logger:       logger,
	})

	middleware := api.NewMiddleware(logger, rec, api.MiddlewareConfig{
		Origins:           origins,
		LogCORSRejections: cfg.IsProd(),
		Limiter:           ratelimit.NewFixedWindow(store, cfg.RateLimit.Max, cfg.RateLimit.Window),
		TrustedProxyHops:  cfg.RateLimit.TrustedProxyHops,
		MaxBodyBytes:      cfg.Security.MaxBodyBytes,
	})

	return &app{router: handler.Routes(middleware, metricsHandler), store: store}, nil
}
