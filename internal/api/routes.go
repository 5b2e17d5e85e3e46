package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the router. metricsHandler may be nil.
func (h *Handler) Routes(m *Middleware, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(m.Compress)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(m.CORS)
	r.Use(m.RateLimit)
	r.Use(m.BodyLimit)

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/health", h.Health)
	r.Get("/readyz", h.Readyz)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/sol-balance/{address}", h.GetSolBalance)
		r.Get("/token-balances/{address}", h.GetTokenBalances)
		r.Get("/sol-price", h.GetSolPrice)

		r.Route("/swap", func(r chi.Router) {
			r.Get("/quote", h.GetSwapQuote)
			r.Post("/transaction", h.PostSwapTransaction)
		})

		r.Post("/rpc", h.PostRPC)
		if h.rpcWS != nil {
			r.Method(http.MethodGet, "/rpc/ws", h.rpcWS)
		}
	})

	return r
}
