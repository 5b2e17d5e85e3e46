package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/saifu-wallet/gateway/internal/metrics"
	"github.com/saifu-wallet/gateway/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimiter counts a request against a client's budget.
type RateLimiter interface {
	Allow(ctx context.Context, client string) (ratelimit.Result, error)
}

type MiddlewareConfig struct {
	Origins OriginPolicy
	// LogCORSRejections is enabled in production only.
	LogCORSRejections bool
	Limiter           RateLimiter
	TrustedProxyHops  int
	MaxBodyBytes      int64
}

type Middleware struct {
	logger  *zap.SugaredLogger
	metrics metrics.Recorder
	cfg     MiddlewareConfig
}

func NewMiddleware(logger *zap.SugaredLogger, recorder metrics.Recorder, cfg MiddlewareConfig) *Middleware {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Middleware{
		logger:  logger,
		metrics: recorder,
		cfg:     cfg,
	}
}

// CORS rejects disallowed origins with 403 and adds credentialed CORS
// headers for the rest.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	withHeaders := cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return m.cfg.Origins.Allowed(origin)
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "solana-client"},
		ExposedHeaders:   []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !m.cfg.Origins.Allowed(origin) {
			m.metrics.RecordCORSRejection(r.Context())
			if m.cfg.LogCORSRejections {
				m.logger.Warnw("CORS blocked origin", "origin", origin, "path", r.URL.Path)
			}
			writeErrorJSON(w, apierr.ErrCORS.Status(), apierr.ErrCORS.Error())
			return
		}
		withHeaders.ServeHTTP(w, r)
	})
}

// RateLimit enforces the fixed-window budget per client IP. Store failures
// let the request through.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.cfg.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		client := ratelimit.ClientIP(r, m.cfg.TrustedProxyHops)
		res, err := m.cfg.Limiter.Allow(r.Context(), client)
		if err != nil {
			m.logger.Errorw("Rate limit store error, allowing request", "client", client, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		reset := strconv.Itoa(int(math.Ceil(res.ResetAfter.Seconds())))
		w.Header().Set("RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("RateLimit-Reset", reset)

		if !res.Allowed {
			m.metrics.RecordRateLimited(r.Context())
			w.Header().Set("Retry-After", reset)
			writeErrorJSON(w, apierr.ErrRateLimited.Status(), apierr.ErrRateLimited.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BodyLimit caps request bodies at MaxBodyBytes.
func (m *Middleware) BodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := m.cfg.MaxBodyBytes
		if limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > limit {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

// Request logging middleware
func (m *Middleware) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			duration := time.Since(start)

			// Label metrics by route pattern so addresses do not become labels.
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			m.logger.Infow("HTTP request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"size", ww.BytesWritten(),
				"duration", duration,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)

			m.metrics.RecordHTTPRequest(r.Context(), r.Method, route, ww.Status(), duration)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Security headers middleware
func (m *Middleware) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'self';base-uri 'self';frame-ancestors 'self';object-src 'none'")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		h.Set("Origin-Agent-Cluster", "?1")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-DNS-Prefetch-Control", "off")
		h.Set("X-Download-Options", "noopen")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")
		h.Set("X-XSS-Protection", "0")

		next.ServeHTTP(w, r)
	})
}

// Compress gzips JSON and text responses for clients that accept it.
func (m *Middleware) Compress(next http.Handler) http.Handler {
	return middleware.Compress(5, "application/json", "text/plain")(next)
}

// Recovery middleware with structured logging
func (m *Middleware) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				m.logger.Errorw("Panic recovered",
					"panic", rvr,
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)

				writeErrorJSON(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// RequestID propagates an inbound X-Request-ID or assigns a new UUID.
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(middleware.RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeErrorJSON(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
