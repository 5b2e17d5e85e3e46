// Package upstream holds the HTTP plumbing shared by every provider adapter:
// a bounded timeout, an outbound rate limit for public endpoints and
// per-upstream request metrics.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/saifu-wallet/gateway/internal/metrics"
	"golang.org/x/time/rate"
)

// MaxBodyBytes caps how much of an upstream response is read into memory.
const MaxBodyBytes = 10 << 20

// Limiter is satisfied by *rate.Limiter.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewPublicLimiter returns a token bucket allowing rps requests per second.
// A non-positive rps disables limiting.
func NewPublicLimiter(rps int) Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), rps)
}

// RateLimitedTransport waits for Limiter before sending requests accepted
// by Match. A nil Match limits every request.
type RateLimitedTransport struct {
	Limiter Limiter
	Match   func(*http.Request) bool
	Base    http.RoundTripper
}

func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil && (t.Match == nil || t.Match(req)) {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return base(t.Base).RoundTrip(req)
}

// MetricsTransport records status and latency of every call under Name.
type MetricsTransport struct {
	Name     string
	Recorder metrics.Recorder
	Base     http.RoundTripper
}

func (t *MetricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := base(t.Base).RoundTrip(req)
	if t.Recorder != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Recorder.RecordUpstreamRequest(req.Context(), t.Name, status, time.Since(start))
	}
	return resp, err
}

func base(rt http.RoundTripper) http.RoundTripper {
	if rt != nil {
		return rt
	}
	return http.DefaultTransport
}

type ClientOptions struct {
	// Name labels upstream metrics, e.g. "rpc-node" or "swap-router".
	Name     string
	Timeout  time.Duration
	Recorder metrics.Recorder
	// Limiter throttles requests whose host is listed in LimitHosts.
	Limiter    Limiter
	LimitHosts []string
	Base       http.RoundTripper
}

// NewClient builds the *http.Client used by an adapter.
func NewClient(opts ClientOptions) *http.Client {
	var rt http.RoundTripper = &MetricsTransport{
		Name:     opts.Name,
		Recorder: opts.Recorder,
		Base:     opts.Base,
	}

	if opts.Limiter != nil {
		hosts := make(map[string]struct{}, len(opts.LimitHosts))
		for _, h := range opts.LimitHosts {
			hosts[strings.ToLower(h)] = struct{}{}
		}
		rt = &RateLimitedTransport{
			Limiter: opts.Limiter,
			Match: func(req *http.Request) bool {
				_, ok := hosts[strings.ToLower(req.URL.Hostname())]
				return ok
			},
			Base: rt,
		}
	}

	return &http.Client{Timeout: opts.Timeout, Transport: rt}
}

// HostOf returns the hostname of rawURL, or "" when it does not parse.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Response is a fully read upstream reply.
type Response struct {
	Status int
	Body   []byte
}

func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// ErrResponseTooLarge is returned by Do when a body exceeds MaxBodyBytes.
var ErrResponseTooLarge = fmt.Errorf("upstream response too large (over %d bytes)", MaxBodyBytes)

// Do sends req and reads the body, failing if it exceeds MaxBodyBytes.
func Do(client *http.Client, req *http.Request) (*Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return nil, ErrResponseTooLarge
	}
	return &Response{Status: resp.StatusCode, Body: body}, nil
}

// StripURL drops the request URL that net/http adds to transport errors,
// leaving only the underlying cause.
func StripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return fmt.Errorf("request timed out: %w", ue.Err)
		}
		return ue.Err
	}
	return err
}

// StatusError reports a non-2xx upstream reply.
type StatusError struct {
	Upstream string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded with HTTP %d: %s", e.Upstream, e.Status, http.StatusText(e.Status))
}
