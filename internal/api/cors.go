package api

import (
	"net/http"
	"strings"
)

var extensionSchemes = []string{"chrome-extension://", "moz-extension://"}

// OriginPolicy decides which browser origins may call the gateway. Requests
// without an Origin and browser-extension origins are always allowed; web
// origins must match the allow-list exactly.
type OriginPolicy struct {
	allowed map[string]struct{}
}

func NewOriginPolicy(origins []string) OriginPolicy {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return OriginPolicy{allowed: allowed}
}

func (p OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, scheme := range extensionSchemes {
		if strings.HasPrefix(origin, scheme) {
			return true
		}
	}
	_, ok := p.allowed[origin]
	return ok
}

// CheckRequest applies the policy to r's Origin header. It is used as the
// WebSocket upgrader's origin check.
func (p OriginPolicy) CheckRequest(r *http.Request) bool {
	return p.Allowed(r.Header.Get("Origin"))
}
