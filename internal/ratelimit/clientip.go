package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP derives the client address, trusting trustedHops proxies in
// front of the gateway. With one trusted hop the rightmost X-Forwarded-For
// entry is the client; with zero the header is ignored.
func ClientIP(r *http.Request, trustedHops int) string {
	if trustedHops > 0 {
		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			var hops []string
			for _, line := range xff {
				for _, part := range strings.Split(line, ",") {
					if part = strings.TrimSpace(part); part != "" {
						hops = append(hops, part)
					}
				}
			}
			if len(hops) > 0 {
				idx := len(hops) - trustedHops
				if idx < 0 {
					idx = 0
				}
				return hops[idx]
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
