package middleware

import (
	"net"
	"net/http"
)

// WithSubnet lets a request through only when its X-Real-IP header lies in
// subnet. An empty or invalid subnet forbids every request.
func WithSubnet(subnet string) func(next http.Handler) http.Handler {
	_, trusted, err := net.ParseCIDR(subnet)
	if err != nil {
		trusted = nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := net.ParseIP(r.Header.Get("X-Real-IP"))
			if trusted == nil || ip == nil || !trusted.Contains(ip) {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
