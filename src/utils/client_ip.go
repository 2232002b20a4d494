package utils

import (
	"net"
	"net/http"
	"strings"
)

// clientIPHeaders are checked in order for the real client address when the
// service sits behind proxies or a CDN.
var clientIPHeaders = []string{
	"X-Forwarded-For",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Client-IP",
	"X-Cluster-Client-IP",
	"X-Forwarded",
	"Forwarded-For",
	"Forwarded",
	"X-Forwarded-Host",
	"X-Real-IP",
	"Fly-Client-IP",
}

// GetClientIP extracts the originating client address from the request. When
// a header carries a chain of addresses, the first entry is the client.
func GetClientIP(r *http.Request) string {
	for _, header := range clientIPHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}

		if idx := strings.Index(value, ","); idx >= 0 {
			value = value[:idx]
		}

		return strings.TrimSpace(value)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
