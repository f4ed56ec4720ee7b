package websocket

import (
	"net"
	"net/http"
	"strings"

	"github.com/pscheid92/chatrelay/internal/domain"
)

// ClientAddress derives the originating address of r: the first entry of
// X-Forwarded-For when present and non-empty, else the peer host.
// The header is trusted as-is.
func ClientAddress(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return domain.CanonicalAddress(first)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return domain.CanonicalAddress(r.RemoteAddr)
	}
	return domain.CanonicalAddress(host)
}
