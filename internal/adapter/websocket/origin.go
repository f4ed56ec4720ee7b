package websocket

import (
	"log/slog"
	"net/http"
	"strings"
)

// NewCheckOrigin returns a CheckOrigin function for the upgrader. With no
// allowed origins every request passes, as non-browser clients send none.
// Otherwise requests without an Origin header pass and the rest must match
// an entry exactly (case-insensitive, trailing slash ignored).
func NewCheckOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[normalizeOrigin(origin)] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[normalizeOrigin(origin)]; ok {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(origin), "/"))
}
