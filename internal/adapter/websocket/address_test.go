package websocket

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientAddress(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{"peer only", "", "1.2.3.4:5555", "1.2.3.4"},
		{"peer ipv6", "", "[2001:db8::1]:5555", "2001:db8::1"},
		{"peer ipv4 mapped", "", "[::ffff:1.2.3.4]:5555", "1.2.3.4"},
		{"peer without port", "", "1.2.3.4", "1.2.3.4"},
		{"forwarded single", "9.9.9.9", "1.2.3.4:5555", "9.9.9.9"},
		{"forwarded chain uses first", "9.9.9.9, 10.0.0.1, 10.0.0.2", "1.2.3.4:5555", "9.9.9.9"},
		{"forwarded trimmed", "   9.9.9.9  ,10.0.0.1", "1.2.3.4:5555", "9.9.9.9"},
		{"forwarded not an ip kept verbatim", "unknown", "1.2.3.4:5555", "unknown"},
		{"forwarded empty first entry", " , 10.0.0.1", "1.2.3.4:5555", "1.2.3.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, ClientAddress(r))
		})
	}
}
