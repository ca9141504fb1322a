package requestmeta

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bossnet/party-signup/internal/model"
)

func TestClientIP(t *testing.T) {
	behindProxy, err := NewResolver([]string{"10.0.0.0/8", "2001:db8:ffff::1"})
	require.NoError(t, err)
	direct := &Resolver{}

	tests := []struct {
		name     string
		resolver *Resolver
		headers  map[string]string
		remote   string
		want     string
	}{
		{name: "remote addr", resolver: direct, remote: "192.0.2.10:51234", want: "192.0.2.10"},
		{name: "ipv6 remote addr", resolver: direct, remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "remote without port", resolver: direct, remote: "198.51.100.8", want: "198.51.100.8"},
		{name: "forwarded header from untrusted peer", resolver: direct,
			headers: map[string]string{"X-Forwarded-For": "203.0.113.5"}, remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "real ip from untrusted peer", resolver: behindProxy,
			headers: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "forwarded chain via trusted proxy", resolver: behindProxy,
			headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2"}, remote: "10.0.0.1:80", want: "203.0.113.5"},
		{name: "spoofed leftmost hop is skipped", resolver: behindProxy,
			headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.5"}, remote: "10.0.0.1:80", want: "203.0.113.5"},
		{name: "only trusted hops", resolver: behindProxy,
			headers: map[string]string{"X-Forwarded-For": "10.1.1.1, 10.0.0.2"}, remote: "10.0.0.1:80", want: "10.1.1.1"},
		{name: "real ip via trusted proxy", resolver: behindProxy,
			headers: map[string]string{"X-Real-IP": " 198.51.100.7 "}, remote: "10.0.0.1:80", want: "198.51.100.7"},
		{name: "trusted single ipv6 proxy", resolver: behindProxy,
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9"}, remote: "[2001:db8:ffff::1]:443", want: "203.0.113.9"},
		{name: "trusted proxy without headers", resolver: behindProxy, remote: "10.0.0.1:80", want: "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, tt.resolver.ClientIP(r))
		})
	}
}

func TestNewResolver_RejectsGarbage(t *testing.T) {
	_, err := NewResolver([]string{"10.0.0.0/8", "proxy.local"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy.local")

	_, err = NewResolver([]string{"10.0.0.0/33"})
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	var got model.Provenance
	h := (&Resolver{}).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1000"
	r.Header.Set("User-Agent", "curl/8.0")
	r.Header.Set("X-Forwarded-For", "203.0.113.77")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, model.Provenance{IPAddress: "192.0.2.1", UserAgent: "curl/8.0"}, got)
}

func TestAnonymize(t *testing.T) {
	assert.Equal(t, "192.0.2.0", Anonymize("192.0.2.77"))
	assert.Equal(t, "2001:db8:1::", Anonymize("2001:db8:1:2:3:4:5:6"))
	assert.Equal(t, "invalid", Anonymize("not-an-ip"))
}
