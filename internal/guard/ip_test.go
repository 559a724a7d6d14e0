package guard

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPPrefersCDNHeader(t *testing.T) {
	r := httptest.NewRequest("POST", "/contact", nil)
	r.RemoteAddr = "10.0.0.1:4567"
	r.Header.Set("CF-Connecting-IP", "198.51.100.7")
	r.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.2")

	assert.Equal(t, "198.51.100.7", ClientIP(r))
}

func TestClientIPForwardedForChain(t *testing.T) {
	r := httptest.NewRequest("POST", "/contact", nil)
	r.RemoteAddr = "10.0.0.1:4567"
	r.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.2, 10.0.0.3")

	assert.Equal(t, "192.0.2.1", ClientIP(r))
}

func TestClientIPInvalidHeaderFallsThrough(t *testing.T) {
	r := httptest.NewRequest("POST", "/contact", nil)
	r.RemoteAddr = "203.0.113.9:80"
	r.Header.Set("CF-Connecting-IP", "not-an-ip")

	assert.Equal(t, "203.0.113.9", ClientIP(r))
}

func TestClientIPSocketAddress(t *testing.T) {
	r := httptest.NewRequest("POST", "/contact", nil)
	r.RemoteAddr = "[2001:db8::1]:443"

	assert.Equal(t, "2001:db8::1", ClientIP(r))
}

func TestClientIPNothingValid(t *testing.T) {
	r := httptest.NewRequest("POST", "/contact", nil)
	r.RemoteAddr = "garbage"
	r.Header.Set("X-Forwarded-For", "also garbage")

	assert.Equal(t, "", ClientIP(r))
}
