package guard

import (
	"net"
	"net/http"
	"strings"
)

// Candidate client-IP sources in decreasing trust order: the
// CDN-injected real-IP header, the generic forwarded-for chain, then
// the raw socket address.
var ipHeaderCandidates = []string{"CF-Connecting-IP", "X-Forwarded-For"}

// ClientIP resolves the caller's IP address. Headers carrying a
// comma-separated chain contribute only their first element, and the
// first syntactically valid address wins. Returns "" when nothing
// parses.
func ClientIP(r *http.Request) string {
	for _, header := range ipHeaderCandidates {
		raw := strings.TrimSpace(r.Header.Get(header))
		if raw == "" {
			continue
		}
		candidate := strings.TrimSpace(strings.Split(raw, ",")[0])
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	host = strings.TrimSpace(host)
	if net.ParseIP(host) != nil {
		return host
	}
	return ""
}
