package httpclient

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// URLPolicy controls which outbound URLs work fetching may target.
type URLPolicy struct {
	AllowLocalhost       bool
	AllowPrivateNetworks bool
}

// ValidateOutboundURL parses raw and refuses non-http schemes and, unless
// allowed, local or private-network hosts.
func ValidateOutboundURL(raw string, policy URLPolicy) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil, fmt.Errorf("url host is required")
	}
	if !policy.AllowLocalhost && (host == "localhost" || strings.HasSuffix(host, ".localhost")) {
		return nil, fmt.Errorf("local urls are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		if !policy.AllowLocalhost && (ip.IsLoopback() || ip.IsUnspecified()) {
			return nil, fmt.Errorf("local urls are not allowed")
		}
		if !policy.AllowPrivateNetworks && (ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()) {
			return nil, fmt.Errorf("private network urls are not allowed")
		}
	}
	return parsed, nil
}
