package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"repverse/internal/shared/logging"
)

const proxyModeEnv = "REPVERSE_PROXY_MODE"

const proxyDialTimeout = 300 * time.Millisecond

type proxyMode uint8

const (
	proxyModeAuto proxyMode = iota
	proxyModeStrict
	proxyModeDirect
)

func parseProxyMode(raw string) proxyMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return proxyModeStrict
	case "direct", "none", "off":
		return proxyModeDirect
	default:
		return proxyModeAuto
	}
}

func modeFromEnv() proxyMode {
	value, _ := os.LookupEnv(proxyModeEnv)
	return parseProxyMode(value)
}

// proxyPolicy decides per request whether to use the environment proxy. In
// auto mode a loopback proxy is probed once and bypassed if nothing listens.
type proxyPolicy struct {
	mode      proxyMode
	logger    logging.Logger
	fromEnv   func(*http.Request) (*url.URL, error)
	reachable func(hostPort string) bool

	mu     sync.Mutex
	bypass map[string]bool
}

func newProxyPolicy(mode proxyMode, logger logging.Logger) *proxyPolicy {
	return &proxyPolicy{
		mode:      mode,
		logger:    logging.OrNop(logger),
		fromEnv:   http.ProxyFromEnvironment,
		reachable: dialable,
		bypass:    map[string]bool{},
	}
}

func (p *proxyPolicy) proxy(req *http.Request) (*url.URL, error) {
	switch p.mode {
	case proxyModeDirect:
		return nil, nil
	case proxyModeStrict:
		return p.fromEnv(req)
	}
	if req != nil && req.URL != nil && isLoopbackHost(req.URL.Hostname()) {
		return nil, nil
	}

	proxyURL, err := p.fromEnv(req)
	if proxyURL == nil || err != nil {
		return proxyURL, err
	}
	if !isLoopbackHost(proxyURL.Hostname()) {
		return proxyURL, nil
	}

	key := proxyURL.String()
	p.mu.Lock()
	defer p.mu.Unlock()
	skip, seen := p.bypass[key]
	if !seen {
		skip = !p.reachable(hostPort(proxyURL))
		p.bypass[key] = skip
		if skip {
			p.logger.Warn("Local proxy %s is unreachable; sending requests directly (set %s=strict to disable).", proxyURL.Redacted(), proxyModeEnv)
		}
	}
	if skip {
		return nil, nil
	}
	return proxyURL, nil
}

func isLoopbackHost(host string) bool {
	host = strings.TrimSpace(host)
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

func hostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "https":
			port = "443"
		case "socks5", "socks5h":
			port = "1080"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

func dialable(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, proxyDialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
