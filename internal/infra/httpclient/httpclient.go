// Package httpclient builds the outbound HTTP clients used for model calls
// and work fetching.
package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"repverse/internal/shared/logging"
)

const defaultTimeout = 30 * time.Second

// New returns an http.Client for outbound requests. It honours the standard
// proxy variables but skips loopback proxies that are not listening.
func New(timeout time.Duration, logger logging.Logger) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: Transport(logger),
	}
}

// Transport clones the default transport with the proxy policy applied.
func Transport(logger logging.Logger) *http.Transport {
	policy := newProxyPolicy(modeFromEnv(), logger)
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Transport{Proxy: policy.proxy}
	}
	transport := base.Clone()
	transport.Proxy = policy.proxy
	return transport
}

// ErrBodyTooLarge is returned by ReadAllWithLimit when the body exceeds the cap.
var ErrBodyTooLarge = fmt.Errorf("response body exceeds limit")

// ReadAllWithLimit reads at most limit bytes. A body that is longer fails
// with ErrBodyTooLarge instead of being silently truncated.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	return data, nil
}
