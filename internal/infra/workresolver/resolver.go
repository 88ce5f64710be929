// Package workresolver turns a stored work reference into the artifact the
// evaluators see: inline text or an inline image.
package workresolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"repverse/internal/domain/marketplace"
	"repverse/internal/infra/httpclient"
	"repverse/internal/shared/async"
	"repverse/internal/shared/logging"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 10 * time.Minute
	defaultMaxBytes  = 8 << 20
	defaultTimeout   = 20 * time.Second
	ipfsScheme       = "ipfs://"
)

// IPFSReader is the subset of the IPFS HTTP API client used here.
// *shell.Shell from go-ipfs-api satisfies it.
type IPFSReader interface {
	Cat(path string) (io.ReadCloser, error)
}

// Config tunes fetching and caching.
type Config struct {
	CacheSize int
	CacheTTL  time.Duration
	MaxBytes  int64
	Timeout   time.Duration
	URLPolicy httpclient.URLPolicy
}

// Resolver fetches http(s) and ipfs:// references. Anything else is treated
// as literal text.
type Resolver struct {
	http     *http.Client
	ipfs     IPFSReader
	cache    *expirable.LRU[string, marketplace.WorkArtifact]
	maxBytes int64
	policy   httpclient.URLPolicy
	logger   logging.Logger
}

// New builds a resolver. ipfs may be nil, in which case ipfs:// references
// degrade to text.
func New(cfg Config, ipfs IPFSReader, logger logging.Logger) *Resolver {
	logger = logging.OrNop(logger)
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Resolver{
		http:     httpclient.New(cfg.Timeout, logger),
		ipfs:     ipfs,
		cache:    expirable.NewLRU[string, marketplace.WorkArtifact](cfg.CacheSize, nil, cfg.CacheTTL),
		maxBytes: cfg.MaxBytes,
		policy:   cfg.URLPolicy,
		logger:   logger,
	}
}

// WithHTTPClient swaps the outbound client, for tests.
func (r *Resolver) WithHTTPClient(client *http.Client) *Resolver {
	r.http = client
	return r
}

// Resolve returns the artifact behind ref. Fetch failures degrade to
// Text(ref) and are logged; only a done ctx produces an error.
func (r *Resolver) Resolve(ctx context.Context, ref string) (marketplace.WorkArtifact, error) {
	trimmed := strings.TrimSpace(ref)
	if !isRemote(trimmed) {
		return marketplace.TextWork(ref), nil
	}
	if cached, ok := r.cache.Get(trimmed); ok {
		return cached, nil
	}

	var (
		artifact marketplace.WorkArtifact
		err      error
	)
	if strings.HasPrefix(strings.ToLower(trimmed), ipfsScheme) {
		artifact, err = r.fetchIPFS(ctx, trimmed)
	} else {
		artifact, err = r.fetchHTTP(ctx, trimmed)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return marketplace.WorkArtifact{}, ctxErr
		}
		logging.FromContext(ctx, r.logger).Warn("work %s could not be fetched, scoring the reference as text: %v", trimmed, err)
		return marketplace.TextWork(ref), nil
	}

	r.cache.Add(trimmed, artifact)
	return artifact, nil
}

func isRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, ipfsScheme)
}

func (r *Resolver) fetchHTTP(ctx context.Context, ref string) (marketplace.WorkArtifact, error) {
	target, err := httpclient.ValidateOutboundURL(ref, r.policy)
	if err != nil {
		return marketplace.WorkArtifact{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return marketplace.WorkArtifact{}, err
	}
	req.Header.Set("User-Agent", "repverse-work-resolver/1.0")

	resp, err := r.http.Do(req)
	if err != nil {
		return marketplace.WorkArtifact{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return marketplace.WorkArtifact{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := httpclient.ReadAllWithLimit(resp.Body, r.maxBytes)
	if err != nil {
		return marketplace.WorkArtifact{}, err
	}
	return classify(resp.Header.Get("Content-Type"), body)
}

func (r *Resolver) fetchIPFS(ctx context.Context, ref string) (marketplace.WorkArtifact, error) {
	if r.ipfs == nil {
		return marketplace.WorkArtifact{}, fmt.Errorf("no ipfs node configured")
	}
	cidPath := strings.Trim(ref[len(ipfsScheme):], "/")
	if cidPath == "" {
		return marketplace.WorkArtifact{}, fmt.Errorf("empty ipfs path")
	}

	type result struct {
		body []byte
		err  error
	}
	done := make(chan result, 1)
	async.Go(r.logger, "workresolver.ipfs_cat", func() {
		res := result{err: errors.New("ipfs cat aborted")}
		defer func() { done <- res }()
		rc, err := r.ipfs.Cat("/ipfs/" + cidPath)
		if err != nil {
			res = result{err: err}
			return
		}
		defer func() { _ = rc.Close() }()
		body, err := httpclient.ReadAllWithLimit(rc, r.maxBytes)
		res = result{body: body, err: err}
	})

	select {
	case <-ctx.Done():
		return marketplace.WorkArtifact{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return marketplace.WorkArtifact{}, fmt.Errorf("ipfs cat: %w", res.err)
		}
		return classify("", res.body)
	}
}

// classify picks the artifact kind from the declared content type, falling
// back to sniffing the body when none is declared.
func classify(contentType string, body []byte) (marketplace.WorkArtifact, error) {
	if len(body) == 0 {
		return marketplace.WorkArtifact{}, fmt.Errorf("empty body")
	}
	mediaType := ""
	if contentType != "" {
		if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = parsed
		}
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}

	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return marketplace.ImageWork(body, mediaType), nil
	case mediaType == "text/html":
		text, err := htmlText(body)
		if err != nil {
			return marketplace.WorkArtifact{}, err
		}
		if text == "" {
			return marketplace.WorkArtifact{}, fmt.Errorf("html page has no visible text")
		}
		return marketplace.TextWork(text), nil
	default:
		return marketplace.TextWork(string(body)), nil
	}
}
