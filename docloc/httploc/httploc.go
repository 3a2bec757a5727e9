// Package httploc resolves http and https document locations by
// downloading them into a local directory.
package httploc

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"sync"
	"time"

	"github.com/c360/mmif/docloc"
	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/metric"
	"github.com/c360/mmif/pkg/cache"
	"github.com/c360/mmif/pkg/retry"
)

// DefaultMaxDownloads bounds the downloads a Resolver keeps on disk.
const DefaultMaxDownloads = 256

// Resolver downloads remote documents. A URL is fetched again only after
// its file was evicted from the download cache, which deletes it.
type Resolver struct {
	client       *http.Client
	retry        retry.Config
	dir          string
	logger       *slog.Logger
	maxDownloads int
	ttl          time.Duration
	registrar    metric.MetricsRegistrar
	tlsConfig    *tls.Config

	mu         sync.Mutex
	downloaded cache.Cache[string]
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithTimeout sets a per-request timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.client = &http.Client{Timeout: d} }
}

// WithRetry sets the retry policy for failed downloads.
func WithRetry(cfg retry.Config) Option {
	return func(r *Resolver) { r.retry = cfg }
}

// WithDir sets the download directory. By default a fresh temporary
// directory is created on first use.
func WithDir(dir string) Option {
	return func(r *Resolver) { r.dir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithCache bounds the download cache to n files, each kept at most ttl.
// A non-positive ttl keeps files until they are evicted by newer ones.
func WithCache(n int, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.maxDownloads = n
		r.ttl = ttl
	}
}

// WithTLS sets the TLS configuration of the HTTP transport.
func WithTLS(cfg *tls.Config) Option {
	return func(r *Resolver) { r.tlsConfig = cfg }
}

// WithMetrics exports download cache counters to reg.
func WithMetrics(reg metric.MetricsRegistrar) Option {
	return func(r *Resolver) { r.registrar = reg }
}

// New creates a Resolver.
func New(opts ...Option) (*Resolver, error) {
	r := &Resolver{
		client:       &http.Client{Timeout: 30 * time.Second},
		retry:        retry.DefaultConfig(),
		logger:       slog.Default(),
		maxDownloads: DefaultMaxDownloads,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tlsConfig != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = r.tlsConfig
		client := *r.client
		client.Transport = transport
		r.client = &client
	}

	downloaded, err := cache.NewLRU[string](r.maxDownloads,
		cache.WithTTL[string](r.ttl),
		cache.WithEvictionCallback[string](r.discard),
		cache.WithMetrics[string](r.registrar, "httploc"))
	if err != nil {
		return nil, err
	}
	r.downloaded = downloaded
	return r, nil
}

// discard deletes an evicted download.
func (r *Resolver) discard(location, p string) {
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("remove evicted download", "location", location, "path", p, "error", err)
		return
	}
	r.logger.Debug("download evicted", "location", location, "path", p)
}

// Close deletes every cached download.
func (r *Resolver) Close() {
	r.downloaded.Clear()
}

// Register installs a new Resolver for http and https on reg.
func Register(reg *docloc.Registry, opts ...Option) (*Resolver, error) {
	r, err := New(opts...)
	if err != nil {
		return nil, err
	}
	for _, scheme := range []string{"http", "https"} {
		if err := reg.Register(scheme, r.Resolve); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Resolve downloads location and returns the local file path. Server
// errors and network failures are retried; client errors are not.
func (r *Resolver) Resolve(ctx context.Context, location *url.URL) (string, error) {
	if location.Scheme != "http" && location.Scheme != "https" {
		return "", errors.WrapInvalid(fmt.Errorf("%w: cannot handle scheme %q", errors.ErrInvalidLocation, location.Scheme),
			"httploc", "Resolve", "check scheme")
	}
	key := location.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.downloaded.Get(key); ok {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	dir, err := r.ensureDir()
	if err != nil {
		return "", err
	}

	p, err := retry.DoWithResult(ctx, r.retry, func() (string, error) {
		return r.fetch(ctx, key, dir)
	})
	if err != nil {
		r.logger.Warn("document download failed", "location", key, "error", err)
		return "", err
	}

	r.logger.Debug("document downloaded", "location", key, "path", p)
	if _, err := r.downloaded.Set(key, p); err != nil {
		return "", err
	}
	return p, nil
}

func (r *Resolver) ensureDir() (string, error) {
	if r.dir != "" {
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return "", errors.WrapFatal(err, "httploc", "Resolve", "create download directory")
		}
		return r.dir, nil
	}
	dir, err := os.MkdirTemp("", "mmif-docloc-")
	if err != nil {
		return "", errors.WrapFatal(err, "httploc", "Resolve", "create download directory")
	}
	r.dir = dir
	return dir, nil
}

func (r *Resolver) fetch(ctx context.Context, location, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", retry.NonRetryable(errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidLocation, err), "httploc", "fetch", "build request"))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrFetchFailed, err),
			"httploc", "fetch", "GET "+location)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return "", errors.WrapTransient(fmt.Errorf("%w: %s", errors.ErrFetchFailed, resp.Status),
			"httploc", "fetch", "GET "+location)
	case resp.StatusCode >= 400:
		return "", retry.NonRetryable(errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidLocation, resp.Status),
			"httploc", "fetch", "GET "+location))
	}

	f, err := os.CreateTemp(dir, "*-"+safeBase(location))
	if err != nil {
		return "", retry.NonRetryable(errors.WrapFatal(err, "httploc", "fetch", "create file"))
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrFetchFailed, err),
			"httploc", "fetch", "read body")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", retry.NonRetryable(errors.WrapFatal(err, "httploc", "fetch", "close file"))
	}
	return f.Name(), nil
}

func safeBase(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return "document"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "document"
	}
	for _, r := range base {
		if r == os.PathSeparator || r == '*' {
			return "document"
		}
	}
	return base
}
