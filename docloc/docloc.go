// Package docloc resolves MMIF document locations to local file paths.
//
// A location is a URI of the form scheme://[host]/path. The file scheme is
// resolved natively; every other scheme needs a resolver registered for it
// by the program, for example:
//
//	reg := docloc.NewRegistry()
//	httploc.Register(reg)
//	path, err := reg.Resolve(ctx, "https://example.org/video.mp4")
//
// Resolving a scheme that has no resolver fails with errors.ErrNoResolver.
package docloc

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/c360/mmif/errors"
)

// FileScheme is the scheme resolved without a registered resolver.
const FileScheme = "file"

// ResolverFunc turns a document location into a local path.
type ResolverFunc func(ctx context.Context, location *url.URL) (string, error)

// Observer is notified after every resolution attempt.
type Observer func(scheme string, err error)

// Registry maps URI schemes to resolvers. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]ResolverFunc
	observers []Observer
}

// Default is the process-wide registry.
var Default = NewRegistry()

// NewRegistry creates a registry that resolves only the file scheme.
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]ResolverFunc)}
}

// Register installs fn for scheme, replacing any earlier resolver. The file
// scheme may be overridden too.
func (r *Registry) Register(scheme string, fn ResolverFunc) error {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" || strings.ContainsAny(scheme, ":/") {
		return errors.WrapInvalid(fmt.Errorf("%w: bad scheme %q", errors.ErrInvalidConfig, scheme),
			"Registry", "Register", "check scheme")
	}
	if fn == nil {
		return errors.WrapInvalid(fmt.Errorf("%w: nil resolver for %s", errors.ErrInvalidConfig, scheme),
			"Registry", "Register", "check resolver")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[scheme] = fn
	return nil
}

// Observe adds an observer called after every Resolve.
func (r *Registry) Observe(fn Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Lookup returns the resolver used for scheme.
func (r *Registry) Lookup(scheme string) (ResolverFunc, bool) {
	scheme = strings.ToLower(scheme)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.resolvers[scheme]; ok {
		return fn, true
	}
	if scheme == FileScheme {
		return resolveFile, true
	}
	return nil, false
}

// Schemes lists the schemes that can be resolved, sorted.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := []string{FileScheme}
	for s := range r.resolvers {
		if s != FileScheme {
			schemes = append(schemes, s)
		}
	}
	sort.Strings(schemes)
	return schemes
}

// Resolve returns the local path for location.
func (r *Registry) Resolve(ctx context.Context, location string) (string, error) {
	u, err := Parse(location)
	if err != nil {
		return "", err
	}

	fn, ok := r.Lookup(u.Scheme)
	if !ok {
		err = errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrNoResolver, u.Scheme),
			"Registry", "Resolve", "look up resolver")
		r.notify(u.Scheme, err)
		return "", err
	}

	path, err := fn(ctx, u)
	r.notify(u.Scheme, err)
	if err != nil {
		return "", err
	}
	return path, nil
}

func (r *Registry) notify(scheme string, err error) {
	r.mu.RLock()
	observers := append([]Observer(nil), r.observers...)
	r.mu.RUnlock()

	for _, o := range observers {
		o(scheme, err)
	}
}

// Register installs fn for scheme on the Default registry.
func Register(scheme string, fn ResolverFunc) error {
	return Default.Register(scheme, fn)
}

// Resolve resolves location with the Default registry.
func Resolve(ctx context.Context, location string) (string, error) {
	return Default.Resolve(ctx, location)
}

// Parse parses a location URI. Locations without a scheme fail with
// errors.ErrInvalidLocation; use FromPath to build one from a path.
func Parse(location string) (*url.URL, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidLocation, err),
			"docloc", "Parse", "parse location")
	}
	if u.Scheme == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %q has no scheme", errors.ErrInvalidLocation, location),
			"docloc", "Parse", "parse location")
	}
	return u, nil
}

// FromPath converts a local path into a file URI. Relative paths are made
// absolute first.
func FromPath(p string) (string, error) {
	if p == "" {
		return "", errors.WrapInvalid(fmt.Errorf("%w: empty path", errors.ErrInvalidLocation),
			"docloc", "FromPath", "convert path")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidLocation, err),
			"docloc", "FromPath", "convert path")
	}
	u := url.URL{Scheme: FileScheme, Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// Address returns host and path of a location, or only the path when the
// host is empty.
func Address(u *url.URL) string {
	return u.Host + u.Path
}

func resolveFile(_ context.Context, u *url.URL) (string, error) {
	if u.Path == "" {
		return "", errors.WrapInvalid(fmt.Errorf("%w: %q has no path", errors.ErrInvalidLocation, u.String()),
			"docloc", "resolveFile", "resolve")
	}
	return filepath.FromSlash(u.Path), nil
}
