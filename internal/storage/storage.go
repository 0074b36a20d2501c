// Package storage provides the local bbolt-backed state of the client:
// persisted session cookies and dispatch claims. Several processes may share
// one file.
package storage

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Store tracks dispatch claims and session cookies.
type Store interface {
	Close() error
	// Claim records key unless it is already held; it reports whether this call took it.
	Claim(key string) (bool, error)
	// Release gives up a claim so the key can be claimed again.
	Release(key string) error
	LoadCookies(host string) ([]*http.Cookie, error)
	SaveCookies(host string, cookies []*http.Cookie) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	MarkTTL         time.Duration
	SessionTTL      time.Duration
	CleanupInterval time.Duration
}

const (
	defaultMarkTTL         = 3 * 24 * time.Hour
	defaultSessionTTL      = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.MarkTTL <= 0 {
		opts.MarkTTL = defaultMarkTTL
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                               { return nil }
func (noopStore) Claim(string) (bool, error)                 { return true, nil }
func (noopStore) Release(string) error                       { return nil }
func (noopStore) LoadCookies(string) ([]*http.Cookie, error) { return nil, nil }
func (noopStore) SaveCookies(string, []*http.Cookie) error   { return nil }
