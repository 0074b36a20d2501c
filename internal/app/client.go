package app

import (
	"fmt"

	"github.com/kintai-hq/kintai-client/internal/config"
	"github.com/kintai-hq/kintai-client/internal/logger"
	"github.com/kintai-hq/kintai-client/internal/storage"
	"github.com/kintai-hq/kintai-client/pkg/api"
	"github.com/kintai-hq/kintai-client/pkg/httpclient"
)

// Session bundles the facade with the store backing its cookies.
type Session struct {
	Client    *api.Client
	Transport *httpclient.RestyTransport
	Store     storage.Store
}

// OpenSession builds the shared transport and the facade over it. The caller
// owns the returned session and must Close it.
func OpenSession(cfg *config.Config, log logger.Logger) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	store, err := storage.NewStore(cfg.SessionStoreType, cfg.SessionPath, storage.Options{
		SessionTTL: cfg.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.DebugObj("storage initialized", "storage_config", map[string]any{
		"type":                cfg.SessionStoreType,
		"path":                cfg.SessionPath,
		"session_ttl_seconds": int(cfg.SessionTTL.Seconds()),
	})

	transport, err := httpclient.NewTransport(httpclient.Options{
		BaseURL:         cfg.APIBaseURL,
		Timeout:         cfg.APITimeout,
		WithCredentials: cfg.WithCredentials,
		Cookies:         store,
		Logger:          log,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init transport: %w", err)
	}

	client, err := api.New(transport)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &Session{Client: client, Transport: transport, Store: store}, nil
}

// Close releases the store.
func (s *Session) Close() error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.Close()
}
