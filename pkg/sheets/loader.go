package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/kintai-hq/kintai-client/pkg/httpclient"
)

// ErrLoadFailed is matched by every error a Loader returns when the library could not be loaded.
var ErrLoadFailed = errors.New("spreadsheet library load failed")

// Loader makes the spreadsheet library available before dependent code runs.
type Loader interface {
	EnsureLoaded(ctx context.Context) error
}

// State is the lifecycle of a RemoteLoader.
type State int32

const (
	NotRequested State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case NotRequested:
		return "not-requested"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// LoadError reports which source could not be loaded.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load spreadsheet library from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error        { return e.Err }
func (e *LoadError) Is(target error) bool { return target == ErrLoadFailed }

// StaticLoader is used when the library is linked into the binary; it is always loaded.
type StaticLoader struct{}

func (StaticLoader) EnsureLoaded(context.Context) error { return nil }

// RemoteLoader vendors a third-party script bundle into a local path at most once.
// A failed download is final for the lifetime of the loader; a caller giving up
// on its own context is not.
type RemoteLoader struct {
	url    string
	path   string
	client httpclient.Client
	log    Logger

	mu    sync.Mutex
	state atomic.Int32
	done  chan struct{} // closed when the in-flight download settles
	err   error
}

// NewRemoteLoader returns a loader that downloads url into path when path is absent.
func NewRemoteLoader(url, path string, client httpclient.Client, log Logger) *RemoteLoader {
	if client == nil {
		client = httpclient.NewRestyClient(defaultDownloadTimeout)
	}
	return &RemoteLoader{url: url, path: path, client: client, log: ensureLogger(log)}
}

// State reports the current lifecycle state without blocking.
func (l *RemoteLoader) State() State { return State(l.state.Load()) }

// EnsureLoaded resolves immediately when the bundle is already present. Otherwise
// the first caller starts the single download and every caller waits for it or
// for its own ctx, whichever ends first. The download itself is not bound to any
// caller's cancellation.
func (l *RemoteLoader) EnsureLoaded(ctx context.Context) error {
	l.mu.Lock()
	switch l.State() {
	case Loaded:
		l.mu.Unlock()
		return nil
	case Failed:
		err := l.err
		l.mu.Unlock()
		return err
	case NotRequested:
		if present(l.path) {
			l.state.Store(int32(Loaded))
			l.mu.Unlock()
			return nil
		}
		l.state.Store(int32(Loading))
		l.done = make(chan struct{})
		go l.load(context.WithoutCancel(ctx), l.done)
	}
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *RemoteLoader) load(ctx context.Context, done chan struct{}) {
	err := l.download(ctx)

	l.mu.Lock()
	if err != nil {
		l.err = &LoadError{Source: l.url, Err: err}
		l.state.Store(int32(Failed))
	} else {
		l.state.Store(int32(Loaded))
	}
	close(done)
	l.mu.Unlock()

	if err != nil {
		l.log.ErrorObj("spreadsheet library load failed", "sheets_loader_error", map[string]any{
			"url":   l.url,
			"path":  l.path,
			"error": err.Error(),
		})
		return
	}
	l.log.InfoObj("spreadsheet library loaded", "sheets_loader", map[string]any{
		"url":  l.url,
		"path": l.path,
	})
}

func (l *RemoteLoader) download(ctx context.Context) error {
	resp, err := l.client.Get(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("fetch bundle: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("bundle returned status %d: %s", resp.StatusCode(),
			httpclient.BodySnippet(resp.Header().Get("Content-Type"), resp.Body()))
	}
	body := resp.Body()
	if len(body) == 0 {
		return errors.New("bundle is empty")
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".bundle-*")
	if err != nil {
		return fmt.Errorf("create temp bundle: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close bundle: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("install bundle: %w", err)
	}
	return nil
}

func present(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
