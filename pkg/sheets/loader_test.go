package sheets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kintai-hq/kintai-client/pkg/httpclient"
)

func TestRemoteLoaderSkipsDownloadWhenPresent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("var XLSX = {};"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "xlsx.full.min.js")
	if err := os.WriteFile(path, []byte("var XLSX = {};"), 0o644); err != nil {
		t.Fatalf("seed bundle: %v", err)
	}

	loader := NewRemoteLoader(srv.URL, path, httpclient.NewRestyClient(time.Second), nil)
	for i := 0; i < 2; i++ {
		if err := loader.EnsureLoaded(context.Background()); err != nil {
			t.Fatalf("EnsureLoaded #%d: %v", i, err)
		}
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no download, got %d", hits.Load())
	}
	if loader.State() != Loaded {
		t.Fatalf("expected loaded state, got %s", loader.State())
	}
}

func TestRemoteLoaderDownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("var XLSX = {};"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "vendor", "xlsx.full.min.js")
	loader := NewRemoteLoader(srv.URL, path, httpclient.NewRestyClient(time.Second), nil)
	if loader.State() != NotRequested {
		t.Fatalf("expected not-requested state, got %s", loader.State())
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- loader.EnsureLoaded(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("EnsureLoaded: %v", err)
		}
	}

	if hits.Load() != 1 {
		t.Fatalf("expected exactly one download, got %d", hits.Load())
	}
	raw, err := os.ReadFile(path)
	if err != nil || string(raw) != "var XLSX = {};" {
		t.Fatalf("unexpected bundle contents %q err=%v", raw, err)
	}
}

func TestRemoteLoaderFailureIsSticky(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "xlsx.full.min.js")
	loader := NewRemoteLoader(srv.URL, path, httpclient.NewRestyClient(time.Second), nil)

	err := loader.EnsureLoaded(context.Background())
	if err == nil {
		t.Fatalf("expected load error")
	}
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Source != srv.URL {
		t.Fatalf("expected LoadError for %s, got %#v", srv.URL, err)
	}

	if err := loader.EnsureLoaded(context.Background()); !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected sticky failure, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected no retry, got %d downloads", hits.Load())
	}
	if loader.State() != Failed {
		t.Fatalf("expected failed state, got %s", loader.State())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no bundle written, stat err=%v", err)
	}
}

func TestRemoteLoaderWaiterGivesUpWithoutFailingLoad(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte("var XLSX = {};"))
	}))
	defer srv.Close()
	defer close(release)

	path := filepath.Join(t.TempDir(), "xlsx.full.min.js")
	loader := NewRemoteLoader(srv.URL, path, httpclient.NewRestyClient(5*time.Second), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := loader.EnsureLoaded(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if errors.Is(err, ErrLoadFailed) {
		t.Fatalf("caller timeout reported as load failure: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("EnsureLoaded ignored its context for %s", elapsed)
	}
	if loader.State() != Loading {
		t.Fatalf("expected download still in flight, got %s", loader.State())
	}

	release <- struct{}{}
	if err := loader.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded after release: %v", err)
	}
	if loader.State() != Loaded {
		t.Fatalf("expected loaded state, got %s", loader.State())
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single download, got %d", hits.Load())
	}
}

func TestStaticLoaderIsAlwaysLoaded(t *testing.T) {
	var l Loader = StaticLoader{}
	if err := l.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("StaticLoader: %v", err)
	}
}
