package storage

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBoltStoreClaimsAndExpiresKeys(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		MarkTTL:         1 * time.Second,
		SessionTTL:      time.Hour,
		CleanupInterval: 1 * time.Second,
	}

	storeRaw, err := openBolt(dir+"/session.db", opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	claimed, err := store.Claim("qr-email-all:2025-04-01")
	if err != nil || !claimed {
		t.Fatalf("expected first claim to win, claimed=%v err=%v", claimed, err)
	}

	claimed, err = store.Claim("qr-email-all:2025-04-01")
	if err != nil || claimed {
		t.Fatalf("expected key to be held, claimed=%v err=%v", claimed, err)
	}

	// Fast-forward cleanup cadence and trigger expiry.
	store.lastCleanup.Store(time.Now().Add(-2 * time.Second).Unix())
	time.Sleep(1100 * time.Millisecond)

	claimed, err = store.Claim("qr-email-all:2025-04-01")
	if err != nil {
		t.Fatalf("Claim after expiry: %v", err)
	}
	if !claimed {
		t.Fatalf("expected entry to expire and be claimable again")
	}
}

func TestBoltStoreReleaseAllowsReclaim(t *testing.T) {
	store, err := NewStore("bbolt", t.TempDir()+"/session.db", Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if claimed, err := store.Claim("k"); err != nil || !claimed {
		t.Fatalf("Claim: claimed=%v err=%v", claimed, err)
	}
	if err := store.Release("k"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if claimed, err := store.Claim("k"); err != nil || !claimed {
		t.Fatalf("expected reclaim after release, claimed=%v err=%v", claimed, err)
	}
}

func TestBoltStoreSharesFileBetweenOpenStores(t *testing.T) {
	path := t.TempDir() + "/session.db"

	daemon, err := NewStore("bbolt", path, Options{})
	if err != nil {
		t.Fatalf("NewStore daemon: %v", err)
	}
	defer daemon.Close()

	cli, err := NewStore("bbolt", path, Options{})
	if err != nil {
		t.Fatalf("NewStore second store on same path: %v", err)
	}
	defer cli.Close()

	if err := cli.SaveCookies("localhost:3001", []*http.Cookie{{Name: "session", Value: "abc"}}); err != nil {
		t.Fatalf("SaveCookies: %v", err)
	}
	got, err := daemon.LoadCookies("localhost:3001")
	if err != nil {
		t.Fatalf("LoadCookies: %v", err)
	}
	if len(got) != 1 || got[0].Value != "abc" {
		t.Fatalf("cookies not visible across stores: %#v", got)
	}
}

func TestBoltStoreConcurrentClaimHasOneWinner(t *testing.T) {
	path := t.TempDir() + "/session.db"

	const claimers = 6
	stores := make([]Store, claimers)
	for i := range stores {
		store, err := NewStore("bbolt", path, Options{})
		if err != nil {
			t.Fatalf("NewStore %d: %v", i, err)
		}
		defer store.Close()
		stores[i] = store
	}

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for _, store := range stores {
		wg.Add(1)
		go func(s Store) {
			defer wg.Done()
			claimed, err := s.Claim("qr-email-all:2025-04-01")
			if err != nil {
				t.Errorf("Claim: %v", err)
				return
			}
			if claimed {
				wins.Add(1)
			}
		}(store)
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", got)
	}
}

func TestBoltStoreRejectsUseAfterClose(t *testing.T) {
	store, err := NewStore("bbolt", t.TempDir()+"/session.db", Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := store.Claim("k"); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestBoltStoreRoundTripsCookies(t *testing.T) {
	store, err := NewStore("bbolt", t.TempDir()+"/nested/session.db", Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	cookies := []*http.Cookie{
		{Name: "session", Value: "abc", Path: "/"},
		{Name: ""},
		nil,
	}
	if err := store.SaveCookies("localhost:3001", cookies); err != nil {
		t.Fatalf("SaveCookies: %v", err)
	}

	got, err := store.LoadCookies("localhost:3001")
	if err != nil {
		t.Fatalf("LoadCookies: %v", err)
	}
	if len(got) != 1 || got[0].Name != "session" || got[0].Value != "abc" || got[0].Path != "/" {
		t.Fatalf("unexpected cookies: %#v", got)
	}

	if err := store.SaveCookies("localhost:3001", nil); err != nil {
		t.Fatalf("SaveCookies empty: %v", err)
	}
	got, err = store.LoadCookies("localhost:3001")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected cookies cleared, got %#v err=%v", got, err)
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if claimed, err := store.Claim("x"); err != nil || !claimed {
		t.Fatalf("noop store Claim: %v %v", claimed, err)
	}
	if cookies, err := store.LoadCookies("host"); err != nil || cookies != nil {
		t.Fatalf("noop store LoadCookies: %#v %v", cookies, err)
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected error for unsupported store type")
	}
}
