package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	markBucket       = "dispatch_marks"
	sessionBucket    = "sessions"
	expiryValueBytes = 8
	lockTimeout      = 5 * time.Second
)

var errStoreClosed = errors.New("storage is closed")

// boltStore implements a Store backed by BoltDB. The file is opened for each
// operation and closed right after, so the dispatcher daemon and CLI
// invocations can share one session file; bbolt's file lock serializes them.
type boltStore struct {
	path            string
	mu              sync.Mutex
	closed          atomic.Bool
	lastCleanup     atomic.Int64
	markTTL         time.Duration
	sessionTTL      time.Duration
	cleanupInterval time.Duration
}

// storedCookie is the persisted subset of http.Cookie a jar needs to replay a session.
type storedCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Path   string `json:"path,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// openBolt prepares the file and its buckets, then releases it.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	store := &boltStore{
		path:            path,
		markTTL:         opts.MarkTTL,
		sessionTTL:      opts.SessionTTL,
		cleanupInterval: opts.CleanupInterval,
	}
	store.lastCleanup.Store(time.Now().Unix())

	err := store.update(func(tx *bolt.Tx) error {
		for _, name := range []string{markBucket, sessionBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("init buckets: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// update runs fn in a write transaction on a freshly opened database. An
// expired-entry sweep runs first when one is due.
func (b *boltStore) update(fn func(tx *bolt.Tx) error) (err error) {
	if b.closed.Load() {
		return errStoreClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return fmt.Errorf("open bbolt db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close bbolt db: %w", cerr)
		}
	}()

	return db.Update(func(tx *bolt.Tx) error {
		if err := b.maybeCleanupExpired(tx, time.Now()); err != nil {
			return err
		}
		return fn(tx)
	})
}

// Close marks the store unusable. No file handle is held between operations.
func (b *boltStore) Close() error {
	b.closed.Store(true)
	return nil
}

// Claim marks key for the mark TTL unless an unexpired mark exists. Check and
// write share one transaction, so concurrent claimers see exactly one winner.
func (b *boltStore) Claim(key string) (bool, error) {
	var claimed bool
	err := b.update(func(tx *bolt.Tx) error {
		bucket, err := bucketFor(tx, markBucket)
		if err != nil {
			return err
		}

		now := time.Now()
		k := []byte(key)
		if expiry, ok := decodeExpiry(bucket.Get(k)); ok && expiry.After(now) {
			return nil
		}
		claimed = true
		return bucket.Put(k, encodeExpiry(now.Add(b.markTTL)))
	})
	return claimed, err
}

// Release drops the mark for key so a later Claim succeeds.
func (b *boltStore) Release(key string) error {
	return b.update(func(tx *bolt.Tx) error {
		bucket, err := bucketFor(tx, markBucket)
		if err != nil {
			return err
		}
		return bucket.Delete([]byte(key))
	})
}

// LoadCookies returns the unexpired cookies saved for host.
func (b *boltStore) LoadCookies(host string) ([]*http.Cookie, error) {
	var stored []storedCookie
	err := b.update(func(tx *bolt.Tx) error {
		bucket, err := bucketFor(tx, sessionBucket)
		if err != nil {
			return err
		}

		k := []byte(host)
		value := bucket.Get(k)
		if value == nil {
			return nil
		}

		expiry, ok := decodeExpiry(value)
		if !ok || !expiry.After(time.Now()) {
			return bucket.Delete(k)
		}
		if err := json.Unmarshal(value[expiryValueBytes:], &stored); err != nil {
			return fmt.Errorf("decode session cookies: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain})
	}
	return cookies, nil
}

// SaveCookies replaces the cookies stored for host. An empty set removes the entry.
func (b *boltStore) SaveCookies(host string, cookies []*http.Cookie) error {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain})
	}

	return b.update(func(tx *bolt.Tx) error {
		bucket, err := bucketFor(tx, sessionBucket)
		if err != nil {
			return err
		}
		if len(stored) == 0 {
			return bucket.Delete([]byte(host))
		}

		payload, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("encode session cookies: %w", err)
		}
		value := append(encodeExpiry(time.Now().Add(b.sessionTTL)), payload...)
		return bucket.Put([]byte(host), value)
	})
}

// maybeCleanupExpired removes expired marks and sessions on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(tx *bolt.Tx, now time.Time) error {
	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	for _, name := range []string{markBucket, sessionBucket} {
		bucket := tx.Bucket([]byte(name))
		if bucket == nil {
			continue
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
	}
	b.lastCleanup.Store(now.Unix())
	return nil
}

func bucketFor(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	bucket := tx.Bucket([]byte(name))
	if bucket == nil {
		return nil, fmt.Errorf("%s bucket missing", name)
	}
	return bucket, nil
}

func encodeExpiry(t time.Time) []byte {
	buf := make([]byte, expiryValueBytes)
	binary.BigEndian.PutUint64(buf, uint64(t.Unix()))
	return buf
}

// decodeExpiry decodes the expiry time prefix of a stored value.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) < expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
