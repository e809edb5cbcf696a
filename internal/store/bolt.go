// Package store is Core's persistence layer: ten resource-kind buckets
// plus Users, UserGroups, Permissions, ApiKeys, Tags, Variables,
// GitAccounts, RegistryAccounts, Updates, Alerts, and Stats (spec §6
// "Persisted state layout"), backed by a single bbolt database file —
// the concrete choice behind the "document-store persistence layer"
// spec.md treats as an external collaborator to the core (§1). The
// bucket-per-collection, JSON-blob-per-row shape is lifted directly from
// the teacher's internal/store/bolt.go.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/komodore/core/internal/model"
)

var (
	bucketResourcesPrefix = "resource:" // one bucket per ResourceKind, e.g. "resource:Server"
	bucketUsers           = []byte("users")
	bucketGroups          = []byte("user_groups")
	bucketPermissions     = []byte("permissions")
	bucketApiKeys         = []byte("api_keys")
	bucketTags            = []byte("tags")
	bucketVariables       = []byte("variables")
	bucketGitAccounts     = []byte("git_accounts")
	bucketRegistryAccts   = []byte("registry_accounts")
	bucketUpdates         = []byte("updates")
	bucketAlerts          = []byte("alerts")
	bucketStats           = []byte("stats")
)

// Store wraps a BoltDB database holding every persisted Core collection.
type Store struct {
	db *bolt.DB
}

// Open creates or opens a BoltDB database at path, ensuring every
// collection bucket exists (teacher's internal/store/bolt.go Open).
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	buckets := [][]byte{
		bucketUsers, bucketGroups, bucketPermissions, bucketApiKeys,
		bucketTags, bucketVariables, bucketGitAccounts, bucketRegistryAccts,
		bucketUpdates, bucketAlerts, bucketStats,
	}
	for _, k := range model.AllKinds() {
		buckets = append(buckets, resourceBucket(k))
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying BoltDB.
func (s *Store) Close() error {
	return s.db.Close()
}

func resourceBucket(k model.ResourceKind) []byte {
	return []byte(bucketResourcesPrefix + string(k))
}

// putJSON marshals v and writes it under key in bucket.
func putJSON(tx *bolt.Tx, bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

// getJSON reads key from bucket into v. Returns model.ErrNotFound if
// absent.
func getJSON(tx *bolt.Tx, bucket []byte, key string, v any) error {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return model.ErrNotFound
	}
	return json.Unmarshal(data, v)
}

// forEachJSON iterates every value in bucket, unmarshaling into a fresh
// instance produced by newFn and passed to fn. fn's returned error aborts
// iteration.
func forEachJSON(tx *bolt.Tx, bucket []byte, newFn func() any, fn func(key string, v any) error) error {
	return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
		item := newFn()
		if err := json.Unmarshal(v, item); err != nil {
			return fmt.Errorf("unmarshal %s: %w", k, err)
		}
		return fn(string(k), item)
	})
}
