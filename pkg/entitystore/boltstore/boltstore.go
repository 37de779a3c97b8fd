// Package boltstore is the reference entitystore.Store implementation,
// backed by go.etcd.io/bbolt: one bucket holding entity blobs, one bucket
// per declared tag key holding a uid set per tag value, and one bucket
// recording which tags each uid currently carries so re-indexing on
// update/delete can clean up stale entries.
package boltstore

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/protonmail/drive-node-core/pkg/entitystore"
)

var (
	bucketEntities = []byte("entities")
	bucketUIDTags  = []byte("uid_tags")
)

func tagBucketName(key string) []byte { return []byte("tag:" + key) }

// Store is a bbolt-backed entitystore.Store. The set of valid tag keys is
// fixed at construction, matching the §6 contract that writing an
// undeclared tag key is an error.
type Store struct {
	db      *bolt.DB
	tagKeys map[string]bool
}

// Open opens (creating if absent) a bbolt database under dataDir,
// declaring tagKeys as the only tag keys future SetEntity calls may use.
func Open(dataDir string, tagKeys []string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "entities.db")
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening entity store at %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEntities); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketUIDTags); err != nil {
			return err
		}
		for _, key := range tagKeys {
			if _, err := tx.CreateBucketIfNotExists(tagBucketName(key)); err != nil {
				return fmt.Errorf("creating tag bucket %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	keySet := make(map[string]bool, len(tagKeys))
	for _, key := range tagKeys {
		keySet[key] = true
	}
	return &Store{db: db, tagKeys: keySet}, nil
}

var _ entitystore.Store = (*Store)(nil)

func tagIndexKey(tagValue, uid string) []byte {
	return []byte(tagValue + "\x00" + uid)
}

func (s *Store) SetEntity(_ context.Context, uid string, data []byte, tags entitystore.Tags) error {
	for key := range tags {
		if !s.tagKeys[key] {
			return fmt.Errorf("entity store: tag key %q was not declared at construction", key)
		}
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := s.deindexLocked(tx, uid); err != nil {
			return err
		}

		if err := tx.Bucket(bucketEntities).Put([]byte(uid), data); err != nil {
			return err
		}

		encodedTags, err := encodeTags(tags)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketUIDTags).Put([]byte(uid), encodedTags); err != nil {
			return err
		}

		for key, value := range tags {
			b := tx.Bucket(tagBucketName(key))
			if err := b.Put(tagIndexKey(value, uid), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// deindexLocked removes uid's prior tag index entries, if any. Must run
// inside an existing transaction.
func (s *Store) deindexLocked(tx *bolt.Tx, uid string) error {
	prevRaw := tx.Bucket(bucketUIDTags).Get([]byte(uid))
	if prevRaw == nil {
		return nil
	}
	prevTags, err := decodeTags(prevRaw)
	if err != nil {
		return err
	}
	for key, value := range prevTags {
		b := tx.Bucket(tagBucketName(key))
		if b == nil {
			continue
		}
		if err := b.Delete(tagIndexKey(value, uid)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetEntity(_ context.Context, uid string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEntities).Get([]byte(uid))
		if raw == nil {
			return nil
		}
		data = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, data != nil, nil
}

func (s *Store) IterateEntities(_ context.Context, uids []string) ([]entitystore.EntityResult, error) {
	results := make([]entitystore.EntityResult, len(uids))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntities)
		for i, uid := range uids {
			raw := b.Get([]byte(uid))
			if raw == nil {
				results[i] = entitystore.EntityResult{UID: uid, OK: false}
				continue
			}
			results[i] = entitystore.EntityResult{UID: uid, OK: true, Data: append([]byte(nil), raw...)}
		}
		return nil
	})
	return results, err
}

func (s *Store) IterateEntitiesByTag(_ context.Context, tagKey, tagValue string) ([]entitystore.EntityResult, error) {
	if !s.tagKeys[tagKey] {
		return nil, fmt.Errorf("entity store: tag key %q was not declared at construction", tagKey)
	}

	var results []entitystore.EntityResult
	err := s.db.View(func(tx *bolt.Tx) error {
		tagBucket := tx.Bucket(tagBucketName(tagKey))
		entities := tx.Bucket(bucketEntities)

		prefix := []byte(tagValue + "\x00")
		c := tagBucket.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			uid := string(k[len(prefix):])
			raw := entities.Get([]byte(uid))
			if raw == nil {
				results = append(results, entitystore.EntityResult{UID: uid, OK: false})
				continue
			}
			results = append(results, entitystore.EntityResult{UID: uid, OK: true, Data: append([]byte(nil), raw...)})
		}
		return nil
	})
	return results, err
}

func (s *Store) RemoveEntities(_ context.Context, uids []string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, uid := range uids {
			if err := s.deindexLocked(tx, uid); err != nil {
				return err
			}
			if err := tx.Bucket(bucketEntities).Delete([]byte(uid)); err != nil {
				return err
			}
			if err := tx.Bucket(bucketUIDTags).Delete([]byte(uid)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Purge(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketEntities); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(bucketEntities); err != nil {
			return err
		}
		if err := tx.DeleteBucket(bucketUIDTags); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(bucketUIDTags); err != nil {
			return err
		}
		for key := range s.tagKeys {
			name := tagBucketName(key)
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error { return s.db.Close() }
