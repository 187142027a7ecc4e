package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bSnapshots = []byte("snapshots")
	bByMember  = []byte("by_member")
)

// BoltStore keeps snapshots in a bbolt file.
//
// Layout:
//
//	snapshots/<id>            JSON-encoded Snapshot
//	by_member/<member>/<id>   empty; ids are UUIDv7 so keys sort by time
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the database at path. It waits at most
// one second for another process holding the file lock.
func OpenBolt(path string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("store: missing path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bSnapshots, bByMember} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Save(_ context.Context, snap *Snapshot) error {
	prepare(snap)
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bSnapshots).Put([]byte(snap.ID), raw); err != nil {
			return err
		}
		if snap.MemberID == "" {
			return nil
		}
		mb, err := tx.Bucket(bByMember).CreateBucketIfNotExists([]byte(snap.MemberID))
		if err != nil {
			return err
		}
		return mb.Put([]byte(snap.ID), []byte{})
	})
}

func (s *BoltStore) Get(_ context.Context, id string) (*Snapshot, error) {
	var snap Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bSnapshots).Get([]byte(id))
		if raw == nil {
			return ErrSnapshotNotFound
		}
		return json.Unmarshal(raw, &snap)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *BoltStore) List(_ context.Context, memberID string, limit int) ([]*Snapshot, error) {
	var out []*Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		all := tx.Bucket(bSnapshots)

		var c *bolt.Cursor
		if memberID == "" {
			c = all.Cursor()
		} else {
			mb := tx.Bucket(bByMember).Bucket([]byte(memberID))
			if mb == nil {
				return nil
			}
			c = mb.Cursor()
		}

		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			raw := all.Get(k)
			if raw == nil {
				continue
			}
			var snap Snapshot
			if err := json.Unmarshal(raw, &snap); err != nil {
				return fmt.Errorf("decode snapshot %s: %w", k, err)
			}
			snap.Tree = nil
			out = append(out, &snap)
		}
		return nil
	})
	return out, err
}

// Delete removes a snapshot and its member index entry.
func (s *BoltStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		all := tx.Bucket(bSnapshots)
		raw := all.Get([]byte(id))
		if raw == nil {
			return ErrSnapshotNotFound
		}
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err == nil && snap.MemberID != "" {
			if mb := tx.Bucket(bByMember).Bucket([]byte(snap.MemberID)); mb != nil {
				_ = mb.Delete([]byte(id))
			}
		}
		return all.Delete([]byte(id))
	})
}

// Members returns every member id with at least one snapshot, in key order.
func (s *BoltStore) Members(context.Context) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bByMember).ForEachBucket(func(k []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*BoltStore)(nil)
