package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"doclink/internal/domain"
	"doclink/internal/port"
)

var (
	bucketUnits = []byte("units")
	bucketStats = []byte("stats")
	keyStats    = []byte("build_stats")
)

// BoltStore is the on-disk element cache.
type BoltStore struct {
	db *bbolt.DB
}

var _ port.ElementCache = (*BoltStore)(nil)

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketUnits, bucketStats} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
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

func (s *BoltStore) GetUnit(path, hash string) (port.CachedUnit, bool, error) {
	var (
		unit  port.CachedUnit
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUnits).Get([]byte(path))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &unit); err != nil {
			return fmt.Errorf("decode cached unit %s: %w", path, err)
		}
		found = unit.Hash == hash
		return nil
	})
	if err != nil || !found {
		return port.CachedUnit{}, false, err
	}
	return unit, true, nil
}

func (s *BoltStore) PutUnits(units map[string]port.CachedUnit) error {
	if len(units) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUnits)
		for path, unit := range units {
			data, err := json.Marshal(unit)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(path), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Prune(keep []string) (int, error) {
	live := make(map[string]bool, len(keep))
	for _, p := range keep {
		live[p] = true
	}

	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUnits)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if !live[string(k)] {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// Paths lists every cached path in key order.
func (s *BoltStore) Paths() ([]string, error) {
	var paths []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUnits).ForEach(func(k, v []byte) error {
			paths = append(paths, string(k))
			return nil
		})
	})
	return paths, err
}

func (s *BoltStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStats).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

func (s *BoltStore) UpdateStats(stats domain.Stats) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketStats).Put(keyStats, data)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
