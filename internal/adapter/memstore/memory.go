package memstore

import (
	"sync"

	"doclink/internal/domain"
	"doclink/internal/port"
)

// MemoryStore is an ElementCache that lives for one process. It backs
// --no-cache builds and the preview server's rebuilds.
type MemoryStore struct {
	mu    sync.RWMutex
	units map[string]port.CachedUnit
	stats domain.Stats
}

var _ port.ElementCache = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		units: make(map[string]port.CachedUnit),
	}
}

func (s *MemoryStore) GetUnit(path, hash string) (port.CachedUnit, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unit, ok := s.units[path]
	if !ok || unit.Hash != hash {
		return port.CachedUnit{}, false, nil
	}
	return unit, true, nil
}

func (s *MemoryStore) PutUnits(units map[string]port.CachedUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, unit := range units {
		s.units[path] = unit
	}
	return nil
}

func (s *MemoryStore) Prune(keep []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := make(map[string]bool, len(keep))
	for _, p := range keep {
		live[p] = true
	}
	removed := 0
	for path := range s.units {
		if !live[path] {
			delete(s.units, path)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) GetStats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *MemoryStore) UpdateStats(stats domain.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
