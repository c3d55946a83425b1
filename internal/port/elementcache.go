package port

import "doclink/internal/domain"

// ElementCache stores the parse result of a source unit so unchanged
// units can skip extraction on the next build. GetUnit must be safe for
// concurrent use.
type ElementCache interface {
	// GetUnit returns the cached entry for path if its content hash matches.
	GetUnit(path, hash string) (CachedUnit, bool, error)

	// PutUnits stores a batch of entries keyed by path.
	PutUnits(units map[string]CachedUnit) error

	// Prune removes every entry whose path is not in keep.
	Prune(keep []string) (int, error)

	GetStats() (domain.Stats, error)
	UpdateStats(stats domain.Stats) error

	Close() error
}

// CachedUnit is the per-unit output of extraction and tag parsing.
type CachedUnit struct {
	Hash        string              `json:"hash"`
	Blocks      int                 `json:"blocks"`
	Elements    []domain.DocElement `json:"elements"`
	Diagnostics []domain.Diagnostic `json:"diagnostics,omitempty"`
}
