package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclink/config"
	"doclink/internal/domain"
	"doclink/internal/port"
)

func openTemp(t *testing.T, cfg *config.Config) (*BoltStore, *MigrationResult, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, res, err := Open(path, cfg)
	require.NoError(t, err)
	return s, res, path
}

func sampleUnit(hash string) port.CachedUnit {
	return port.CachedUnit{
		Hash:   hash,
		Blocks: 2,
		Elements: []domain.DocElement{{
			QualifiedName: "Foo",
			Kind:          "class",
			Body:          []string{"Does X."},
			Location:      domain.Location{Path: "a.js", StartLine: 1, EndLine: 2},
			Params: []domain.Param{{
				Name: "cb", Type: "function", Optional: true, Description: "called once",
				Params: []domain.Param{{Name: "data", Type: "string", Default: "''"}},
			}},
			Returns: &domain.Return{Type: "int", Description: "count"},
		}},
		Diagnostics: []domain.Diagnostic{domain.Warn(domain.UnparsableBlock, domain.Location{Path: "a.js", StartLine: 9}, "no tag")},
	}
}

func TestBoltStore_UnitRoundTripAndHashMismatch(t *testing.T) {
	s, _, _ := openTemp(t, config.DefaultConfig())
	defer s.Close()

	require.NoError(t, s.PutUnits(map[string]port.CachedUnit{"a.js": sampleUnit("h1")}))

	got, ok, err := s.GetUnit("a.js", "h1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleUnit("h1"), got)

	_, ok, err = s.GetUnit("a.js", "h2")
	require.NoError(t, err)
	assert.False(t, ok, "changed content must miss")

	_, ok, err = s.GetUnit("b.js", "h1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBoltStore_Prune(t *testing.T) {
	s, _, _ := openTemp(t, config.DefaultConfig())
	defer s.Close()

	require.NoError(t, s.PutUnits(map[string]port.CachedUnit{
		"a.js": sampleUnit("1"),
		"b.js": sampleUnit("2"),
		"c.js": sampleUnit("3"),
	}))

	n, err := s.Prune([]string{"b.js"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	paths, err := s.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"b.js"}, paths)
}

func TestBoltStore_Stats(t *testing.T) {
	s, _, _ := openTemp(t, config.DefaultConfig())
	defer s.Close()

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{}, stats)

	want := domain.Stats{Units: 3, Elements: 7, Resolved: 2}
	require.NoError(t, s.UpdateStats(want))
	stats, err = s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, want, stats)
}

func TestOpen_GrammarChangeClearsCache(t *testing.T) {
	cfg := config.DefaultConfig()
	s, res, path := openTemp(t, cfg)
	assert.True(t, res.NeedsMigration)
	require.NoError(t, s.PutUnits(map[string]port.CachedUnit{"a.js": sampleUnit("h")}))
	require.NoError(t, s.Close())

	// Same grammar keeps entries.
	s, res, err := Open(path, cfg)
	require.NoError(t, err)
	assert.False(t, res.NeedsRebuild)
	_, ok, err := s.GetUnit("a.js", "h")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, s.Close())

	// Templates do not shape cached elements.
	cfg.Templates["class"] = "<b>{{.Name}}</b>"
	s, res, err = Open(path, cfg)
	require.NoError(t, err)
	assert.False(t, res.NeedsRebuild)
	require.NoError(t, s.Close())

	cfg.Grammar.Prefix = "//!"
	s, res, err = Open(path, cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, res.NeedsRebuild)
	assert.Equal(t, "grammar configuration changed", res.Reason)
	_, ok, err = s.GetUnit("a.js", "h")
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := s.GetSchemaInfo()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, info.Version)
	assert.Equal(t, ComputeConfigHash(cfg), info.ConfigHash)
}

func TestComputeConfigHash(t *testing.T) {
	a := config.DefaultConfig()
	b := config.DefaultConfig()
	assert.Equal(t, ComputeConfigHash(a), ComputeConfigHash(b))

	b.Grammar.Tags = b.Grammar.Tags[1:]
	assert.NotEqual(t, ComputeConfigHash(a), ComputeConfigHash(b))

	c := config.DefaultConfig()
	c.Grammar.Sections.Indent = 4
	assert.NotEqual(t, ComputeConfigHash(a), ComputeConfigHash(c))

	d := config.DefaultConfig()
	d.Grammar.Code = ""
	assert.Equal(t, ComputeConfigHash(a), ComputeConfigHash(d), "inline code only affects rendering")
}

func TestOpen_SchemaUpgradeClearsCache(t *testing.T) {
	cfg := config.DefaultConfig()
	s, _, path := openTemp(t, cfg)
	require.NoError(t, s.PutUnits(map[string]port.CachedUnit{"a.js": sampleUnit("h")}))
	require.NoError(t, s.SetSchemaInfo(&SchemaInfo{Version: 2, ConfigHash: ComputeConfigHash(cfg)}))
	require.NoError(t, s.Close())

	s, res, err := Open(path, cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, res.NeedsMigration)
	assert.Equal(t, 2, res.OldVersion)

	_, ok, err := s.GetUnit("a.js", "h")
	require.NoError(t, err)
	assert.False(t, ok, "v2 entries hold sections as body text")
}
