package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclink/config"
	"doclink/internal/adapter/memstore"
	"doclink/internal/adapter/store"
	"doclink/internal/domain"
	"doclink/internal/port"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown", "path", "a.js")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(config.LoggingConfig{Level: "loud"}, &buf)
	assert.True(t, domain.IsConfigError(err))

	_, err = newLogger(config.LoggingConfig{Format: "xml"}, &buf)
	assert.True(t, domain.IsConfigError(err))
}

func TestStrictCheck(t *testing.T) {
	var report domain.Report
	assert.NoError(t, strictCheck(true, report))

	report.Add(domain.Warn(domain.UnresolvedReference, domain.Location{Path: "a.js", StartLine: 1}, "x"))
	assert.NoError(t, strictCheck(false, report))

	err := strictCheck(true, report)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errWarnings))
	assert.False(t, domain.IsConfigError(err))
}

func TestNewBuilder_MissingIntroIsConfigError(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.Intro = "missing.md"

	_, err := newBuilder(t.TempDir(), cfg, memstore.NewMemoryStore(), nil)
	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "output.intro", ce.Field)
}

func TestLoadUnits(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.js"), []byte("/// @class B\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.js"), []byte("/// @class A\n"), 0644))

	cfg := config.DefaultConfig()
	cfg.Index.Includes = []string{"**/*.js"}
	cfg.Index.Excludes = nil

	units, err := loadUnits(root, cfg)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "a.js", units[0].Path)
	assert.Equal(t, "/// @class A\n", units[0].Text)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
}

func TestLogDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)

	var report domain.Report
	report.Add(
		domain.Warn(domain.UnresolvedReference, domain.Location{Path: "bar.js", StartLine: 2}, "unresolved reference \"@Foo\" in Bar"),
		domain.Warn(domain.OrphanParent, domain.Location{Path: "a.js", StartLine: 7}, "parent missing"),
	)
	logDiagnostics(log, report)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "level=WARN")
	assert.Contains(t, lines[0], "kind=unresolved-reference")
	assert.Contains(t, lines[0], "location=bar.js:2")
	assert.Contains(t, lines[1], "kind=orphan-parent")
}

func TestWriteCacheStatus(t *testing.T) {
	cfg := config.DefaultConfig()
	st, _, err := store.Open(filepath.Join(t.TempDir(), "cache.db"), cfg)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.PutUnits(map[string]port.CachedUnit{
		"src/b.js": {Hash: "h2"},
		"src/a.js": {Hash: "h1"},
	}))
	require.NoError(t, st.UpdateStats(domain.Stats{Units: 2, Elements: 5, References: 3, Resolved: 2}))

	var buf bytes.Buffer
	require.NoError(t, writeCacheStatus(&buf, st, cfg, true))
	out := buf.String()
	assert.Contains(t, out, "Grammar:     current")
	assert.Contains(t, out, "Files:       2 cached")
	assert.Contains(t, out, "5 elements, 2/3 references resolved")
	assert.Less(t, strings.Index(out, "  src/a.js"), strings.Index(out, "  src/b.js"))

	changed := config.DefaultConfig()
	changed.Grammar.Prefix = "##"
	buf.Reset()
	require.NoError(t, writeCacheStatus(&buf, st, changed, false))
	assert.Contains(t, buf.String(), "stale")
	assert.NotContains(t, buf.String(), "src/a.js")
}
