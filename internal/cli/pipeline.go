package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"doclink/config"
	"doclink/internal/adapter/fs"
	"doclink/internal/adapter/memstore"
	"doclink/internal/adapter/store"
	"doclink/internal/domain"
	"doclink/internal/port"
	"doclink/internal/usecase"
)

// errWarnings is returned in strict mode when a build reported anything.
var errWarnings = errors.New("warnings reported in strict mode")

// newLogger builds the process logger from the logging section.
func newLogger(lc config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if lc.Level != "" {
		if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
			return nil, domain.NewConfigError("logging.level", "unknown level %q", lc.Level)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(lc.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, domain.NewConfigError("logging.format", "unknown format %q, want text or json", lc.Format)
	}
}

// resolveRoot returns the directory a command works on.
func resolveRoot(args []string) (string, error) {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return "", fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", path)
	}
	return path, nil
}

// openCache returns the on-disk element cache, or an in-memory one when
// caching is off. The on-disk cache is migrated or cleared to match cfg.
func openCache(root string, cfg *config.Config, disabled bool, log *slog.Logger) (port.ElementCache, error) {
	if disabled || !cfg.Cache.Enabled {
		return memstore.NewMemoryStore(), nil
	}

	if err := config.EnsureDoclinkDir(root); err != nil {
		return nil, fmt.Errorf("failed to create .doclink directory: %w", err)
	}
	st, migration, err := store.Open(config.CacheDBPath(root), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if migration.NeedsRebuild {
		log.Info("cache cleared", "reason", migration.Reason)
	} else if migration.NeedsMigration {
		log.Debug("cache migrated", "reason", migration.Reason)
	}
	return st, nil
}

// newBuilder compiles the configuration into a builder. The intro file is
// read relative to root.
func newBuilder(root string, cfg *config.Config, cache port.ElementCache, log *slog.Logger) (*usecase.Builder, error) {
	var opts []usecase.Option
	if cfg.Output.Intro != "" {
		path := cfg.Output.Intro
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &domain.ConfigError{Field: "output.intro", Message: "cannot read intro", Err: err}
		}
		opts = append(opts, usecase.WithIntro(data))
	}
	return usecase.NewBuilder(cfg, cache, log, opts...)
}

// loadUnits discovers and reads the source units under root.
func loadUnits(root string, cfg *config.Config) ([]domain.SourceUnit, error) {
	walker := fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes)
	files, err := walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return fs.ReadUnits(files)
}

// logDiagnostics repeats every diagnostic on the logger at warn level.
func logDiagnostics(log *slog.Logger, report domain.Report) {
	for _, d := range report.Diagnostics {
		log.Warn(d.Message, "kind", d.Kind, "location", d.Location.String())
	}
}

func printDiagnostics(w io.Writer, report domain.Report) {
	for _, d := range report.Diagnostics {
		fmt.Fprintln(w, d.String())
	}
}

func strictCheck(strict bool, report domain.Report) error {
	if strict && report.HasWarnings() {
		return fmt.Errorf("%d %w", len(report.Diagnostics), errWarnings)
	}
	return nil
}
