package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"unicode/utf8"

	"doclink/config"
	"doclink/internal/adapter/analyzer"
	"doclink/internal/adapter/doctree"
	"doclink/internal/adapter/linker"
	"doclink/internal/adapter/render"
	"doclink/internal/domain"
	"doclink/internal/port"
)

// Builder runs the documentation pipeline: extraction and tag parsing per
// unit in parallel, then symbol table, resolution, tree and page once every
// unit is done.
type Builder struct {
	cfg       *config.Config
	cache     port.ElementCache
	log       *slog.Logger
	extractor *analyzer.CommentExtractor
	parser    *analyzer.TagParser
	resolver  *linker.Resolver
	renderer  *render.Renderer
	workers   int
}

// Option configures a Builder.
type Option func(*builderOptions)

type builderOptions struct {
	intro []byte
}

// WithIntro sets markdown rendered into the page above the documentation.
func WithIntro(markdown []byte) Option {
	return func(o *builderOptions) {
		o.intro = markdown
	}
}

// NewBuilder validates cfg and compiles the grammar and templates. Any
// problem is returned as a *domain.ConfigError before a unit is touched.
// cache may be nil.
func NewBuilder(cfg *config.Config, cache port.ElementCache, log *slog.Logger, opts ...Option) (*Builder, error) {
	var o builderOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sections, err := analyzer.NewSectionParser(cfg.Grammar.Sections)
	if err != nil {
		return nil, err
	}
	parser, err := analyzer.NewTagParser(cfg.Grammar.Tags, analyzer.WithSections(sections))
	if err != nil {
		return nil, err
	}

	renderer, err := render.NewRenderer(cfg.Templates, cfg.Kinds(), render.Options{
		Title: cfg.Output.Title,
		Intro: o.intro,
		Code:  cfg.Grammar.Code,
	})
	if err != nil {
		return nil, err
	}

	marker, _ := utf8.DecodeRuneInString(cfg.Grammar.Marker)

	workers := cfg.Index.Workers
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}

	return &Builder{
		cfg:       cfg,
		cache:     cache,
		log:       log,
		extractor: analyzer.NewCommentExtractor(cfg.Grammar.Prefix),
		parser:    parser,
		resolver:  linker.NewResolver(marker, cfg.Grammar.QualifiedRefs),
		renderer:  renderer,
		workers:   workers,
	}, nil
}

// BuildResult is everything one run produced.
type BuildResult struct {
	Elements []domain.DocElement
	Table    *linker.SymbolTable
	Tree     *doctree.Tree
	HTML     string
	Report   domain.Report
	Stats    domain.Stats
}

type unitResult struct {
	parsed port.CachedUnit
	cached bool
}

// Build processes units in the given order. The order decides which of
// two same-named declarations is canonical; everything else is independent
// of it. progress, if set, is called after each unit from worker goroutines
// one call at a time.
func (b *Builder) Build(ctx context.Context, units []domain.SourceUnit, progress func(done, total int)) (*BuildResult, error) {
	results := b.extractAll(ctx, units, progress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Barrier: every unit is parsed, nothing below runs per unit.
	res := &BuildResult{}
	fresh := make(map[string]port.CachedUnit)
	for i, r := range results {
		res.Elements = append(res.Elements, r.parsed.Elements...)
		res.Report.Add(r.parsed.Diagnostics...)
		res.Stats.Blocks += r.parsed.Blocks
		if r.cached {
			res.Stats.CachedUnits++
		} else {
			fresh[units[i].Path] = r.parsed
		}
	}
	res.Stats.Units = len(units)
	res.Stats.Elements = len(res.Elements)

	table, diags := linker.Build(res.Elements)
	res.Table = table
	res.Report.Add(diags...)

	resolved, diags := b.resolver.Resolve(table)
	res.Report.Add(diags...)
	res.Stats.References = resolved.References
	res.Stats.Resolved = resolved.Resolved

	tree, diags := doctree.Assemble(table)
	res.Tree = tree
	res.Report.Add(diags...)
	res.Stats.Roots = len(tree.Roots)

	html, err := b.renderer.Page(tree, table)
	if err != nil {
		return nil, err
	}
	res.HTML = html

	b.updateCache(units, fresh, res.Stats)

	b.log.Info("build finished",
		"units", res.Stats.Units,
		"cached", res.Stats.CachedUnits,
		"elements", res.Stats.Elements,
		"references", res.Stats.References,
		"resolved", res.Stats.Resolved,
		"diagnostics", len(res.Report.Diagnostics))

	return res, nil
}

// Renderer exposes the compiled templates, for callers that want
// fragments instead of the page.
func (b *Builder) Renderer() *render.Renderer {
	return b.renderer
}

// extractAll fans units out to the worker pool. Each worker writes only
// its own slot, so the result order is the unit order.
func (b *Builder) extractAll(ctx context.Context, units []domain.SourceUnit, progress func(done, total int)) []unitResult {
	results := make([]unitResult, len(units))
	jobs := make(chan int)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		done   int
		cancel = ctx.Done()
	)

	workers := min(b.workers, max(len(units), 1))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = b.processUnit(units[i])
				if progress != nil {
					mu.Lock()
					done++
					progress(done, len(units))
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for i := range units {
		select {
		case <-cancel:
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

func (b *Builder) processUnit(unit domain.SourceUnit) unitResult {
	hash := ContentHash(unit.Text)

	if b.cache != nil {
		cached, ok, err := b.cache.GetUnit(unit.Path, hash)
		if err != nil {
			b.log.Warn("cache read failed", "path", unit.Path, "error", err)
		} else if ok {
			b.log.Debug("unit unchanged", "path", unit.Path, "elements", len(cached.Elements))
			return unitResult{parsed: cached, cached: true}
		}
	}

	elements, diags, blocks := b.parser.ParseAll(b.extractor.Blocks(unit))
	b.log.Debug("unit parsed", "path", unit.Path, "blocks", blocks, "elements", len(elements))

	return unitResult{parsed: port.CachedUnit{
		Hash:        hash,
		Blocks:      blocks,
		Elements:    elements,
		Diagnostics: diags,
	}}
}

// updateCache stores fresh units and drops entries for units that are
// gone. Cache failures only cost the next build time, so they are logged.
func (b *Builder) updateCache(units []domain.SourceUnit, fresh map[string]port.CachedUnit, stats domain.Stats) {
	if b.cache == nil {
		return
	}
	if err := b.cache.PutUnits(fresh); err != nil {
		b.log.Warn("cache write failed", "error", err)
	}

	keep := make([]string, len(units))
	for i, u := range units {
		keep[i] = u.Path
	}
	if n, err := b.cache.Prune(keep); err != nil {
		b.log.Warn("cache prune failed", "error", err)
	} else if n > 0 {
		b.log.Debug("pruned cache", "removed", n)
	}

	if err := b.cache.UpdateStats(stats); err != nil {
		b.log.Warn("cache stats write failed", "error", err)
	}
}

// ContentHash identifies a unit's text for the element cache.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
