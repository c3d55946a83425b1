package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	buildStrict  bool
	buildNoCache bool
	buildOutput  string
)

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Render the documentation page",
	Long: `Extract doc comments from every matching file, resolve cross-references
and write the rendered HTML page (output.path, default docs/index.html).
Unchanged files are reused from the cache in .doclink/cache.db.

Examples:
  doclink build                  # Build the current directory
  doclink build ./src -o api.html
  doclink build --strict         # Exit non-zero on any warning`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildStrict, "strict", false, "treat warnings as errors")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "ignore and do not update the element cache")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "output file (overrides output.path)")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	path, err := resolveRoot(args)
	if err != nil {
		return err
	}

	cfg := GetConfig()
	log, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}

	cache, err := openCache(path, cfg, buildNoCache, log)
	if err != nil {
		return err
	}
	defer cache.Close()

	builder, err := newBuilder(path, cfg, cache, log)
	if err != nil {
		return err
	}

	fmt.Printf("Scanning %s...\n", path)
	units, err := loadUnits(path, cfg)
	if err != nil {
		return err
	}

	var (
		bar   *progressbar.ProgressBar
		barMu sync.Mutex
	)
	progress := func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Extracting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	start := time.Now()
	result, err := builder.Build(cmd.Context(), units, progress)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	logDiagnostics(log, result.Report)

	out := buildOutput
	if out == "" {
		out = cfg.Output.Path
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(path, out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(out, []byte(result.HTML), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if len(result.Report.Diagnostics) > 0 {
		fmt.Printf("\nWarnings:\n")
		printDiagnostics(os.Stdout, result.Report)
	}

	s := result.Stats
	fmt.Printf("\nBuild complete in %s:\n", formatDuration(time.Since(start)))
	fmt.Printf("  Files:       %d (%d unchanged)\n", s.Units, s.CachedUnits)
	fmt.Printf("  Blocks:      %d\n", s.Blocks)
	fmt.Printf("  Elements:    %d (%d top level)\n", s.Elements, s.Roots)
	fmt.Printf("  References:  %d (%d resolved)\n", s.References, s.Resolved)
	fmt.Printf("  Warnings:    %d\n", len(result.Report.Diagnostics))
	fmt.Printf("\nOutput written to: %s\n", out)

	return strictCheck(buildStrict, result.Report)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
