package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"doclink/config"
	"doclink/internal/adapter/store"
)

var (
	cacheList  bool
	cacheClear bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache [path]",
	Short: "Show or clear the element cache",
	Long: `Print the state of .doclink/cache.db: schema version, whether it matches
the current grammar, the stats of the last build and, with --list, every
cached file.

Examples:
  doclink cache
  doclink cache --list
  doclink cache --clear    # Force a full re-parse on the next build`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCache,
}

func init() {
	cacheCmd.Flags().BoolVar(&cacheList, "list", false, "list cached files")
	cacheCmd.Flags().BoolVar(&cacheClear, "clear", false, "remove every cached file")
	rootCmd.AddCommand(cacheCmd)
}

func runCache(cmd *cobra.Command, args []string) error {
	path, err := resolveRoot(args)
	if err != nil {
		return err
	}

	dbPath := config.CacheDBPath(path)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No cache found. Run 'doclink build' first.")
		return nil
	}

	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer st.Close()

	if cacheClear {
		if err := st.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("Cache cleared.")
		return nil
	}

	return writeCacheStatus(os.Stdout, st, GetConfig(), cacheList)
}

func writeCacheStatus(w io.Writer, st *store.BoltStore, cfg *config.Config, list bool) error {
	info, err := st.GetSchemaInfo()
	if err != nil {
		return err
	}
	stats, err := st.GetStats()
	if err != nil {
		return err
	}
	paths, err := st.Paths()
	if err != nil {
		return err
	}

	grammar := "current"
	if info.ConfigHash != "" && info.ConfigHash != store.ComputeConfigHash(cfg) {
		grammar = "stale (cleared on next build)"
	}

	fmt.Fprintf(w, "Schema:      v%d (current v%d)\n", info.Version, store.CurrentSchemaVersion)
	fmt.Fprintf(w, "Grammar:     %s\n", grammar)
	fmt.Fprintf(w, "Files:       %d cached\n", len(paths))
	fmt.Fprintf(w, "Last build:  %d files, %d elements, %d/%d references resolved\n",
		stats.Units, stats.Elements, stats.Resolved, stats.References)

	if list {
		for _, p := range paths {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	return nil
}
