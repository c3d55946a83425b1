package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var symbolsJSON bool

var symbolsCmd = &cobra.Command{
	Use:   "symbols [path]",
	Short: "List documented symbols",
	Long: `Print the symbol table: every qualified name with its kind, anchor and
declaring location. Names declared more than once list the later
declarations; references resolve to the first.

Examples:
  doclink symbols
  doclink symbols --json | jq '.[].name'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSymbols,
}

func init() {
	symbolsCmd.Flags().BoolVar(&symbolsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(symbolsCmd)
}

func runSymbols(cmd *cobra.Command, args []string) error {
	path, err := resolveRoot(args)
	if err != nil {
		return err
	}

	cfg := GetConfig()
	log, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}

	cache, err := openCache(path, cfg, false, log)
	if err != nil {
		return err
	}
	defer cache.Close()

	builder, err := newBuilder(path, cfg, cache, log)
	if err != nil {
		return err
	}

	units, err := loadUnits(path, cfg)
	if err != nil {
		return err
	}

	result, err := builder.Build(cmd.Context(), units, nil)
	if err != nil {
		return err
	}

	symbols := result.Table.Symbols()
	if symbolsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(symbols)
	}

	if len(symbols) == 0 {
		fmt.Println("No symbols found.")
		return nil
	}

	for _, sym := range symbols {
		fmt.Printf("%-40s %-10s %s\n", sym.Name, sym.Kind, sym.Location)
		for _, d := range sym.Duplicates {
			fmt.Printf("%-40s %-10s %s (duplicate)\n", "", "", d)
		}
	}
	fmt.Printf("\n%d symbols\n", len(symbols))
	return nil
}
