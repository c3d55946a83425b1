package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkStrict bool

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Report documentation warnings without writing output",
	Long: `Run the full pipeline and print every diagnostic: duplicate symbols,
unresolved or ambiguous references, untagged blocks and orphaned members.
The cache is neither read nor written.

Examples:
  doclink check
  doclink check --strict   # Exit non-zero on any warning (for CI)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "treat warnings as errors")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	path, err := resolveRoot(args)
	if err != nil {
		return err
	}

	cfg := GetConfig()
	log, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}

	builder, err := newBuilder(path, cfg, nil, log)
	if err != nil {
		return err
	}

	units, err := loadUnits(path, cfg)
	if err != nil {
		return err
	}

	result, err := builder.Build(cmd.Context(), units, nil)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	logDiagnostics(log, result.Report)

	printDiagnostics(os.Stdout, result.Report)
	fmt.Printf("%d files, %d elements, %d/%d references resolved, %d warnings\n",
		result.Stats.Units, result.Stats.Elements,
		result.Stats.Resolved, result.Stats.References,
		len(result.Report.Diagnostics))

	return strictCheck(checkStrict, result.Report)
}
