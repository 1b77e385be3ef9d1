package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Parse a C/C++ project and build the model",
	Long: `Parse a C/C++ project and build its type model.

The index command:
- Discovers sources under source_folders, honoring excludes and file filters
- Tokenizes and extracts every file in parallel
- Names anonymous aggregates and resolves typedef chains
- Applies the configured transformation containers in order
- Computes include relations and declares/uses/contains relationships
- Writes model.json, model_transformed.json and index.db to the output directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		logger.Infof("Indexing project at %s", projectDir)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		indexer, err := index.NewIndexer(cfg, projectDir, logger)
		if err != nil {
			return err
		}
		result, err := indexer.Run(ctx)
		if err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}

		removed, renamed, conflicts := result.Transform.Totals()
		fmt.Println()
		fmt.Printf("Indexing complete!\n")
		fmt.Printf("  Run:         %s\n", result.RunID)
		fmt.Printf("  Files:       %d\n", result.FileCount)
		fmt.Printf("  Entities:    %d\n", result.EntityCount)
		fmt.Printf("  Transforms:  %d removed, %d renamed, %d conflicts\n", removed, renamed, conflicts)
		fmt.Printf("  Diagnostics: %d\n", result.DiagnosticCount)
		for _, k := range diag.Kinds {
			if n := result.Summary.ByKind[k]; n > 0 {
				fmt.Printf("    %-24s %d\n", k, n)
			}
		}
		fmt.Printf("  Duration:    %s\n", result.Duration.Round(time.Millisecond))
		fmt.Printf("  Model:       %s\n", result.ModelPath)
		fmt.Printf("  Transformed: %s\n", result.TransformedPath)
		fmt.Printf("  Database:    %s\n", result.DBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
