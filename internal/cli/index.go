package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"qbank/config"
	"qbank/internal/usecase"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the question bank and save the bundle",
	Long: `Read every CSV file under the data directory, embed each question together
with its explanation, build the nearest-neighbor index and save both to
.qbank/embeddings.db and .qbank/embeddings_index.db.

An existing bundle is reused when neither the corpus nor the embedding
configuration changed.

Examples:
  qbank index                  # Build or refresh the bundle
  qbank index --force          # Always rebuild
  qbank index -d ./data        # Use another data directory`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "rebuild even if the saved bundle is current")
}

func runIndex(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if err := config.EnsureDataDir(GetRootDir()); err != nil {
		return fmt.Errorf("failed to create .qbank directory: %w", err)
	}

	fmt.Fprintf(out, "Scanning %s...\n", GetRootDir())
	start := time.Now()

	engine, res, err := openEngine(cmd.Context(), out, usecase.InitOptions{Rebuild: indexForce})
	if err != nil {
		return err
	}
	stats, err := engine.Stats()
	if err != nil {
		return err
	}

	if res.Built {
		fmt.Fprintf(out, "\nIndexing complete:\n")
	} else {
		fmt.Fprintf(out, "\nBundle is up to date:\n")
	}
	fmt.Fprintf(out, "  Questions:  %d\n", stats.TotalQuestions)
	fmt.Fprintf(out, "  Model:      %s\n", stats.ModelName)
	if stats.EmbeddingDimension != nil {
		fmt.Fprintf(out, "  Dimension:  %d\n", *stats.EmbeddingDimension)
	}
	fmt.Fprintf(out, "  Bundle ID:  %s\n", res.Meta.BundleID)
	fmt.Fprintf(out, "  Elapsed:    %s\n", formatDuration(time.Since(start)))
	fmt.Fprintf(out, "\nBundle stored at: %s\n", GetConfig().BundlePath(GetRootDir()))
	return nil
}
