package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"qbank/internal/adapter/store"
	"qbank/internal/usecase"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show bundle statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := GetConfig().BundlePath(GetRootDir())
	if !store.Exists(path) {
		return fmt.Errorf("no bundle found at %s. Run 'qbank index' first", path)
	}

	engine, _, err := openEngine(cmd.Context(), cmd.ErrOrStderr(), usecase.InitOptions{SkipStaleCheck: true})
	if err != nil {
		return err
	}
	stats, err := engine.Stats()
	if err != nil {
		return err
	}
	meta, err := engine.Meta()
	if err != nil {
		return err
	}

	if statsJSON {
		return writeJSON(out, stats)
	}
	fmt.Fprintf(out, "Total questions:     %d\n", stats.TotalQuestions)
	fmt.Fprintf(out, "Model:               %s\n", stats.ModelName)
	if stats.EmbeddingDimension != nil {
		fmt.Fprintf(out, "Embedding dimension: %d\n", *stats.EmbeddingDimension)
	}
	fmt.Fprintf(out, "Has embeddings:      %t\n", stats.HasEmbeddings)
	fmt.Fprintf(out, "Has index:           %t\n", stats.HasIndex)
	fmt.Fprintf(out, "Neighbor cap:        %d\n", meta.MaxNeighbors)
	fmt.Fprintf(out, "Bundle ID:           %s\n", meta.BundleID)
	fmt.Fprintf(out, "Created:             %s\n", meta.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Path:                %s\n", path)
	return nil
}
