package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"qbank/internal/eval"
	"qbank/internal/usecase"
)

var (
	evalFraction float64
	evalSeed     int64
	evalK        int
	evalExamples int
	evalJSON     bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Measure retrieval quality on held-out questions",
	Long: `Hold out a share of the corpus, search for each held-out question using its
own cleaned text, and report Hit@1, Hit@3, Hit@5 and mean reciprocal rank
for the rank at which the question itself comes back.

Examples:
  qbank eval
  qbank eval --fraction 0.1 --seed 7 --examples 3
  qbank eval --json`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().Float64Var(&evalFraction, "fraction", 0, "share of questions to hold out (default from config)")
	evalCmd.Flags().Int64Var(&evalSeed, "seed", 0, "shuffle seed (default from config)")
	evalCmd.Flags().IntVar(&evalK, "k", 0, "results searched per question (default from config)")
	evalCmd.Flags().IntVar(&evalExamples, "examples", -1, "qualitative examples to show (default from config)")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output as JSON")
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	engine, _, err := openEngine(ctx, cmd.ErrOrStderr(), usecase.InitOptions{})
	if err != nil {
		return err
	}
	records, err := engine.Records()
	if err != nil {
		return err
	}
	maxK, err := engine.MaxNeighbors()
	if err != nil {
		return err
	}
	stats, err := engine.Stats()
	if err != nil {
		return err
	}

	opts := eval.Options{
		Fraction: cfg.Eval.TestFraction,
		Seed:     cfg.Eval.Seed,
		K:        cfg.Eval.SearchK,
		Workers:  cfg.Eval.Workers,
	}
	if cmd.Flags().Changed("fraction") {
		opts.Fraction = evalFraction
	}
	if cmd.Flags().Changed("seed") {
		opts.Seed = evalSeed
	}
	if evalK > 0 {
		opts.K = evalK
	}
	opts.K = min(opts.K, maxK)
	numExamples := cfg.Eval.Examples
	if evalExamples >= 0 {
		numExamples = evalExamples
	}
	if !evalJSON {
		opts.Progress = newProgress(cmd.ErrOrStderr())
		fmt.Fprintf(out, "Evaluating %.0f%% of %d questions (k=%d, seed=%d)...\n", opts.Fraction*100, len(records), opts.K, opts.Seed)
	}

	result, err := eval.Evaluate(ctx, engine, records, opts)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	examples, err := eval.Examples(ctx, engine, records, numExamples, opts.Seed)
	if err != nil {
		return fmt.Errorf("failed to collect examples: %w", err)
	}

	report := &eval.Report{Result: result, Examples: examples}
	if evalJSON {
		return writeJSON(out, report)
	}
	return report.Write(out, stats)
}
