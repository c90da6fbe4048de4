package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"qbank/internal/domain"
	"qbank/internal/usecase"
)

var (
	queryText string
	queryTopK int
	queryJSON bool

	askText string
	askTopK int
	askJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Find the stored questions closest to a query",
	Long: `Search the question bank by meaning rather than keywords.

Examples:
  qbank query -q "বাংলাদেশের রাজধানী কোথায়"
  qbank query -q "পানির সংকেত" --k 10 --json`,
	RunE: runQuery,
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from the closest stored question",
	Long: `Search the question bank and print the answer of the best match, followed
by the runners-up.

Examples:
  qbank ask -q "বাংলাদেশের রাজধানী কোথায়"`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askText, "query", "q", "", "question (required)")
	askCmd.Flags().IntVarP(&askTopK, "k", "k", 0, "number of results including the match (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	engine, _, err := openEngine(cmd.Context(), cmd.ErrOrStderr(), usecase.InitOptions{})
	if err != nil {
		return err
	}

	k := GetConfig().Retrieve.DefaultK
	if queryTopK > 0 {
		k = queryTopK
	}

	results, err := engine.Search(cmd.Context(), queryText, k)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		return writeJSON(out, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d results for: %s\n", len(results), queryText)
	for _, r := range results {
		printResult(out, r, true)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	engine, _, err := openEngine(cmd.Context(), cmd.ErrOrStderr(), usecase.InitOptions{})
	if err != nil {
		return err
	}

	k := GetConfig().Retrieve.AskK
	if askTopK > 0 {
		k = askTopK
	}

	ans, err := engine.Ask(cmd.Context(), askText, k)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return writeJSON(out, ans)
	}
	fmt.Fprintf(out, "Answer: %s\n", orDash(ans.Answer))
	if ans.Match != nil {
		fmt.Fprintf(out, "\nMatched question (similarity %.3f):\n", ans.Match.SimilarityScore)
		printResult(out, *ans.Match, false)
	}
	if len(ans.Alternatives) > 0 {
		fmt.Fprintf(out, "\nAlternatives:\n")
		for _, r := range ans.Alternatives {
			fmt.Fprintf(out, "  [%d] %.3f  %s  (%s)\n", r.Rank, r.SimilarityScore, r.Question, orDash(r.AnswerText))
		}
	}
	return nil
}

// printResult prints one search hit with its options.
func printResult(w io.Writer, r domain.ResultRecord, header bool) {
	if header {
		fmt.Fprintf(w, "\n--- [%d] similarity %.3f (distance %.3f) ---\n", r.Rank, r.SimilarityScore, r.Distance)
	}
	fmt.Fprintln(w, r.Question)
	for i, opt := range r.Options() {
		if opt != nil {
			fmt.Fprintf(w, "  %d. %s\n", i+1, *opt)
		}
	}
	fmt.Fprintf(w, "Answer: %s\n", orDash(r.AnswerText))
	if r.Explanation != nil && *r.Explanation != "" {
		fmt.Fprintf(w, "Explanation: %s\n", truncate(*r.Explanation, 100))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func orDash(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "-"
	}
	return *s
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
