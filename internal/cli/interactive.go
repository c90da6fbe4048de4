package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"qbank/internal/domain"
	"qbank/internal/usecase"
)

// interactiveK is the number of results shown per query.
const interactiveK = 5

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"repl"},
	Short:   "Search the question bank from a prompt",
	Long: `Read queries line by line and print the closest questions. Type quit, exit
or q (or send EOF) to leave.`,
	Args: cobra.NoArgs,
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	engine, _, err := openEngine(cmd.Context(), cmd.ErrOrStderr(), usecase.InitOptions{})
	if err != nil {
		return err
	}
	k := interactiveK
	if m, err := engine.MaxNeighbors(); err == nil {
		k = min(k, m)
	}

	fmt.Fprintln(out, "Type your queries (or 'quit' to exit):")
	return repl(cmd, engine, cmd.InOrStdin(), out, k)
}

func repl(cmd *cobra.Command, engine *usecase.Engine, in io.Reader, out io.Writer, k int) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "\nQuery: ")
		if !scanner.Scan() {
			fmt.Fprintln(out, "\nGoodbye!")
			return scanner.Err()
		}

		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		results, err := engine.Search(cmd.Context(), query, k)
		if err != nil {
			if cmd.Context().Err() != nil {
				return err
			}
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		printInteractive(out, query, results)
	}
}

func printInteractive(w io.Writer, query string, results []domain.ResultRecord) {
	fmt.Fprintf(w, "\nResults for: '%s'\n", query)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	for _, r := range results {
		fmt.Fprintf(w, "\nRank %d: %s\n", r.Rank, r.Question)
		fmt.Fprintf(w, "Similarity: %.3f\n", r.SimilarityScore)
		fmt.Fprintf(w, "Answer: %s\n", orDash(r.AnswerText))
		if r.Explanation != nil && *r.Explanation != "" {
			fmt.Fprintf(w, "Explanation: %s\n", truncate(*r.Explanation, 100))
		}
		fmt.Fprintln(w, strings.Repeat("-", 30))
	}
}
