package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"qbank/config"
	"qbank/internal/adapter/embedding"
	"qbank/internal/adapter/store"
	"qbank/internal/port"
	"qbank/internal/usecase"
)

func main() {
	dataDir := flag.String("dir", ".", "Path to the data directory")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -dir ./data -q \"query\"")
		fmt.Println("\nTests:")
		fmt.Println("  1. Bundle and provider (model connection, saved vectors)")
		fmt.Println("  2. Semantic similarity (query vs results)")
		fmt.Println("  3. Answer coverage (matches with a resolvable answer)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	bundlePath := cfg.BundlePath(*dataDir)
	if !store.Exists(bundlePath) {
		fmt.Fprintf(os.Stderr, "No bundle at %s - run 'qbank index' first\n", bundlePath)
		os.Exit(1)
	}

	engine := usecase.NewEngine(cfg, bundlePath, func(model string) (port.Embedder, error) {
		return embedding.New(cfg.Embedding, model, nil)
	})
	ctx := context.Background()
	if _, err := engine.Init(ctx, usecase.InitOptions{SkipStaleCheck: true}); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading bundle: %v\n", err)
		os.Exit(1)
	}
	stats, _ := engine.Stats()
	maxK, _ := engine.MaxNeighbors()

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Questions indexed: %d\n", stats.TotalQuestions)
	fmt.Printf("Model: %s (%s)\n", stats.ModelName, cfg.Embedding.Provider)
	if stats.EmbeddingDimension != nil {
		fmt.Printf("Dimension: %d\n", *stats.EmbeddingDimension)
	}
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	k := min(*topK, maxK)
	start := time.Now()
	results, err := engine.Search(ctx, *query, k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	fmt.Printf("Top %d semantic matches (%s):\n\n", len(results), elapsed.Round(time.Millisecond))

	totalScore := 0.0
	answered := 0
	for _, r := range results {
		preview := []rune(r.Question)
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}

		similarity := r.SimilarityScore
		totalScore += similarity

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		answer := "-"
		if r.AnswerText != nil {
			answer = *r.AnswerText
			answered++
		}
		id := "?"
		if r.ID != nil {
			id = fmt.Sprint(*r.ID)
		}

		fmt.Printf("%d. [%s %.3f] #%s\n", r.Rank, rating, similarity, id)
		fmt.Printf("   %s\n", strings.ReplaceAll(string(preview), "\n", " "))
		fmt.Printf("   Answer: %s\n\n", answer)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].SimilarityScore)
	fmt.Printf("  With answer:        %d/%d\n", answered, len(results))

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need a better model or re-indexing")
	}
}
