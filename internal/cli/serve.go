package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"qbank/internal/server"
	"qbank/internal/usecase"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API over HTTP",
	Long: `Start the HTTP API. The listener opens immediately; search endpoints answer
503 until the bundle has been loaded or built, and /health/ready reports
readiness. A failed initialization stops the server.

Endpoints:
  GET  /search?query=...&k=5
  GET  /ask?query=...&k=3
  POST /chat {"message": "...", "k": 3}
  GET  /stats
  GET  /health, /health/ready

Examples:
  qbank serve
  qbank serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	log := GetLogger()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, _ := newEngine(nil)
	handler := server.NewRouter(server.NewHandler(engine, cfg.Retrieve, log), cfg.Server, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, addr, handler, log, nil)
	})
	g.Go(func() error {
		if _, err := engine.Init(gctx, usecase.InitOptions{}); err != nil {
			if gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to initialize engine: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}
