package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"doclink/internal/adapter/memstore"
	"doclink/internal/adapter/server"
	"doclink/internal/domain"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Serve a live preview of the documentation",
	Long: `Build the documentation and serve it over HTTP. POST /api/rebuild
re-reads the sources; unchanged files are reused from memory.

Endpoints:
  GET  /                    rendered page
  GET  /api/diagnostics     warnings of the last build
  GET  /api/symbols         symbol table
  GET  /api/symbols/{name}  one symbol with its rendered fragment
  POST /api/rebuild         rebuild from disk
  GET  /health`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides serve.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	path, err := resolveRoot(args)
	if err != nil {
		return err
	}

	cfg := GetConfig()
	log, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}

	// The on-disk cache holds a file lock; a preview must not block builds.
	builder, err := newBuilder(path, cfg, memstore.NewMemoryStore(), log)
	if err != nil {
		return err
	}

	srv := server.NewServer(builder, func(ctx context.Context) ([]domain.SourceUnit, error) {
		return loadUnits(path, cfg)
	}, log)

	ctx := cmd.Context()
	if _, err := srv.Rebuild(ctx); err != nil {
		return fmt.Errorf("initial build failed: %w", err)
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Serve.Addr
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving documentation", "addr", addr, "root", path)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
