package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nishad/ptmdb/internal/api"
	"github.com/nishad/ptmdb/internal/search"
	"github.com/spf13/cobra"
)

var (
	serveHost       string
	servePort       int
	serveEnableCORS bool
)

// NewServeCmd creates the serve command.
func NewServeCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only HTTP API",
		Long: `Serve genes, proteins, search and import history as JSON under /api/v1.
Search is available when the search index is enabled in the configuration.`,
		Example: `  ptmdb serve
  ptmdb serve --port 3000 --enable-cors`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(g)
		},
	}

	cmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from server.host)")
	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from server.port)")
	cmd.Flags().BoolVar(&serveEnableCORS, "enable-cors", false, "Enable CORS for web access")

	return cmd
}

func runServe(g *Globals) error {
	out := newPrinter(g)
	cfg := g.Config()

	db, err := g.openDB(false)
	if err != nil {
		return err
	}
	defer db.Close()

	var index *search.Index
	if cfg.IsSearchEnabled() {
		index, err = g.openIndex()
		if err != nil {
			return err
		}
		defer index.Close()
	}

	host, port := cfg.Server.Host, cfg.Server.Port
	if serveHost != "" {
		host = serveHost
	}
	if servePort != 0 {
		port = servePort
	}

	server, err := api.NewServer(api.Config{
		Host:         host,
		Port:         port,
		EnableCORS:   serveEnableCORS,
		DefaultLimit: cfg.Search.DefaultLimit,
	}, db, index)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	out.Info("Database: %s", db.Path())
	if index == nil {
		out.Warning("Search disabled, /api/v1/search answers 503")
	} else {
		out.Info("Index: %s", index.Path())
	}
	out.Success("Server ready at http://%s:%d/api/v1", host, port)

	select {
	case <-sigChan:
		out.Info("Shutting down server...")
	case err := <-serverErr:
		log.Error("server error", "err", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	out.Success("Server stopped gracefully")
	return nil
}
