package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/presentation/tui"
	httpAdapter "github.com/aretw0/canopy/pkg/adapters/http"
	mcpAdapter "github.com/aretw0/canopy/pkg/adapters/mcp"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var serveCmd = &cobra.Command{
	Use:   "serve <file>",
	Short: "Serve a tree over HTTP (and optionally MCP)",
	Long: `Loads a tree data file and exposes it as a JSON API with an SSE event stream.
State is persisted to the session store after every change and resumed on start.`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("session", "", "Session ID to resume and persist (default: a new UUID)")
	serveCmd.Flags().String("children-dir", "", "Directory of <value>.yaml files resolving lazy nodes")
	serveCmd.Flags().Bool("metrics", true, "Expose Prometheus metrics on /metrics")
	serveCmd.Flags().Bool("mcp", false, "Also serve the MCP tools over SSE")
	serveCmd.Flags().Int("mcp-port", 8081, "Port for the MCP SSE server")
	serveCmd.Flags().Bool("stdio", false, "Serve MCP over stdio instead of HTTP")
}

func runServe(cmd *cobra.Command, args []string) error {
	childrenDir, _ := cmd.Flags().GetString("children-dir")
	stdio, _ := cmd.Flags().GetBool("stdio")
	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)
	name := args[0]

	tree, err := openTree(name, childrenDir,
		canopy.WithContext(ctx),
		canopy.WithHooks(observability.Merge(observability.LogHooks(logger), metrics.Hooks(name))),
	)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	defer tree.Close()

	mgr, closeStore := openSessions(cfg)
	defer closeStore()
	if _, err := mgr.Resume(ctx, sessionID, tree); err != nil && !errors.Is(err, domain.ErrSnapshotNotFound) {
		return err
	}
	unbind := mgr.Bind(ctx, sessionID, tree)
	defer unbind()
	logger.Info("Session ready", "session_id", sessionID, "backend", cfg.Session.Backend)

	mcpServer := mcpAdapter.NewServer(tree, logger)
	if stdio {
		// Stdout carries JSON-RPC; everything else goes to stderr.
		return mcpServer.ServeStdio()
	}
	if cfg.Serve.MCP {
		go func() {
			if err := mcpServer.ServeSSE(ctx, cfg.Serve.MCPPort); err != nil {
				logger.Error("MCP server stopped", "err", err)
			}
		}()
	}

	mux := http.NewServeMux()
	if cfg.Serve.Metrics {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", httpAdapter.NewHandler(ctx, tree, httpAdapter.WithLogger(logger)))

	srv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if term.IsTerminal(int(os.Stderr.Fd())) {
		tui.PrintBanner(os.Stderr, canopy.Version)
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting canopy server", "addr", srv.Addr, "file", name)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("failed to close server: %w", err)
			}
		}
		return nil
	}
}
