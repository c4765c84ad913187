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

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	fmcp "github.com/miadp/fmrgate/internal/mcp"
	"github.com/miadp/fmrgate/internal/server/middleware"
	"github.com/miadp/fmrgate/internal/service"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that lets AI agents browse the imported
subprojects. All tools are read-only. Supports stdio (default) and HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for direct integration with desktop MCP clients.

In HTTP mode, the server listens on the specified port using the Streamable HTTP
transport, and every request must carry a valid API key.`,
		Example: `  fmrgate mcp                              # stdio mode
  fmrgate mcp --transport http --port 3001 # Streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd, transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(cmd *cobra.Command, transport string, port int) error {
	// stdout belongs to the JSON-RPC stream in stdio mode.
	logger := newLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(st, logger)

	mcpSrv := fmcp.NewMCPServer(st, logger, versionString())

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		authSvc := service.NewAuthService(st, logger,
			service.WithTouchTimeout(viper.GetDuration("auth.touch_timeout")),
		)
		defer authSvc.Wait()

		header := viper.GetString("auth.api_key_header")
		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(logger))
		r.Use(middleware.Authenticate(authSvc, header, logger))
		r.Handle("/mcp", mcpSrv.Handler())

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()

		logger.Info("starting MCP HTTP server", "addr", httpSrv.Addr, "endpoint", "/mcp")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mcp listen: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
