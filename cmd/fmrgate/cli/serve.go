package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/miadp/fmrgate/internal/server"
	"github.com/miadp/fmrgate/internal/service"
)

const banner = `
  __                         _
 / _|_ __ ___  _ __ __ _  __ _| |_ ___
| |_| '_ ' _ \| '__/ _' |/ _' | __/ _ \
|  _| | | | | | | | (_| | (_| | ||  __/
|_| |_| |_| |_|_|  \__, |\__,_|\__\___|
                   |___/
`

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the HTTP server that exposes the subproject records to API key holders.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().String("base-url", "", "Public base URL advertised in the OpenAPI document")
	cmd.Flags().Bool("no-mcp", false, "Do not mount the MCP endpoint at /mcp")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("server.base_url", cmd.Flags().Lookup("base-url"))

	return cmd
}

func runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := newLogger(os.Stderr)

	st, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(st, logger)
	logger.Info("record store ready", "driver", st.DriverName())

	authSvc := service.NewAuthService(st, logger,
		service.WithTouchTimeout(viper.GetDuration("auth.touch_timeout")),
	)

	keys, err := st.ListAPIKeys(ctx)
	if err != nil {
		logger.Warn("failed to list api keys", "error", err)
	} else if len(keys) == 0 {
		logger.Warn("no API keys issued yet - run: fmrgate key create --label <client>")
	}

	noMCP, _ := cmd.Flags().GetBool("no-mcp")
	srvCfg := server.DefaultConfig()
	srvCfg.Host = viper.GetString("server.host")
	srvCfg.Port = viper.GetInt("server.port")
	srvCfg.CORSOrigins = viper.GetStringSlice("server.cors_origins")
	srvCfg.ShutdownTimeout = viper.GetDuration("server.shutdown_timeout")
	srvCfg.APIKeyHeader = viper.GetString("auth.api_key_header")
	srvCfg.BaseURL = viper.GetString("server.base_url")
	srvCfg.Version = versionString()
	srvCfg.EnableMCP = viper.GetBool("server.enable_mcp") && !noMCP

	srv := server.New(srvCfg, st, authSvc, logger)

	out := cmd.OutOrStdout()
	fmt.Fprint(out, banner)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "→ fmrgate %s\n", versionString())
	fmt.Fprintf(out, "→ Listening on http://%s\n", srvCfg.Addr())
	fmt.Fprintf(out, "→ Store:      %s\n", storeLabel(st))
	fmt.Fprintf(out, "→ Docs:       http://%s/docs\n", srvCfg.Addr())
	fmt.Fprintf(out, "→ Health:     http://%s/healthz\n", srvCfg.Addr())
	if srvCfg.EnableMCP {
		fmt.Fprintf(out, "→ MCP:        http://%s/mcp\n", srvCfg.Addr())
	}
	fmt.Fprintln(out)

	return srv.ListenAndServe(ctx)
}
