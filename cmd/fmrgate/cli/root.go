package cli

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	appVersion string // set in Execute, advertised by serve and mcp
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fmrgate",
		Short: "MIADP subproject registry gateway for FMR Watch",
		Long: `fmrgate: key-based access to MIADP subproject records for the FMR Watch integration.

It imports the registry's CSV export into a relational store, serves the records
over a REST API guarded by API keys, and exposes the same data to AI agents over MCP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./fmrgate.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the SQLite store (default: ~/.fmrgate)")
	cmd.PersistentFlags().Bool("dev", false, "Development mode (debug logging)")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	viper.BindPFlag("log.dev", cmd.PersistentFlags().Lookup("dev"))
	viper.BindPFlag("log.format", cmd.PersistentFlags().Lookup("log-format"))

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("fmrgate")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.fmrgate")
	}

	viper.SetEnvPrefix("FMRGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origins", []string{"*"})
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("server.enable_mcp", true)
	viper.SetDefault("auth.api_key_header", "X-API-Key")
	viper.SetDefault("auth.touch_timeout", "5s")
	viper.SetDefault("import.workers", 4)
	viper.SetDefault("import.delimiter", "comma")
	viper.SetDefault("log.level", "info")
}
