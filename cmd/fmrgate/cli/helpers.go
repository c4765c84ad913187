package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/miadp/fmrgate/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// resolveDataDir returns the data directory from --data-dir flag,
// FMRGATE_DATA_DIR env var, or ~/.fmrgate as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := viper.GetString("data_dir"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".fmrgate")
}

// databaseDSN returns database.dsn, falling back to DATABASE_URL so an
// existing .env keeps working.
func databaseDSN() string {
	if dsn := viper.GetString("database.dsn"); dsn != "" {
		return dsn
	}
	return os.Getenv("DATABASE_URL")
}

// openStore opens the configured record store. Without a DSN it opens the
// SQLite file in the data directory.
func openStore(ctx context.Context) (*store.Store, error) {
	dsn := databaseDSN()
	driver := viper.GetString("database.driver")
	if dsn == "" && (driver == "" || driver == "sqlite") {
		return store.OpenFile(ctx, resolveDataDir())
	}
	return store.Open(ctx, store.Config{
		Driver:          driver,
		DSN:             dsn,
		MaxOpenConns:    viper.GetInt("database.max_open_conns"),
		MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
	})
}

// newLogger builds the slog logger from log.level, log.format and --dev.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if viper.GetBool("log.dev") {
		level = slog.LevelDebug
	} else {
		switch strings.ToLower(viper.GetString("log.level")) {
		case "debug":
			level = slog.LevelDebug
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(viper.GetString("log.format"), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}

func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Warn("close store", "error", err)
	}
}

func storeLabel(st *store.Store) string {
	if st.DriverName() == "sqlite" && databaseDSN() == "" {
		return fmt.Sprintf("sqlite (%s)", filepath.Join(resolveDataDir(), "fmrgate.db"))
	}
	return st.DriverName()
}
