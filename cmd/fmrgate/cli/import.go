package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/miadp/fmrgate/internal/importer"
	"github.com/miadp/fmrgate/internal/tabular"
)

// exitPartialImport is returned with --strict when any row failed.
const exitPartialImport = 2

func newImportCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a subproject export into the record store",
		Long: `Read a CSV (or other delimited) export of the MIADP subproject registry, normalize
every row and upsert it by Subproject ID. Rows without an ID and rows the store
rejects are reported and skipped; the rest of the file is still imported.

Re-importing the same file is safe: existing records are fully replaced.`,
		Example: `  fmrgate import subprojects.csv
  fmrgate import export.tsv --delimiter tab --workers 8
  fmrgate import subprojects.csv --strict   # exit 2 if any row failed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], strict)
		},
	}

	cmd.Flags().Int("workers", 4, "Number of rows written concurrently")
	cmd.Flags().String("delimiter", "comma", "Field delimiter: comma, tab, semicolon, pipe or a single character")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with status 2 when any row fails")

	viper.BindPFlag("import.workers", cmd.Flags().Lookup("workers"))
	viper.BindPFlag("import.delimiter", cmd.Flags().Lookup("delimiter"))

	return cmd
}

func runImport(cmd *cobra.Command, path string, strict bool) error {
	logger := newLogger(os.Stderr)

	delim, err := tabular.ParseDelimiter(viper.GetString("import.delimiter"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(st, logger)

	pipeline := importer.New(st, logger,
		importer.WithWorkers(viper.GetInt("import.workers")),
		importer.WithSourceOptions(tabular.Options{Delimiter: delim}),
	)

	res, err := pipeline.ImportFile(ctx, path)
	if errors.Is(err, importer.ErrSourceUnreadable) {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d of %d rows into %s (%s)\n", res.Succeeded, res.Total, storeLabel(st), res.Duration.Round(time.Millisecond))
	if res.Failed > 0 {
		fmt.Fprintf(out, "  failed:  %d\n", res.Failed)
		for _, f := range res.Failures {
			code := f.Code
			if code == "" {
				code = "(no Subproject ID)"
			}
			fmt.Fprintf(out, "    row %d %s: %v\n", f.Row, code, f.Err)
		}
	}
	if res.Skipped > 0 {
		fmt.Fprintf(out, "  skipped: %d\n", res.Skipped)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("import interrupted: %w", err)
		}
		return err
	}
	if strict && res.Partial() {
		return &exitError{
			code: exitPartialImport,
			err:  fmt.Errorf("import incomplete: %d failed, %d skipped", res.Failed, res.Skipped),
		}
	}
	return nil
}
