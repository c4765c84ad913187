package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/miadp/fmrgate/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		format     string
		outputFile string
		baseURL    string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification",
		Long: `Generate the OpenAPI 3.0 document for the HTTP API. The same document is served
at /api/v1/docs by a running server.`,
		Example: `  fmrgate openapi                          # JSON to stdout
  fmrgate openapi --format yaml -o api.yaml
  fmrgate openapi --base-url https://fmr-integration.miadp.ph`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := openapi.Options{
				BaseURL:      baseURL,
				APIKeyHeader: viper.GetString("auth.api_key_header"),
				Version:      versionString(),
			}
			return runOpenAPI(cmd, opts, format, outputFile)
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL to advertise (default http://localhost:8080)")

	return cmd
}

func runOpenAPI(cmd *cobra.Command, opts openapi.Options, format, outputFile string) error {
	doc := openapi.Generate(opts)

	if outputFile == "" {
		return openapi.Write(cmd.OutOrStdout(), doc, format)
	}

	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputFile, err)
	}
	if err := openapi.Write(f, doc, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", outputFile, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", outputFile)
	return nil
}
