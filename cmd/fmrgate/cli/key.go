package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/miadp/fmrgate/internal/model"
	"github.com/miadp/fmrgate/internal/service"
	"github.com/miadp/fmrgate/internal/store"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long: `Create, list, revoke and reactivate the API keys that FMR Watch and other clients
present in the X-API-Key header. Keys are only ever issued here, never over HTTP.`,
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeySetActiveCmd("revoke", "Deactivate an API key by its prefix", false))
	cmd.AddCommand(newKeySetActiveCmd("activate", "Reactivate a revoked API key by its prefix", true))

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long: `Generate a new API key. The raw key is shown once and cannot be retrieved again.
When stdout is not a terminal only the key itself is printed, so it can be captured
by a script.`,
		Example: `  fmrgate key create --label "FMR Watch production"
  KEY=$(fmrgate key create --label ci)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(cmd, label)
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the key")

	return cmd
}

func runKeyCreate(cmd *cobra.Command, label string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	rawKey, apiKey, err := service.GenerateAPIKey(strings.TrimSpace(label))
	if err != nil {
		return err
	}
	if err := st.CreateAPIKey(ctx, apiKey); err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	out := cmd.OutOrStdout()
	if !isTerminal(out) {
		fmt.Fprintln(out, rawKey)
		return nil
	}

	fmt.Fprintln(out, "API Key created:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Key:    %s\n", rawKey)
	fmt.Fprintf(out, "  Prefix: %s\n", apiKey.KeyPrefix)
	if apiKey.Label != "" {
		fmt.Fprintf(out, "  Label:  %s\n", apiKey.Label)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Save this key now - it cannot be retrieved again.")
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	keys, err := st.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(keys)
	}

	if len(keys) == 0 {
		fmt.Fprintln(out, "No API keys issued. Use 'fmrgate key create' to create one.")
		return nil
	}

	fmt.Fprintf(out, "%-14s %-28s %-7s %-20s\n", "PREFIX", "LABEL", "ACTIVE", "LAST USED")
	fmt.Fprintf(out, "%-14s %-28s %-7s %-20s\n", "------", "-----", "------", "---------")
	for _, k := range keys {
		active := "yes"
		if !k.IsActive {
			active = "no"
		}
		lastUsed := "never"
		if k.LastUsed != nil {
			lastUsed = k.LastUsed.UTC().Format(time.DateTime)
		}
		fmt.Fprintf(out, "%-14s %-28s %-7s %-20s\n", k.KeyPrefix, k.Label, active, lastUsed)
	}

	return nil
}

// ---------- key revoke / activate ----------

func newKeySetActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <prefix>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeySetActive(cmd, args[0], active)
		},
	}
}

func runKeySetActive(cmd *cobra.Command, prefix string, active bool) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	keys, err := st.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	key, err := matchKeyPrefix(keys, prefix)
	if err != nil {
		return err
	}
	if err := st.SetAPIKeyActive(ctx, key.ID, active); err != nil {
		return fmt.Errorf("update api key: %w", err)
	}

	verb := "Revoked"
	if active {
		verb = "Activated"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s API key with prefix %q\n", verb, key.KeyPrefix)
	return nil
}

// matchKeyPrefix finds the single key whose display prefix starts with
// prefix. An ambiguous prefix is an error rather than a guess.
func matchKeyPrefix(keys []model.APIKey, prefix string) (*model.APIKey, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("empty key prefix")
	}
	var matched []*model.APIKey
	for i := range keys {
		if strings.HasPrefix(keys[i].KeyPrefix, prefix) || strings.HasPrefix(prefix, keys[i].KeyPrefix) {
			matched = append(matched, &keys[i])
		}
	}
	switch len(matched) {
	case 0:
		return nil, fmt.Errorf("no API key found with prefix %q: %w", prefix, store.ErrNotFound)
	case 1:
		return matched[0], nil
	default:
		return nil, fmt.Errorf("prefix %q matches %d keys; use a longer prefix", prefix, len(matched))
	}
}
