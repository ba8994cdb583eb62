package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	sdk "github.com/tamaskk/foodybackend-sub000/sdk/go"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	APIKey  string
	Format  string // "json" | "text"
	Timeout time.Duration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewRootCommand creates the root command for progressctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "progressctl",
		Short: "Administer a progression server",
		Long:  "Inspect users, record actions, resync counters and read leaderboards of a running progression server.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("PROGRESSION_URL", "http://localhost:8080/api"), "API base URL (env PROGRESSION_URL)")
	cmd.PersistentFlags().StringVar(&opts.APIKey, "api-key", os.Getenv("PROGRESSION_API_KEY"), "API key (env PROGRESSION_API_KEY)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "request timeout")

	cmd.AddCommand(newRegisterCommand(opts))
	cmd.AddCommand(newProgressCommand(opts))
	cmd.AddCommand(newNotificationsCommand(opts))
	cmd.AddCommand(newRecordCommand(opts))
	cmd.AddCommand(newSetCommand(opts))
	cmd.AddCommand(newResyncCommand(opts))
	cmd.AddCommand(newRecalcLevelCommand(opts))
	cmd.AddCommand(newLeaderboardCommand(opts))
	cmd.AddCommand(newCatalogCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newHealthCommand(opts))

	return cmd
}

func (o *RootOptions) client() (*sdk.Client, error) {
	return sdk.NewClient(o.Server, sdk.WithAPIKey(o.APIKey))
}

// call runs fn with a configured client under the request timeout.
func (o *RootOptions) call(cmd *cobra.Command, fn func(ctx context.Context, c *sdk.Client) error) error {
	c, err := o.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), o.Timeout)
	defer cancel()
	return fn(ctx, c)
}
