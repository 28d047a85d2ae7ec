package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/numaken/genpost-sub001/internal/jobs/cleanup"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.stores.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", rt.stores.Driver)
			return nil
		},
	}
}

func cleanupIntentsCmd(opts *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup-intents",
		Short: "Expire checkout intents that never completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if olderThan <= 0 {
				olderThan = rt.cfg.Checkout.IntentTTL
			}
			expired, err := cleanup.NewIntentCleanupJob(rt.stores.Intents, olderThan, rt.log.Named("cleanup")).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d pending intents\n", expired)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age after which a pending intent expires (default checkout.intent_ttl)")

	return cmd
}
