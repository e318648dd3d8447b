package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"propshare/internal/journal"
	"propshare/internal/platform/config"
	"propshare/internal/platform/redis"
	"propshare/internal/relay"
)

func projectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projection",
		Short: "Inspect or rebuild the Redis voting-power projection",
	}
	cmd.AddCommand(projectionTopCmd())
	cmd.AddCommand(projectionCatchUpCmd())
	return cmd
}

func projectionTopCmd() *cobra.Command {
	var n int64
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the wallets with the most voting power",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projection, closeFn, err := openProjection(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			holders, err := projection.TopHolders(cmd.Context(), n)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WALLET\tVOTING_POWER")
			for _, h := range holders {
				fmt.Fprintf(tw, "%s\t%d\n", h.Wallet, h.VotingPower)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int64Var(&n, "n", 10, "Number of wallets")
	return cmd
}

func projectionCatchUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catch-up",
		Short: "Apply unseen journal records, rebuilding a stale projection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projection, closeFn, err := openProjection(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			return withJournal(cmd.Context(), func(store journal.Store) error {
				n, err := relay.CatchUp(cmd.Context(), store, projection)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d records\n", n)
				return nil
			})
		},
	}
}

func openProjection(cmd *cobra.Command) (*relay.RedisProjection, func(), error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Redis.URL == "" {
		return nil, nil, fmt.Errorf("REDIS_URL is required")
	}
	rdb, err := redis.New(cmd.Context(), cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return relay.NewRedisProjection(rdb.Client), func() { _ = rdb.Close() }, nil
}
