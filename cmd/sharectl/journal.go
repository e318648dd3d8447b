package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"propshare/internal/journal"
	journalstore "propshare/internal/journal/store"
	"propshare/internal/ledger"
	"propshare/internal/platform/config"
)

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the ledger journal in Postgres",
	}
	cmd.AddCommand(journalListCmd())
	cmd.AddCommand(journalVerifyCmd())
	cmd.AddCommand(journalSnapshotCmd())
	return cmd
}

func journalListCmd() *cobra.Command {
	var (
		after      uint64
		limit      int
		outputJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal records after a sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(store journal.Store) error {
				return listRecords(cmd.Context(), cmd.OutOrStdout(), store, after, limit, outputJSON)
			})
		},
	}
	cmd.Flags().Uint64Var(&after, "after", 0, "Only records with a greater sequence")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to print")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print one JSON record per line")
	return cmd
}

func journalVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Replay the journal and check the ledger invariants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(store journal.Store) error {
				return verifyJournal(cmd.Context(), cmd.OutOrStdout(), store)
			})
		},
	}
}

func journalSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Replay the journal and print the resulting ledger as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(store journal.Store) error {
				state, _, err := replay(cmd.Context(), store)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(state.Snapshot())
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply journal schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			db, err := journalstore.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := journalstore.Migrate(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", n)
			return nil
		},
	}
}

// withJournal opens the Postgres journal named by DATABASE_URL.
func withJournal(ctx context.Context, fn func(journal.Store) error) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required; the in-memory journal lives only inside the server")
	}
	db, err := journalstore.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(journalstore.NewPostgres(db, journalstore.WithTxTimeout(cfg.Database.TxTimeout)))
}

func listRecords(ctx context.Context, w io.Writer, store journal.Store, after uint64, limit int, outputJSON bool) error {
	records, err := store.ListAfter(ctx, after, limit)
	if err != nil {
		return err
	}
	if outputJSON {
		enc := json.NewEncoder(w)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTYPE\tAGGREGATE\tCALLER\tOCCURRED_AT")
	for _, rec := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			rec.Sequence, rec.Type, rec.AggregateID, rec.Caller, rec.OccurredAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return tw.Flush()
}

func replay(ctx context.Context, store journal.Store) (*ledger.State, uint64, error) {
	state := ledger.New()
	last, err := journal.Replay(ctx, store, state)
	if err != nil {
		return nil, last, err
	}
	return state, last, nil
}

func verifyJournal(ctx context.Context, w io.Writer, store journal.Store) error {
	state, last, err := replay(ctx, store)
	if err != nil {
		return fmt.Errorf("replay stopped after sequence %d: %w", last, err)
	}
	if err := state.CheckInvariants(); err != nil {
		return fmt.Errorf("ledger invariants broken at sequence %d: %w", last, err)
	}

	snap := state.Snapshot()
	fmt.Fprintf(w, "journal ok: %d records, %d properties, %d live tokens, paused=%t\n",
		last, len(snap.Properties), len(snap.Tokens), snap.Paused)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROPERTY\tNAME\tMINTED\tTOTAL\tCAP\tACTIVE")
	for _, id := range slices.Sorted(maps.Keys(snap.Properties)) {
		p := snap.Properties[id]
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%t\n",
			p.ID, p.Name, snap.Minted[p.ID], p.TotalShares, p.MaxHolding(), p.Active)
	}
	return tw.Flush()
}
