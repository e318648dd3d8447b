// Command sharectl is the operator CLI for propshare: it issues caller tokens
// and inspects the ledger journal and the voting-power projection.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sharectl",
		Short: "Operate a propshare registry",
		Long: `Operator tooling for the propshare share registry.

Connection settings come from the same environment variables as the server
(JWT_SIGNING_KEY, DATABASE_URL, REDIS_URL, ...).

Examples:
  sharectl token --caller 0x52908400098527886E0F7030069857D2E4169EE7 --ttl 1h
  sharectl journal verify
  sharectl journal list --after 100 --limit 20
  sharectl projection top --n 10
`,
		SilenceUsage: true,
	}

	cmd.AddCommand(tokenCmd())
	cmd.AddCommand(journalCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(projectionCmd())
	return cmd
}
