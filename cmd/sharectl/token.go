package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	jwttoken "propshare/internal/jwt_token"
	"propshare/internal/platform/config"
	"propshare/pkg/domain"
)

func tokenCmd() *cobra.Command {
	var (
		caller string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token that authenticates as a wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			return issueToken(cmd.OutOrStdout(), cfg, caller, ttl)
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "Wallet address the token asserts (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}

func issueToken(w io.Writer, cfg config.Server, caller string, ttl time.Duration) error {
	addr, err := domain.ParseAddress(caller)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	svc := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	token, err := svc.GenerateCallerToken(addr, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
