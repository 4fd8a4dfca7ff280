package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shopcore/internal/auth"
	"shopcore/internal/config"
)

func migrateCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Schema migration commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd, open, func(ctx context.Context, s *stores) error {
				version, dirty, err := s.schemaVersion(ctx)
				if err != nil {
					return err
				}
				state := "clean"
				if dirty {
					state = "dirty"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (%s)\n", version, state)
				return nil
			})
		},
	})
	return cmd
}

func tokenCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer tokens for local testing",
	}
	issue := &cobra.Command{
		Use:   "issue [user-id]",
		Short: "Sign a token with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			v, err := auth.NewTokenVerifier(cfg.JWTSecret)
			if err != nil {
				return err
			}
			tok, err := v.Issue(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	issue.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	cmd.AddCommand(issue)
	return cmd
}
