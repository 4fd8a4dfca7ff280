package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"shopcore/internal/domain"
)

func providersCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show or switch the payment providers a shop accepts",
	}

	list := &cobra.Command{
		Use:   "list [shop-id]",
		Short: "List provider settings for a shop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd, open, func(ctx context.Context, s *stores) error {
				settings, err := s.shops.ListProviders(ctx, args[0])
				if err != nil {
					return err
				}
				enabled := make(map[domain.PaymentProvider]bool, len(settings))
				for _, sp := range settings {
					enabled[sp.Provider] = sp.Enabled
				}
				for _, p := range domain.Providers {
					state := "disabled"
					if enabled[p] {
						state = "enabled"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", p, state)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, switchCmd(open, "enable", true), switchCmd(open, "disable", false))
	return cmd
}

func switchCmd(open opener, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [shop-id] [provider]",
		Short: use + " a provider for a shop",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := domain.ParseProvider(args[1])
			if err != nil {
				return err
			}
			return withStores(cmd, open, func(ctx context.Context, s *stores) error {
				if err := s.shops.SetProviderEnabled(ctx, args[0], provider, enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %sd for shop %s\n", provider, use, args[0])
				return nil
			})
		},
	}
}
