package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func deadLettersCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadletters",
		Short: "Inspect and replay provider callbacks that exhausted their retries",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered callbacks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withStores(cmd, open, func(ctx context.Context, s *stores) error {
				tasks, err := s.webhooks.ListDead(ctx, limit)
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no dead letters")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tPROVIDER\tATTEMPTS\tUPDATED\tLAST ERROR")
				for _, t := range tasks {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", t.ID, t.Provider, t.Attempts, t.UpdatedAt.UTC().Format(time.RFC3339), truncate(t.LastError, 80))
				}
				return w.Flush()
			})
		},
	}
	list.Flags().IntP("limit", "n", 50, "Maximum rows")

	replay := &cobra.Command{
		Use:   "replay [task-id...]",
		Short: "Move dead-lettered callbacks back to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd, open, func(ctx context.Context, s *stores) error {
				for _, id := range args {
					if err := s.webhooks.Requeue(ctx, id); err != nil {
						return fmt.Errorf("requeue %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", id)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, replay)
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
