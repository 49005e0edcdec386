package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"revtrack/internal/reviewstore"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Change history maintenance and queries",
	}
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	cmd.AddCommand(newHistorySessionCommand(ctx))
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int
	var dryRun bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete history rows older than N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("older-than-days") {
				days = ctx.configValue().History.RetentionDays
			}
			return ctx.withStore(func(store *reviewstore.Store) error {
				runCtx := ctx.commandCtx(cmd)
				n, err := store.PruneHistory(runCtx, days, true)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d history rows are older than %d days\n", n, days)
				if dryRun || n == 0 {
					return nil
				}
				if err := confirm(cmd, yes, fmt.Sprintf("Delete %d history rows?", n)); err != nil {
					return err
				}
				deleted, err := store.PruneHistory(runCtx, days, false)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %d history rows\n", deleted)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "older-than-days", 0, "Age threshold in days (defaults to history.retention_days)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only count the rows that would be deleted")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newHistorySessionCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "session <id>",
		Short: "Show every change recorded by one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}
			return ctx.withStore(func(store *reviewstore.Store) error {
				entries, err := store.SessionHistory(ctx.commandCtx(cmd), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, entries)
				}
				renderHistory(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
