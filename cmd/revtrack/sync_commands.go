package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"revtrack/internal/logging"
	"revtrack/internal/preflight"
	"revtrack/internal/reviewstore"
	"revtrack/internal/syncer"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push review changes to downstream targets",
	}
	cmd.AddCommand(newSyncStatusCommand(ctx))
	cmd.AddCommand(newSyncPendingCommand(ctx))
	cmd.AddCommand(newSyncRunCommand(ctx))
	cmd.AddCommand(newSyncResetCommand(ctx))
	return cmd
}

func newSyncStatusCommand(ctx *commandContext) *cobra.Command {
	var placeID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *reviewstore.Store) error {
				checkpoints, err := store.ListCheckpoints(ctx.commandCtx(cmd), placeID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, checkpoints)
				}
				rows := make([][]string, 0, len(checkpoints))
				for _, cp := range checkpoints {
					rows = append(rows, []string{
						cp.PlaceID, cp.Target, strconv.FormatInt(cp.LastSessionID, 10), string(cp.Status),
						strconv.Itoa(cp.AttemptCount), formatAgo(cp.SyncedAt), orDash(cp.LastError),
					})
				}
				renderTable(cmd.OutOrStdout(), "", []column{
					col("Place"), col("Target"), numCol("Session"), col("Status"), numCol("Attempts"), col("Synced"), col("Last error"),
				}, rows)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&placeID, "place", "", "Only checkpoints of this place")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newSyncPendingCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "pending <place> <target>",
		Short: "Show the reviews a target has not received yet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *reviewstore.Store) error {
				delta, err := store.Pending(ctx.commandCtx(cmd), args[0], args[1])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, delta)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d reviews pending for %s after session %d\n", len(delta.Reviews), delta.Target, delta.FromSession)
				rows := make([][]string, 0, len(delta.Reviews))
				for _, r := range delta.Reviews {
					op := syncer.OpUpsert
					if r.Deleted() {
						op = syncer.OpDelete
					}
					rows = append(rows, []string{
						strconv.FormatInt(r.LastSessionID, 10), r.ReviewID, string(op), strconv.FormatInt(r.Version, 10),
					})
				}
				renderTable(out, "", []column{numCol("Session"), col("Review"), col("Op"), numCol("Ver")}, rows)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newSyncRunCommand(ctx *commandContext) *cobra.Command {
	var placeID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync one place, or every place, to the configured targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := ctx.commandCtx(cmd)
			logger := ctx.ensureLogger()
			for _, r := range preflight.Failed(preflight.RunAll(runCtx, ctx.configValue())) {
				logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
					logging.String("check", r.Name),
					logging.String("detail", r.Detail),
					logging.String(logging.FieldImpact, "sync to this target will likely fail"),
				)
			}
			return ctx.withStore(func(store *reviewstore.Store) error {
				runner, err := ctx.syncRunner(store)
				if err != nil {
					return err
				}
				defer runner.Close()

				places := []string{placeID}
				if placeID == "" {
					all, err := store.ListPlaces(runCtx)
					if err != nil {
						return err
					}
					places = places[:0]
					for _, p := range all {
						places = append(places, p.PlaceID)
					}
				}
				results, syncErr := runner.SyncPlaces(runCtx, places)
				if asJSON {
					if err := writeJSON(cmd, results); err != nil {
						return err
					}
				} else {
					renderSyncResults(cmd.OutOrStdout(), results)
				}
				return syncErr
			})
		},
	}
	cmd.Flags().StringVar(&placeID, "place", "", "Only this place")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newSyncResetCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset <place> <target>",
		Short: "Forget a target's checkpoint so the next run re-sends the whole place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirm(cmd, yes, fmt.Sprintf("Reset %s checkpoint for %s?", args[1], args[0])); err != nil {
				return err
			}
			return ctx.withStore(func(store *reviewstore.Store) error {
				if err := store.ResetCheckpoint(ctx.commandCtx(cmd), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint reset for %s/%s\n", args[0], args[1])
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func renderSyncResults(w io.Writer, results []syncer.Result) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		rows = append(rows, []string{
			r.PlaceID, r.Target, strconv.Itoa(r.Upserts), strconv.Itoa(r.Deletes),
			strconv.FormatInt(r.FromSession, 10), strconv.FormatInt(r.ToSession, 10), status,
		})
	}
	renderTable(w, "", []column{
		col("Place"), col("Target"), numCol("Upserts"), numCol("Deletes"), numCol("From"), numCol("To"), col("Status"),
	}, rows)
}
