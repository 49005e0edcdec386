package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"revtrack/internal/review"
	"revtrack/internal/reviewstore"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var recent int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *reviewstore.Store) error {
				stats, err := store.Stats(ctx.commandCtx(cmd), recent)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				c := stats.Counts
				fmt.Fprintf(out, "Store size: %s (WAL %s, %s free)\n",
					formatBytes(stats.DBBytes), formatBytes(stats.WALBytes), formatBytes(stats.FreeBytes))
				fmt.Fprintf(out, "Schema version: %d (latest %d)\n", stats.Schema.Version, stats.Schema.Latest)
				fmt.Fprintf(out, "Places %d, aliases %d, reviews %d (%d soft-deleted), sessions %d, history rows %d, checkpoints %d\n",
					c.Places, c.Aliases, c.Reviews, c.DeletedReviews, c.Sessions, c.History, c.Checkpoints)

				rows := make([][]string, 0, len(stats.Places))
				for _, p := range stats.Places {
					rows = append(rows, []string{
						p.PlaceID, orDash(p.Name),
						strconv.FormatInt(p.ActiveReviews, 10),
						strconv.FormatInt(p.DeletedReviews, 10),
						strconv.FormatInt(p.Sessions, 10),
						formatAgo(p.LastSessionAt),
					})
				}
				renderTable(out, "Places", []column{
					col("Place"), col("Name"), numCol("Active"), numCol("Deleted"), numCol("Sessions"), col("Last session"),
				}, rows)
				if len(stats.RecentSessions) > 0 {
					renderSessions(cmd, "Recent sessions", stats.RecentSessions)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 10, "Number of recent sessions to include")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newPlacesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "places",
		Short: "List tracked places",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *reviewstore.Store) error {
				places, err := store.ListPlaces(ctx.commandCtx(cmd))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, places)
				}
				rows := make([][]string, 0, len(places))
				for _, p := range places {
					rows = append(rows, []string{
						p.PlaceID, orDash(p.Name), strconv.Itoa(p.ReviewCount), formatAgo(p.LastSessionAt), p.CanonicalURL,
					})
				}
				renderTable(cmd.OutOrStdout(), "", []column{
					col("Place"), col("Name"), numCol("Reviews"), col("Last session"), col("URL"),
				}, rows)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.AddCommand(newPlacesPurgeCommand(ctx))
	return cmd
}

func newPlacesPurgeCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge <place>",
		Short: "Remove a place with its aliases, reviews, history, sessions and checkpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			placeID := args[0]
			return ctx.withStore(func(store *reviewstore.Store) error {
				runCtx := ctx.commandCtx(cmd)
				preview, err := store.PurgePlace(runCtx, placeID, true)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Place %s: %d aliases, %d reviews, %d history rows, %d sessions, %d checkpoints\n",
					placeID, preview.Aliases, preview.Reviews, preview.History, preview.Sessions, preview.Checkpoints)
				if dryRun {
					fmt.Fprintln(out, "Dry run: nothing removed")
					return nil
				}
				if err := confirm(cmd, yes, fmt.Sprintf("Permanently remove place %s?", placeID)); err != nil {
					return err
				}
				if _, err := store.PurgePlace(runCtx, placeID, false); err != nil {
					return err
				}
				fmt.Fprintf(out, "Purged place %s\n", placeID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be removed without removing it")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var placeID string
	var state string
	var limit int
	var failAbandoned time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List collection and administrative sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *reviewstore.Store) error {
				runCtx := ctx.commandCtx(cmd)
				if failAbandoned > 0 {
					n, err := store.FailAbandonedSessions(runCtx, failAbandoned)
					if err != nil {
						return err
					}
					if !asJSON {
						fmt.Fprintf(cmd.OutOrStdout(), "Marked %d abandoned sessions as failed\n", n)
					}
				}
				sessions, err := store.ListSessions(runCtx, reviewstore.SessionFilter{
					PlaceID: placeID,
					State:   review.SessionState(state),
					Limit:   limit,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, sessions)
				}
				renderSessions(cmd, "", sessions)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&placeID, "place", "", "Only sessions of this place")
	cmd.Flags().StringVar(&state, "state", "", "Only sessions in this state (open, running, closed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum sessions to list (0 for all)")
	cmd.Flags().DurationVar(&failAbandoned, "fail-abandoned", 0, "First mark unfinished sessions older than this as failed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func renderSessions(cmd *cobra.Command, title string, sessions []review.ScrapeSession) {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		c := s.Counts
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10), s.PlaceID, string(s.Kind), string(s.Mode), string(s.State), orDash(string(s.StopReason)),
			strconv.Itoa(c.New), strconv.Itoa(c.Updated), strconv.Itoa(c.Restored), strconv.Itoa(c.Unchanged), strconv.Itoa(c.SoftDeleted),
			formatWhen(s.StartedAt), s.Duration().Round(time.Millisecond).String(),
		})
	}
	renderTable(cmd.OutOrStdout(), title, []column{
		numCol("ID"), col("Place"), col("Kind"), col("Mode"), col("State"), col("Stop"),
		numCol("New"), numCol("Upd"), numCol("Rest"), numCol("Same"), numCol("Del"),
		col("Started"), col("Duration"),
	}, rows)
}
