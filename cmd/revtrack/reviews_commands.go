package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"revtrack/internal/review"
	"revtrack/internal/reviewstore"
)

func newReviewsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Inspect and edit stored reviews",
	}
	cmd.AddCommand(newReviewsListCommand(ctx))
	cmd.AddCommand(newReviewsShowCommand(ctx))
	cmd.AddCommand(newReviewsHistoryCommand(ctx))
	cmd.AddCommand(newReviewStatusCommand(ctx, "hide", "Soft-delete a review"))
	cmd.AddCommand(newReviewStatusCommand(ctx, "restore", "Restore a soft-deleted review"))
	return cmd
}

func newReviewsListCommand(ctx *commandContext) *cobra.Command {
	var includeDeleted bool
	var minRating float64
	var limit, offset int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <place>",
		Short: "List reviews of a place, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *reviewstore.Store) error {
				page, err := store.ListReviews(ctx.commandCtx(cmd), reviewstore.ListQuery{
					PlaceID:        args[0],
					IncludeDeleted: includeDeleted,
					MinRating:      minRating,
					Limit:          limit,
					Offset:         offset,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, page)
				}
				rows := make([][]string, 0, len(page.Reviews))
				for _, r := range page.Reviews {
					rows = append(rows, []string{
						r.ReviewID, r.Author, formatRating(r.Rating), orDash(r.RawDate),
						strconv.Itoa(r.Likes), string(r.Status), strconv.FormatInt(r.Version, 10), excerpt(r, 48),
					})
				}
				out := cmd.OutOrStdout()
				renderTable(out, "", []column{
					col("Review"), col("Author"), numCol("Rating"), col("Date"), numCol("Likes"), col("Status"), numCol("Ver"), col("Text"),
				}, rows)
				fmt.Fprintf(out, "Showing %d of %d (offset %d)\n", len(page.Reviews), page.Total, offset)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "Include soft-deleted reviews")
	cmd.Flags().Float64Var(&minRating, "min-rating", 0, "Only reviews rated at least this")
	cmd.Flags().IntVar(&limit, "limit", 50, "Page size (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newReviewsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <place> <review>",
		Short: "Show one review in full",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *reviewstore.Store) error {
				r, err := store.GetReview(ctx.commandCtx(cmd), args[0], args[1])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, r)
				}
				printReview(cmd.OutOrStdout(), *r)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func printReview(w io.Writer, r review.Review) {
	fmt.Fprintf(w, "Review:     %s/%s\n", r.PlaceID, r.ReviewID)
	fmt.Fprintf(w, "Author:     %s\n", orDash(r.Author))
	if r.AuthorURL != "" {
		fmt.Fprintf(w, "Profile:    %s\n", r.AuthorURL)
	}
	fmt.Fprintf(w, "Rating:     %s\n", formatRating(r.Rating))
	fmt.Fprintf(w, "Date:       %s", orDash(r.RawDate))
	if r.ParsedDate != "" {
		fmt.Fprintf(w, " (%s)", r.ParsedDate)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Likes:      %d\n", r.Likes)
	fmt.Fprintf(w, "Status:     %s (version %d, last session %d)\n", r.Status, r.Version, r.LastSessionID)
	fmt.Fprintf(w, "Created:    %s\n", formatWhen(r.CreatedAt))
	fmt.Fprintf(w, "Updated:    %s\n", formatWhen(r.UpdatedAt))
	for _, lang := range slices.Sorted(maps.Keys(r.TextByLanguage)) {
		fmt.Fprintf(w, "Text [%s]:  %s\n", lang, r.TextByLanguage[lang])
	}
	for _, lang := range slices.Sorted(maps.Keys(r.OwnerResponseByLanguage)) {
		fmt.Fprintf(w, "Reply [%s]: %s\n", lang, r.OwnerResponseByLanguage[lang])
	}
	if len(r.ImageURLs) > 0 {
		fmt.Fprintf(w, "Images:     %s\n", strings.Join(r.ImageURLs, "\n            "))
	}
}

func newReviewsHistoryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history <place> <review>",
		Short: "Show the field-level change history of a review",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *reviewstore.Store) error {
				entries, err := store.ReviewHistory(ctx.commandCtx(cmd), args[0], args[1])
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

func renderHistory(w io.Writer, entries []review.HistoryEntry) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.SessionID, 10), formatWhen(e.RecordedAt), string(e.ChangeType), e.FieldName,
			orDash(e.OldValue), orDash(e.NewValue),
		})
	}
	renderTable(w, "", []column{
		numCol("Session"), col("When"), col("Change"), col("Field"), col("Old"), col("New"),
	}, rows)
}

func newReviewStatusCommand(ctx *commandContext, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <place> <review>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *reviewstore.Store) error {
				runCtx := ctx.commandCtx(cmd)
				var (
					r   *review.Review
					err error
				)
				if verb == "hide" {
					r, err = store.SoftDelete(runCtx, args[0], args[1])
				} else {
					r, err = store.Restore(runCtx, args[0], args[1])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Review %s/%s is %s (version %d)\n", r.PlaceID, r.ReviewID, r.Status, r.Version)
				return nil
			})
		},
	}
}
