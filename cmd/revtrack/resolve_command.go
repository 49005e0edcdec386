package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"revtrack/internal/reviewstore"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve <url>",
		Short: "Resolve a place URL to its place id, registering it on first sight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *reviewstore.Store) error {
				res, err := ctx.resolver(store).Resolve(ctx.commandCtx(cmd), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, res)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Place ID:      %s\n", res.PlaceID)
				fmt.Fprintf(out, "Canonical URL: %s\n", res.CanonicalURL)
				if res.ResolvedURL != res.CanonicalURL {
					fmt.Fprintf(out, "Resolved URL:  %s\n", res.ResolvedURL)
				}
				if res.Details.Name != "" {
					fmt.Fprintf(out, "Name:          %s\n", res.Details.Name)
				}
				if res.Details.Latitude != nil && res.Details.Longitude != nil {
					fmt.Fprintf(out, "Coordinates:   %s, %s\n",
						strconv.FormatFloat(*res.Details.Latitude, 'f', -1, 64),
						strconv.FormatFloat(*res.Details.Longitude, 'f', -1, 64))
				}
				fmt.Fprintf(out, "New place:     %s\n", yesNo(res.PlaceCreated))
				fmt.Fprintf(out, "New alias:     %s\n", yesNo(res.AliasCreated))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
