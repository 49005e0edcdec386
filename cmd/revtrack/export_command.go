package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"revtrack/internal/config"
	"revtrack/internal/export"
	"revtrack/internal/fileutil"
	"revtrack/internal/reviewstore"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var output string
	var includeDeleted bool

	cmd := &cobra.Command{
		Use:   "export <place>",
		Short: "Export a place's reviews as JSON or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *reviewstore.Store) error {
				opts := export.Options{PlaceID: args[0], Format: f, IncludeDeleted: includeDeleted}
				exporter := export.New(store)
				runCtx := ctx.commandCtx(cmd)
				if output == "" || output == "-" {
					_, err := exporter.Export(runCtx, cmd.OutOrStdout(), opts)
					return err
				}

				path, err := config.ExpandPath(output)
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				n, err := exporter.Export(runCtx, &buf, opts)
				if err != nil {
					return err
				}
				if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d reviews to %s\n", n, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout when empty)")
	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "Include soft-deleted reviews")
	return cmd
}
