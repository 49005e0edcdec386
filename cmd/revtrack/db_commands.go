package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"revtrack/internal/preflight"
	"revtrack/internal/reviewstore"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Store maintenance",
	}
	cmd.AddCommand(newDBHealthCommand(ctx))
	cmd.AddCommand(newDBVacuumCommand(ctx))
	return cmd
}

func newDBHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check store integrity, schema and target readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := ctx.commandCtx(cmd)
			checks := preflight.RunAll(runCtx, ctx.configValue())
			return ctx.withStore(func(store *reviewstore.Store) error {
				report, err := store.CheckHealth(runCtx)
				if err != nil {
					return err
				}
				healthy := report.Healthy() && len(preflight.Failed(checks)) == 0
				if asJSON {
					if err := writeJSON(cmd, struct {
						Store     reviewstore.HealthReport `json:"store"`
						Preflight []preflight.Result       `json:"preflight"`
						Healthy   bool                     `json:"healthy"`
					}{report, checks, healthy}); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Store:        %s\n", report.DBPath)
					fmt.Fprintf(out, "Exists:       %s\n", yesNo(report.DatabaseExists))
					fmt.Fprintf(out, "Readable:     %s\n", yesNo(report.Readable))
					fmt.Fprintf(out, "Integrity:    %s\n", healthLine(report.IntegrityOK, report.IntegrityError))
					fmt.Fprintf(out, "Schema:       %d of %d (dirty: %s)\n", report.Schema.Version, report.Schema.Latest, yesNo(report.Schema.Dirty))
					if len(report.MissingTables) > 0 {
						fmt.Fprintf(out, "Missing:      %s\n", strings.Join(report.MissingTables, ", "))
					}
					if report.Error != "" {
						fmt.Fprintf(out, "Error:        %s\n", report.Error)
					}
					rows := make([][]string, 0, len(checks))
					for _, c := range checks {
						rows = append(rows, []string{c.Name, healthLine(c.Passed, ""), c.Detail})
					}
					renderTable(out, "Preflight", []column{col("Check"), col("Status"), col("Detail")}, rows)
				}
				if !healthy {
					return errors.New("store is not healthy")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func healthLine(ok bool, detail string) string {
	if ok {
		return "ok"
	}
	if detail != "" {
		return "FAILED: " + detail
	}
	return "FAILED"
}

func newDBVacuumCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the store file and truncate the write-ahead log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *reviewstore.Store) error {
				runCtx := ctx.commandCtx(cmd)
				before, err := store.Stats(runCtx, 0)
				if err != nil {
					return err
				}
				if err := store.Vacuum(runCtx); err != nil {
					return err
				}
				after, err := store.Stats(runCtx, 0)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Vacuumed %s: %s -> %s\n",
					store.Path(), formatBytes(before.DBBytes+before.WALBytes), formatBytes(after.DBBytes+after.WALBytes))
				return nil
			})
		},
	}
}
