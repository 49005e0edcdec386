package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"revtrack/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the newest revtrack log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			path, err := logs.Latest(cfg.Paths.LogDir)
			if err != nil {
				return err
			}
			if path == "" {
				if !cfg.Logging.ToFile {
					return errors.New("file logging is disabled (logging.to_file = false)")
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "No log files in %s yet\n", cfg.Paths.LogDir)
				return nil
			}

			out := cmd.OutOrStdout()
			runCtx := cmd.Context()
			opts := logs.TailOptions{Offset: -1, Limit: lines}
			for {
				result, err := logs.Tail(runCtx, path, opts)
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
				}
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if err != nil {
					return err
				}
				if !follow {
					return nil
				}
				opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: 5 * time.Second}
			}
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	return cmd
}
