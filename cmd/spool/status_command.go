package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"spool/internal/journal"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recently processed jobs from the local journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg.Paths.LogDir)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No jobs recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					record.JobID,
					record.ContentItemID,
					record.Status,
					record.Stage,
					formatTimestamp(record.UpdatedAt),
					statusDetail(record),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"JOB", "ITEM", "STATUS", "STAGE", "UPDATED", "DETAIL"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show")
	return cmd
}

func statusDetail(record journal.Record) string {
	switch record.Status {
	case journal.StatusFailed:
		return truncate(record.ErrorMessage, 60)
	case journal.StatusComplete:
		return truncate(record.ManifestURL, 60)
	default:
		return truncate(record.Message, 60)
	}
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
