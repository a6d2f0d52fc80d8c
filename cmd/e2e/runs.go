package main

import (
	"fmt"
	"strconv"

	"github.com/hairizuanbinnoorazman/security-e2e/testrun"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run history",
	}

	cmd.AddCommand(newRunsListCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var batch, status, caseID, project string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded attempts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			filter := testrun.Filter{
				Batch:   batch,
				CaseID:  caseID,
				Project: project,
				Status:  testrun.Status(status),
				Limit:   limit,
				Offset:  offset,
			}
			if status != "" && !filter.Status.IsValid() {
				return fmt.Errorf("invalid status %q", status)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			h, err := openHistory(cfg, false, newLogger(cfg))
			if err != nil {
				return err
			}
			defer h.Close()

			runs, err := h.runs.List(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if flagJSON {
				printJSON(runs)
				return nil
			}

			headers := []string{"ID", "BATCH", "CASE", "PROJECT", "ATTEMPT", "STATUS", "STARTED AT", "ERROR"}
			var rows [][]string
			for _, r := range runs {
				startedAt := "-"
				if r.StartedAt != nil {
					startedAt = r.StartedAt.Format("2006-01-02 15:04:05")
				}
				rows = append(rows, []string{
					r.ID.String(),
					r.Batch,
					r.CaseID,
					r.Project,
					strconv.Itoa(r.Attempt),
					string(r.Status),
					startedAt,
					truncate(r.Error, 60),
				})
			}
			printTable(headers, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&batch, "batch", "", "Run identifier")
	cmd.Flags().StringVar(&status, "status", "", "Status (pending, running, passed, failed, skipped)")
	cmd.Flags().StringVar(&caseID, "case", "", "Case identifier, e.g. SB-1001")
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset for pagination")
	return cmd
}
