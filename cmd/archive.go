package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recruit-pipeline/service"
)

var archiveOpts service.ArchiveOptions

var archiveCmd = &cobra.Command{
	Use:   "archive-logs",
	Short: "Move old operation logs into the archive table",
	Long: `Move operation logs older than --before-days into the archive table.

Each batch is copied and deleted in one transaction. --before-days is at
least 1 and --batch-size at least 100.

Examples:
  recruit archive-logs --dry-run
  recruit archive-logs --before-days 365 --batch-size 500`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		archiveOpts.Progress = func(archived, eligible int64) {
			fmt.Fprintf(out, "archived %d/%d\n", archived, eligible)
		}
		res, err := a.audit.Archive(ctx, archiveOpts)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d operation logs created before %s are eligible\n", res.Eligible, res.Cutoff.Format("2006-01-02 15:04:05"))
		switch {
		case archiveOpts.DryRun:
			fmt.Fprintln(out, "dry run, nothing archived")
		case res.Eligible > 0:
			fmt.Fprintf(out, "archived %d operation logs\n", res.Archived)
		}
		return nil
	},
}

func init() {
	f := archiveCmd.Flags()
	f.IntVar(&archiveOpts.BeforeDays, "before-days", service.DefaultArchiveBeforeDays, "archive logs older than this many days")
	f.IntVar(&archiveOpts.BatchSize, "batch-size", service.DefaultArchiveBatchSize, "rows moved per transaction")
	f.BoolVar(&archiveOpts.DryRun, "dry-run", false, "only count eligible logs")
	rootCmd.AddCommand(archiveCmd)
}
