package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep-drafts",
	Short: "Delete draft applications whose upload window has expired",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		intake, err := a.intake(ctx)
		if err != nil {
			return err
		}
		n, err := intake.SweepExpiredDrafts(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired drafts\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
