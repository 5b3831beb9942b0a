package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "recruit",
	Short: "Recruitment pipeline: applicant intake, interviews, offers and audit",
	Long: `recruit runs the recruitment pipeline service.

  serve         HTTP API for applicants and operators
  worker        delivers interview notifications from RabbitMQ
  sweep-drafts  deletes expired draft applications
  audit-log     pages through the operation log of a running server`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
