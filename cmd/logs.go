package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"recruit-pipeline/client"
)

var (
	logsPage     int
	logsPageSize int
	logsFilters  client.LogFilters
)

var logsCmd = &cobra.Command{
	Use:   "audit-log",
	Short: "Page through the operation log of a running server",
	Long: `Page through the operation log, newest first.

The server only hands out cursors, so --page walks forward from page 1
until it reaches the requested page.

Examples:
  recruit audit-log --module interview
  recruit audit-log --operator alice --from 2026-03-01 --page 3`,
	RunE: runLogs,
}

func init() {
	f := logsCmd.Flags()
	f.String("server", "http://localhost:8080", "server base URL (RECRUIT_SERVER)")
	f.String("token", "", "operator bearer token (RECRUIT_TOKEN)")
	f.IntVar(&logsPage, "page", 1, "page number")
	f.IntVar(&logsPageSize, "page-size", 30, "rows per page")
	f.StringVar(&logsFilters.Module, "module", "", "filter by module")
	f.StringVar(&logsFilters.Action, "action", "", "filter by action")
	f.StringVar(&logsFilters.Result, "result", "", "filter by result (success|failed)")
	f.StringVar(&logsFilters.Operator, "operator", "", "filter by operator (substring)")
	f.StringVar(&logsFilters.DateFrom, "from", "", "first day, YYYY-MM-DD")
	f.StringVar(&logsFilters.DateTo, "to", "", "last day, YYYY-MM-DD")

	_ = viper.BindPFlag("RECRUIT_SERVER", f.Lookup("server"))
	_ = viper.BindPFlag("RECRUIT_TOKEN", f.Lookup("token"))
	_ = viper.BindEnv("RECRUIT_SERVER")
	_ = viper.BindEnv("RECRUIT_TOKEN")

	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, _ []string) error {
	token := viper.GetString("RECRUIT_TOKEN")
	if token == "" {
		return errors.New("operator token required: pass --token or set RECRUIT_TOKEN")
	}
	c := client.New(viper.GetString("RECRUIT_SERVER"), client.WithOperatorToken(token))

	browser := client.NewAuditLogBrowser(c, logsPageSize)
	browser.SetFilters(logsFilters)
	page, err := browser.SeekPage(cmd.Context(), logsPage)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return errors.New(apiErr.Localized())
		}
		return err
	}

	out := cmd.OutOrStdout()
	if len(page.Results) == 0 {
		fmt.Fprintln(out, "No operation logs found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMODULE\tACTION\tRESULT\tOPERATOR\tSUBJECT\tSUMMARY")
	for _, row := range page.Results {
		subject := strings.TrimSpace(row.SubjectType + " " + row.SubjectID)
		if row.SubjectLabel != "" {
			subject += " (" + row.SubjectLabel + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.CreatedAt.Local().Format("2006-01-02 15:04"), row.Module, row.Action, row.Result, row.Operator, subject, row.Summary)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if page.Next != "" {
		fmt.Fprintf(out, "\nMore rows: --page %d\n", logsPage+1)
	}
	return nil
}
