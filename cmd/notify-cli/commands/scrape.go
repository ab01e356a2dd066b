package commands

import (
	"log/slog"
	"notify-backend/lib/serviceutil"
	"notify-backend/services/brightspace/scraper"
	"notify-backend/services/brightspace/server"
	"notify-backend/services/brightspace/session"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	scrapeBaseUrl  *string
	scrapeExecPath *string
	scrapeIcs      *string
)

func init() {
	scrapeBaseUrl = scrapeCmd.Flags().String("base-url", "https://bigsky.benilde.edu.ph", "Portal base url.")
	scrapeExecPath = scrapeCmd.Flags().String("browser", "", "Path to a chromium binary.")
	scrapeIcs = scrapeCmd.Flags().String("ics", "", "Also write the result to an iCalendar file.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--ics <path/to/out.ics>]",
	Short: "Runs one scrape and prints the outstanding assignments.",
	Run: func(cmd *cobra.Command, args []string) {
		store := session.NewFileStore(*statePath)
		s, err := scraper.New(scraper.Options{
			BaseUrl:  *scrapeBaseUrl,
			ExecPath: *scrapeExecPath,
			Store:    store,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize scraper", err)
		}

		t1 := time.Now()
		result, err := s.Scrape(cmd.Context())
		if err != nil {
			serviceutil.Fatal("scrape failed", err)
		}
		slog.Info("scraping time", "seconds", time.Since(t1).Seconds())

		if result.User.Name != nil {
			slog.Info("authenticated", "user", *result.User.Name)
		}

		out := table.NewWriter()
		out.SetOutputMirror(os.Stdout)
		out.AppendHeader(table.Row{"#", "Course", "Title", "Due"})
		for i, a := range result.Assignments {
			out.AppendRow(table.Row{i + 1, a.Course, a.Title, a.Due})
		}
		out.Render()

		if *scrapeIcs != "" {
			err := os.WriteFile(*scrapeIcs, []byte(server.BuildCalendar(result.Assignments)), 0644)
			if err != nil {
				serviceutil.Fatal("failed to write calendar file", err)
			}
			slog.Info("wrote calendar", "path", *scrapeIcs)
		}
	},
}
