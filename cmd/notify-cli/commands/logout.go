package commands

import (
	"log/slog"
	"notify-backend/lib/serviceutil"
	"notify-backend/services/brightspace/session"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(logoutCmd)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Deletes the saved session, forcing an interactive login on the next scrape.",
	Run: func(cmd *cobra.Command, args []string) {
		err := session.NewFileStore(*statePath).Clear()
		if err != nil {
			serviceutil.Fatal("failed to clear session", err)
		}
		slog.Info("session cleared", "path", *statePath)
	},
}
