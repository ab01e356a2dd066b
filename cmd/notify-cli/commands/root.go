package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statePath *string

var rootCmd = &cobra.Command{
	Use:   "notify-cli",
	Short: "notify-cli scrapes outstanding assignments out of the campus portal.",
}

func init() {
	statePath = rootCmd.PersistentFlags().String("state", "state.json", "Path to the saved session state.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
