// Command secretaria runs the contract administration console.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "secretaria",
		Short: "Admin console for contracts, contractors and activities",
		Long: `Secretaría is a server-rendered admin console over the contracts REST API.

Commands:
  secretaria serve      # Start the web console
  secretaria preview    # Render a view's table from a JSON file

Configuration is read from the environment; a .env file in the working
directory is loaded first when present.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Overload lets a local .env win over the inherited environment.
			if err := godotenv.Overload(); err == nil {
				slog.Debug("loaded .env file")
			}
		},
	}

	rootCmd.AddCommand(newServeCmd(), newPreviewCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
