package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calgate application
var rootCmd = &cobra.Command{
	Use:   "calgate",
	Short: "Google sign-in and calendar gateway for the chat assistant",
	Long: `calgate signs users in with Google, keeps their tokens in an encrypted
session cookie and forwards calendar requests on their behalf.

Calendar requests are served by one of two strategies:
  - direct: call the Google Calendar API with the user's access token
  - delegated: forward to the chat backend, which holds the refresh token`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calgate version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
