package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/empire-labs/chad/internal/cli"
	"github.com/empire-labs/chad/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "chadctl",
		Short: "Chad CLI - talk to the chat API",
		Long: `Chad CLI provides commands to talk to a running Chad server.

Environment variables:
  CHAD_API_KEY   API key for authentication (if the server requires one)
  CHAD_API_URL   API base URL (default: http://127.0.0.1:8000)`,
		Version: version,
	}

	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.HealthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
