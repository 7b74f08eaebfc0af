package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/empire-labs/chad/internal/cli"
	"github.com/empire-labs/chad/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chadd",
		Short: "Chad daemon",
		Long:  "Chad daemon for running the chat API server and refreshing the knowledge base",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
