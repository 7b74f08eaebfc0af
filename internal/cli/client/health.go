package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	RAG    bool   `json:"rag"`
}

// HealthCmd returns the health command
func HealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the server's health endpoint",
		RunE:  runHealth,
	}
}

func runHealth(cmd *cobra.Command, args []string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	var resp healthResponse
	if err := api.Get("/health", &resp); err != nil {
		return err
	}

	fmt.Printf("status: %s\nmodel: %s\nrag: %v\n", resp.Status, resp.Model, resp.RAG)
	return nil
}
