package client

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Reply     string   `json:"reply"`
	SessionID string   `json:"session_id"`
	Sources   []string `json:"sources,omitempty"`
}

// ChatCmd returns the chat command
func ChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message to the chat API",
		Long: `Send a single message, or start an interactive conversation when
no message is given. The session id is carried across turns so the
server keeps the conversation context.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().String("session", "", "Continue an existing session id")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	sessionID, _ := cmd.Flags().GetString("session")

	if len(args) == 1 {
		resp, err := sendMessage(api, args[0], sessionID)
		if err != nil {
			return err
		}
		fmt.Println(resp.Reply)
		fmt.Fprintf(os.Stderr, "session: %s\n", resp.SessionID)
		return nil
	}

	fmt.Println("Chatting with Chad. Empty line or Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			break
		}

		resp, err := sendMessage(api, message, sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		sessionID = resp.SessionID
		fmt.Println(resp.Reply)
	}
	return scanner.Err()
}

func sendMessage(api *APIClient, message, sessionID string) (*chatResponse, error) {
	var resp chatResponse
	err := api.Post("/api/chat", chatRequest{Message: message, SessionID: sessionID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
