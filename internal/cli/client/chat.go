package client

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// ChatRequest represents the chat API request.
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// ChatResponse represents the chat API response.
type ChatResponse struct {
	Answer      string   `json:"answer"`
	Invocations []string `json:"invocations,omitempty"`
	Hops        int      `json:"hops"`
	Degraded    bool     `json:"degraded"`
}

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a message to the assistant",
		Long: `Sends a message to the tool-using assistant. Without --conversation a
fresh conversation is started; pass the same ID to continue one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runChat(cmd, conversationID, args[0], outputJSON)
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation ID to continue")

	return cmd
}

func runChat(cmd *cobra.Command, conversationID, message string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	newConversation := conversationID == ""
	if newConversation {
		conversationID = uuid.NewString()
	}

	resp, err := api.Post("/chat", ChatRequest{
		ConversationID: conversationID,
		Message:        message,
	})
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(resp.Data, &chatResp); err != nil {
		return fmt.Errorf("failed to parse chat response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(map[string]any{
			"conversation_id": conversationID,
			"answer":          chatResp.Answer,
			"invocations":     chatResp.Invocations,
			"hops":            chatResp.Hops,
			"degraded":        chatResp.Degraded,
		}, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(chatResp.Answer)
	if chatResp.Degraded {
		fmt.Println("\n(tool budget exhausted; answer may be incomplete)")
	}
	if newConversation {
		fmt.Printf("\nConversation: %s (use --conversation to continue)\n", conversationID)
	}

	return nil
}
