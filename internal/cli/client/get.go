package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Item represents a knowledge item from the API.
type Item struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Tags      []string          `json:"tags"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	Version   int64             `json:"version"`
}

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "get <item_id>",
		Short:   "Get a knowledge item by ID",
		Long:    "Retrieves a knowledge item by its ID and displays the full content.",
		Aliases: []string{"view"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runGet(cmd *cobra.Command, itemID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/items/%s", itemID))
	if err != nil {
		return fmt.Errorf("failed to get item: %w", err)
	}

	var item Item
	if err := json.Unmarshal(resp.Data, &item); err != nil {
		return fmt.Errorf("failed to parse item: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(item, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	printItem(&item)
	return nil
}

func printItem(item *Item) {
	fmt.Printf("Title: %s\n", item.Title)
	fmt.Printf("Kind: %s\n", item.Kind)
	if len(item.Tags) > 0 {
		fmt.Printf("Tags: %v\n", item.Tags)
	}
	for key, value := range item.Metadata {
		fmt.Printf("%s: %s\n", key, value)
	}
	fmt.Printf("Version: %d\n", item.Version)
	fmt.Printf("Created: %s\n", item.CreatedAt)
	fmt.Printf("Updated: %s\n", item.UpdatedAt)
	if item.Body != "" {
		fmt.Println()
		fmt.Println("--- Content ---")
		fmt.Println(item.Body)
	}
}
