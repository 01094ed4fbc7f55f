package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// ListResponse represents the item list API response.
type ListResponse struct {
	Items   []*Item `json:"items"`
	Cursor  string  `json:"cursor,omitempty"`
	HasMore bool    `json:"has_more"`
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var (
		kind   string
		tag    string
		cursor string
		limit  int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List knowledge items",
		Long:    "Lists knowledge items ordered by recency, optionally filtered by kind and tag.",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(cmd, kind, tag, cursor, limit, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Filter by item kind")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Filter by tag")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of items")

	return cmd
}

func runList(cmd *cobra.Command, kind, tag, cursor string, limit int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	params := url.Values{}
	if kind != "" {
		params.Set("kind", kind)
	}
	if tag != "" {
		params.Set("tag", tag)
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	params.Set("limit", strconv.Itoa(limit))

	resp, err := api.Get("/items?" + params.Encode())
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	var listResp ListResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse item list: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(listResp.Items) == 0 {
		fmt.Println("No items found.")
		return nil
	}

	for _, item := range listResp.Items {
		fmt.Printf("%s  [%s]  %s\n", item.ID, item.Kind, item.Title)
	}
	if listResp.HasMore && listResp.Cursor != "" {
		fmt.Printf("\nMore items available. Use --cursor %s\n", listResp.Cursor)
	}

	return nil
}
