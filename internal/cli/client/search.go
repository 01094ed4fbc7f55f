package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query string   `json:"query"`
	Kinds []string `json:"kinds,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

// SearchResult represents one scored search hit.
type SearchResult struct {
	Item       *Item   `json:"item"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Recency    float64 `json:"recency"`
	TagOverlap float64 `json:"tag_overlap"`
	Embedded   bool    `json:"embedded"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		kinds string
		tags  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search knowledge",
		Long:  "Searches the knowledge base with semantic similarity, recency, and tag scoring.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(cmd, args[0], kinds, tags, limit, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&kinds, "kinds", "k", "", "Comma-separated item kinds to search")
	cmd.Flags().StringVarP(&tags, "tags", "t", "", "Comma-separated tags to boost")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")

	return cmd
}

func runSearch(cmd *cobra.Command, query, kinds, tags string, limit int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	req := SearchRequest{
		Query: query,
		Kinds: splitTags(kinds),
		Tags:  splitTags(tags),
		Limit: limit,
	}

	resp, err := api.Post("/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(searchResp.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(searchResp.Results))
	for i, result := range searchResp.Results {
		fmt.Printf("%d. %s (%.2f)\n", i+1, result.Item.Title, result.Score)
		body := result.Item.Body
		if len(body) > 100 {
			body = body[:97] + "..."
		}
		if body != "" {
			fmt.Printf("   %s\n", body)
		}
		if !result.Embedded {
			fmt.Printf("   (not yet embedded, ranked on recency/tags)\n")
		}
		fmt.Printf("   ID: %s\n", result.Item.ID)
		if i < len(searchResp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}
