package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Stats represents the operational snapshot from the API.
type Stats struct {
	ItemsByKind     map[string]int `json:"items_by_kind"`
	TotalItems      int            `json:"total_items"`
	DistinctTags    int            `json:"distinct_tags"`
	PendingJobs     int            `json:"pending_jobs"`
	StaleEmbeddings int            `json:"stale_embeddings"`
	TotalSearches   int            `json:"total_searches"`
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show server statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runStats(cmd, outputJSON)
		},
	}
}

func runStats(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/stats")
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	var stats Stats
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		return fmt.Errorf("failed to parse stats: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Items: %d\n", stats.TotalItems)
	for kind, count := range stats.ItemsByKind {
		fmt.Printf("  %-16s %d\n", kind, count)
	}
	fmt.Printf("Distinct tags:    %d\n", stats.DistinctTags)
	fmt.Printf("Pending jobs:     %d\n", stats.PendingJobs)
	fmt.Printf("Stale embeddings: %d\n", stats.StaleEmbeddings)
	fmt.Printf("Total searches:   %d\n", stats.TotalSearches)
	return nil
}
