package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// DeleteCmd creates the delete command.
func DeleteCmd() *cobra.Command {
	var version int64

	cmd := &cobra.Command{
		Use:     "delete <item_id>",
		Short:   "Delete a knowledge item",
		Long:    "Deletes a knowledge item. Without --version the current version is fetched first.",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0], version)
		},
	}

	cmd.Flags().Int64Var(&version, "version", 0, "Expected item version (optimistic concurrency check)")

	return cmd
}

func runDelete(cmd *cobra.Command, itemID string, version int64) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if version == 0 {
		resp, err := api.Get(fmt.Sprintf("/items/%s", itemID))
		if err != nil {
			return fmt.Errorf("failed to get item: %w", err)
		}
		var item Item
		if err := json.Unmarshal(resp.Data, &item); err != nil {
			return fmt.Errorf("failed to parse item: %w", err)
		}
		version = item.Version
	}

	if _, err := api.Delete(fmt.Sprintf("/items/%s?version=%d", itemID, version)); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	fmt.Printf("Deleted %s\n", itemID)
	return nil
}
