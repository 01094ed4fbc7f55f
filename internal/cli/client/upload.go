package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var tags string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Ingest a document file",
		Long:  "Uploads a file as a document item: the text becomes searchable, the original is archived.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runUpload(cmd, args[0], tags, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&tags, "tags", "t", "", "Comma-separated tags")

	return cmd
}

func runUpload(cmd *cobra.Command, filePath, tags string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.UploadFile("/documents", filePath, tags)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
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

	fmt.Printf("Ingested %s as %s\n", item.Title, item.ID)
	return nil
}

// DownloadCmd creates the download command.
func DownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <item_id>",
		Short: "Get a download link for an archived document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, args[0])
		},
	}

	return cmd
}

func runDownload(cmd *cobra.Command, itemID string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/documents/%s/download", itemID))
	if err != nil {
		return fmt.Errorf("failed to get download link: %w", err)
	}

	var linkResp struct {
		DownloadURL string `json:"download_url"`
	}
	if err := json.Unmarshal(resp.Data, &linkResp); err != nil {
		return fmt.Errorf("failed to parse download link: %w", err)
	}

	fmt.Println(linkResp.DownloadURL)
	return nil
}
