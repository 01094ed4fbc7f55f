package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// CreateItemRequest represents the item creation API request.
type CreateItemRequest struct {
	Kind     string            `json:"kind"`
	Title    string            `json:"title"`
	Body     string            `json:"body,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// AddCmd creates the add command.
func AddCmd() *cobra.Command {
	var (
		kind     string
		body     string
		tags     string
		due      string
		start    string
		end      string
		location string
		priority string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a knowledge item",
		Long: `Creates a knowledge item. The kind flag selects the item type:
note (default), task, or calendar_event. Tasks require --due; calendar
events require --start and --end.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAdd(cmd, addOptions{
				title:    args[0],
				kind:     kind,
				body:     body,
				tags:     tags,
				due:      due,
				start:    start,
				end:      end,
				location: location,
				priority: priority,
			}, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "note", "Item kind: note, task, or calendar_event")
	cmd.Flags().StringVarP(&body, "body", "b", "", "Item body text")
	cmd.Flags().StringVarP(&tags, "tags", "t", "", "Comma-separated tags")
	cmd.Flags().StringVar(&due, "due", "", "Task due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&start, "start", "", "Event start time (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "Event end time (RFC3339)")
	cmd.Flags().StringVar(&location, "location", "", "Event location")
	cmd.Flags().StringVar(&priority, "priority", "", "Task priority")

	return cmd
}

type addOptions struct {
	title    string
	kind     string
	body     string
	tags     string
	due      string
	start    string
	end      string
	location string
	priority string
}

func runAdd(cmd *cobra.Command, opts addOptions, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	req := CreateItemRequest{
		Kind:     opts.kind,
		Title:    opts.title,
		Body:     opts.body,
		Tags:     splitTags(opts.tags),
		Metadata: map[string]string{},
	}

	switch opts.kind {
	case "task":
		if opts.due == "" {
			return fmt.Errorf("tasks require --due")
		}
		req.Metadata["due_date"] = opts.due
		req.Metadata["task_status"] = "open"
		if opts.priority != "" {
			req.Metadata["priority"] = opts.priority
		}
	case "calendar_event":
		if opts.start == "" || opts.end == "" {
			return fmt.Errorf("calendar events require --start and --end")
		}
		req.Metadata["start_time"] = opts.start
		req.Metadata["end_time"] = opts.end
		if opts.location != "" {
			req.Metadata["location"] = opts.location
		}
	}

	resp, err := api.Post("/items", req)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
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

	fmt.Printf("Created %s %s: %s\n", item.Kind, item.ID, item.Title)
	return nil
}

func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	var out []string
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
