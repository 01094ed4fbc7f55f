package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ToolDescriptor represents one registered tool.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// InvocationResult represents a dispatched tool invocation.
type InvocationResult struct {
	ID         string          `json:"id"`
	Tool       string          `json:"tool"`
	Status     string          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
	ErrorMsg   string          `json:"error,omitempty"`
	StartedAt  string          `json:"started_at"`
	FinishedAt string          `json:"finished_at,omitempty"`
}

// ToolsCmd creates the tools command with list and dispatch subcommands.
func ToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and invoke registered tools",
	}

	cmd.AddCommand(toolsListCmd())
	cmd.AddCommand(toolsDispatchCmd())

	return cmd
}

func toolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runToolsList(cmd, outputJSON)
		},
	}
}

func toolsDispatchCmd() *cobra.Command {
	var arguments string

	cmd := &cobra.Command{
		Use:   "dispatch <tool>",
		Short: "Invoke a tool directly",
		Long:  "Dispatches a tool call with JSON arguments, bypassing the assistant.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runToolsDispatch(cmd, args[0], arguments, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&arguments, "args", "a", "{}", "Tool arguments as a JSON object")

	return cmd
}

func runToolsList(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/tools")
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}

	var listResp struct {
		Tools []ToolDescriptor `json:"tools"`
	}
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse tool list: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	for _, tool := range listResp.Tools {
		fmt.Printf("%-20s %s\n", tool.Name, tool.Description)
	}
	return nil
}

func runToolsDispatch(cmd *cobra.Command, tool, arguments string, outputJSON bool) error {
	if !json.Valid([]byte(arguments)) {
		return fmt.Errorf("--args must be valid JSON")
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/tools/dispatch", map[string]any{
		"tool":      tool,
		"arguments": json.RawMessage(arguments),
	})
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}

	var inv InvocationResult
	if err := json.Unmarshal(resp.Data, &inv); err != nil {
		return fmt.Errorf("failed to parse invocation: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(inv, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Invocation %s: %s\n", inv.ID, inv.Status)
	if len(inv.Result) > 0 {
		fmt.Println(string(inv.Result))
	}
	if inv.ErrorMsg != "" {
		fmt.Printf("Error (%s): %s\n", inv.ErrorKind, inv.ErrorMsg)
	}
	return nil
}
