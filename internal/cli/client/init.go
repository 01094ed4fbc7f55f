package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitCmd creates the init command.
func InitCmd() *cobra.Command {
	var apiURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Configure the mnemo CLI",
		Long:  "Saves the API base URL to the global config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(apiURL)
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", defaultAPIURL, "API base URL")

	return cmd
}

func runInit(apiURL string) error {
	api := NewAPIClientWithConfig(apiURL)
	if _, err := api.Get("/health"); err != nil {
		return fmt.Errorf("could not reach server at %s: %w", apiURL, err)
	}

	if err := SaveGlobalConfig(&GlobalConfig{APIURL: apiURL}); err != nil {
		return err
	}

	configPath, _ := GetConfigPath()
	fmt.Printf("Configuration saved to %s\n", configPath)
	return nil
}
