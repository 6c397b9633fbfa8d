package cmd

import (
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running instance for its refresh status",
	RunE:  runStatus,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringP("addr", "a", "http://localhost:8080", "Base address of the running instance")
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	var body json.RawMessage
	resp, err := resty.New().R().
		SetContext(cmd.Context()).
		SetResult(&body).
		Get(addr + "/api/status")
	if err != nil {
		return fmt.Errorf("query status: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("query status: %s returned %d", addr, resp.StatusCode())
	}

	pretty, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return fmt.Errorf("format status: %w", err)
	}

	fmt.Println(string(pretty))
	return nil
}
