package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job statistics",
	Long:  `Fetch job counts grouped by status from the admin endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeHTTPRequest("GET", "/api/v1/jobs/admin/stats", nil)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}

		body, err := decodeResponse(resp)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("stats failed (%s): %v", resp.Status, body)
		}

		printOutput(body)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
