package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var (
	jobVendor string
	jobData   string
)

// jobCmd represents the job command
var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage jobs",
	Long:  `Submit new jobs and check their status and results.`,
}

var jobCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Submit a new job",
	Long: `Submit a new job to the dispatch service.

The payload is given as inline JSON, or read from stdin with --data -:

  vendorqctl job create --vendor sync --data '{"name":"alice"}'
  cat payload.json | vendorqctl job create --vendor async --data -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := jobData
		if raw == "-" {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			raw = string(b)
		}

		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return fmt.Errorf("invalid --data JSON: %w", err)
		}

		resp, err := makeHTTPRequest("POST", "/api/v1/jobs", map[string]any{
			"vendor": jobVendor,
			"data":   data,
		})
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}

		body, err := decodeResponse(resp)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("create failed (%s): %v", resp.Status, body)
		}

		if outputJSON {
			printOutput(body)
		} else {
			fmt.Printf("Job created: %v\n", body["request_id"])
		}
		return nil
	},
}

var jobGetCmd = &cobra.Command{
	Use:   "get <request_id>",
	Short: "Get job status and result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeHTTPRequest("GET", "/api/v1/jobs/"+args[0], nil)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}

		body, err := decodeResponse(resp)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("get failed (%s): %v", resp.Status, body)
		}

		printOutput(body)
		return nil
	},
}

func init() {
	jobCreateCmd.Flags().StringVar(&jobVendor, "vendor", "", "vendor to dispatch to (sync or async)")
	jobCreateCmd.Flags().StringVar(&jobData, "data", "", "job payload as JSON, or - for stdin")
	jobCreateCmd.MarkFlagRequired("vendor")
	jobCreateCmd.MarkFlagRequired("data")

	jobCmd.AddCommand(jobCreateCmd)
	jobCmd.AddCommand(jobGetCmd)
	rootCmd.AddCommand(jobCmd)
}
