package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// SpecSummary represents one stored specification in API responses.
type SpecSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Format      string `json:"format"`
	SizeBytes   int64  `json:"size_bytes"`
	ChunkCount  int    `json:"chunk_count"`
	CreatedAt   string `json:"created_at"`
}

// SpecListResponse represents the list API response.
type SpecListResponse struct {
	Items []SpecSummary `json:"items"`
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List ingested specifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(outputJSON)
		},
	}
}

func runList(outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get("/specs")
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var listResp SpecListResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(listResp.Items) == 0 {
		fmt.Println("No specifications ingested.")
		return nil
	}

	for _, spec := range listResp.Items {
		fmt.Printf("%s  %s (version %s, %d chunks)\n", spec.ID, spec.Title, spec.Version, spec.ChunkCount)
	}
	return nil
}
