package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query  string `json:"query"`
	SpecID string `json:"spec_id,omitempty"`
	TopK   int    `json:"top_k,omitempty"`
}

// SearchResult represents a search result.
type SearchResult struct {
	ChunkID string  `json:"chunk_id"`
	SpecID  string  `json:"spec_id"`
	Kind    string  `json:"kind"`
	Text    string  `json:"text"`
	Score   float32 `json:"score"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		specID string
		topK   int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed specification chunks",
		Long:  "Searches indexed specification chunks with semantic similarity.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(args[0], specID, topK, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&specID, "spec", "s", "", "Restrict search to one specification")
	cmd.Flags().IntVarP(&topK, "top", "n", 5, "Maximum number of results")

	return cmd
}

func runSearch(query, specID string, topK int, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	req := SearchRequest{
		Query:  query,
		SpecID: specID,
		TopK:   topK,
	}

	resp, err := api.Post("/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(searchResp.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(searchResp.Results))
	for i, result := range searchResp.Results {
		fmt.Printf("%d. [%s] %s (%.2f)\n", i+1, result.Kind, result.ChunkID, result.Score)
		text := result.Text
		if len(text) > 200 {
			text = text[:197] + "..."
		}
		fmt.Printf("   %s\n", text)
		if i < len(searchResp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	return nil
}
