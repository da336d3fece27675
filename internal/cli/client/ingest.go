package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// IngestResponse represents the spec upload API response.
type IngestResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Version       string `json:"version"`
	Format        string `json:"format"`
	SizeBytes     int64  `json:"size_bytes"`
	ChunkCount    int    `json:"chunk_count"`
	SkippedChunks int    `json:"skipped_chunks,omitempty"`
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest an OpenAPI specification",
		Long:  "Uploads an OpenAPI specification document and indexes it for search and chat.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runIngest(args[0], format, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Document format: json or yaml (default: inferred from extension)")

	return cmd
}

func runIngest(path, format string, outputJSON bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			format = "json"
		case ".yaml", ".yml":
			format = "yaml"
		}
	}

	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	endpoint := "/specs"
	if format != "" {
		endpoint += "?format=" + format
	}

	contentType := "application/json"
	if format == "yaml" {
		contentType = "application/yaml"
	}

	resp, err := api.PostRaw(endpoint, contentType, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	var result IngestResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Ingested %s (version %s)\n", result.Title, result.Version)
	fmt.Printf("  ID:     %s\n", result.ID)
	fmt.Printf("  Chunks: %d\n", result.ChunkCount)
	if result.SkippedChunks > 0 {
		fmt.Printf("  Warning: %d chunks could not be indexed\n", result.SkippedChunks)
	}
	return nil
}
