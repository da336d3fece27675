package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <spec-id>",
		Short: "Show one specification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(args[0], outputJSON)
		},
	}
}

func runGet(specID string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get("/specs/" + specID)
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}

	var spec SpecSummary
	if err := json.Unmarshal(resp.Data, &spec); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(spec, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("ID:          %s\n", spec.ID)
	fmt.Printf("Title:       %s\n", spec.Title)
	fmt.Printf("Version:     %s\n", spec.Version)
	if spec.Description != "" {
		fmt.Printf("Description: %s\n", spec.Description)
	}
	fmt.Printf("Format:      %s\n", spec.Format)
	fmt.Printf("Size:        %d bytes\n", spec.SizeBytes)
	fmt.Printf("Chunks:      %d\n", spec.ChunkCount)
	fmt.Printf("Created:     %s\n", spec.CreatedAt)
	return nil
}

// ExportCmd creates the export command.
func ExportCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export <spec-id>",
		Short: "Download the original specification document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(args[0], outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Write to file instead of stdout")

	return cmd
}

func runExport(specID, outputPath string) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	raw, _, err := api.GetRaw("/specs/" + specID + "/export")
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if outputPath == "" {
		_, err = os.Stdout.Write(raw)
		return err
	}

	if err := os.WriteFile(outputPath, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	fmt.Printf("Wrote %d bytes to %s\n", len(raw), outputPath)
	return nil
}
