package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Choose the best source from a list of candidates",
	Long: `Ping every candidate, probe the survivors in depth and print the
selection as JSON.

The sources file is YAML, either a list or a mapping with a "sources" key:

  sources:
    - id: mirror-a
      name: Mirror A
      sample_segment_url: https://a.example.com/ep1/index.m3u8
      segment_urls:
        - https://a.example.com/ep1/index.m3u8
        - https://a.example.com/ep2/index.m3u8

Examples:
  hlsselect select --sources sources.yaml
  hlsselect select --sources sources.yaml --sequential --verbose`,
	Args: cobra.NoArgs,
	RunE: runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)

	selectCmd.Flags().String("sources", "sources.yaml", "YAML file listing candidate sources")
	selectCmd.Flags().Bool("sequential", false, "probe survivors one at a time")
}

func runSelect(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("sources")

	sources, err := loadSources(path)
	if err != nil {
		return err
	}

	selection, err := newController().SelectSource(cmd.Context(), sources)
	if err != nil {
		return fmt.Errorf("select source: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(selection)
}
