package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var filterCmd = &cobra.Command{
	Use:   "filter [url|file]",
	Short: "Print a media playlist with its ads removed",
	Long: `Download a playlist (or read it from a file) and print it with
advertisement segments removed.

Examples:
  hlsselect filter https://cdn.example.com/ep1/index.m3u8
  hlsselect filter ./index.m3u8 --regex '#EXT-X-CUE-.*'
  hlsselect filter ./index.m3u8 --no-adfilter`,
	Args: cobra.ExactArgs(1),
	RunE: runFilter,
}

func init() {
	rootCmd.AddCommand(filterCmd)

	filterCmd.Flags().Bool("no-adfilter", false, "print the playlist unchanged")
	filterCmd.Flags().String("regex", "", "case-insensitive pattern deleted before filtering")
}

func runFilter(cmd *cobra.Command, args []string) error {
	target := args[0]
	controller := newController()

	var out string
	if isRemote(target) {
		content, err := controller.FetchPlaylist(cmd.Context(), target)
		if err != nil {
			return err
		}
		out = content
	} else {
		data, err := os.ReadFile(target)
		if err != nil {
			return fmt.Errorf("read playlist: %w", err)
		}
		out = controller.FilterPlaylist(string(data))
	}

	_, err := fmt.Fprint(os.Stdout, out)
	return err
}

func isRemote(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}
