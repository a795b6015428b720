package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"academy/internal/domain/video"
)

func playerFor(s video.Source) video.PlayerType {
	if s.IsYouTube() {
		return video.PlayerNativeEmbed
	}
	return video.PlayerGeneric
}

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <url>...",
		Short: "Show how each URL would be played",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(args))
			for _, u := range args {
				s := video.NewSource(u)
				rows = append(rows, []string{u, string(s.Type), s.Quality, string(playerFor(s))})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"URL", "Type", "Quality", "Player"}, rows, nil))
			return nil
		},
	}
}

func newCatalogCommand() *cobra.Command {
	var primary string
	var fallbacks, mp4s []string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the ordered source list a lesson would try",
		RunE: func(cmd *cobra.Command, args []string) error {
			if primary == "" {
				return fmt.Errorf("--primary is required")
			}
			cfg := video.BuildConfig(primary, fallbacks, mp4s)
			sources := cfg.Sources()
			rows := make([][]string, 0, len(sources))
			for i, s := range sources {
				rows = append(rows, []string{strconv.Itoa(i + 1), string(s.Type), s.Quality, string(playerFor(s)), s.URL})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"#", "Type", "Quality", "Player", "URL"}, rows,
				[]columnAlignment{alignRight}))
			fmt.Fprintf(out, "preload: %s\n", cfg.Preload)
			if cfg.Primary.IsYouTube() && len(mp4s) > 0 {
				fmt.Fprintln(out, "note: mp4 URLs are ignored for a YouTube primary")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&primary, "primary", "", "Primary video URL")
	cmd.Flags().StringSliceVar(&fallbacks, "fallback", nil, "Fallback URL (repeatable, tried in order)")
	cmd.Flags().StringSliceVar(&mp4s, "mp4", nil, "Progressive mp4 URL (repeatable)")
	return cmd
}
