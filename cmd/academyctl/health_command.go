package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	lessonStore "academy/internal/adapters/storage/lesson"
	playbackStore "academy/internal/adapters/storage/playback"
	"academy/internal/application/projections"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "List lessons whose videos fail to play",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := projections.QueryGetPlaybackHealth(cmd.Context(), projections.GetPlaybackHealthQuery{
				Window: window,
			}, projections.GetPlaybackHealthDeps{
				EventStore:  playbackStore.NewSQLiteStore(db),
				LessonStore: lessonStore.NewSQLiteStore(db),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Lessons) == 0 {
				fmt.Fprintf(out, "no playback events since %s\n", result.Since.Format(time.RFC3339))
				return nil
			}
			rows := make([][]string, 0, len(result.Lessons))
			for _, l := range result.Lessons {
				rows = append(rows, []string{
					l.Title,
					strconv.Itoa(l.Ready),
					strconv.Itoa(l.Timeouts),
					strconv.Itoa(l.Errors),
					strconv.Itoa(l.Exhausted),
					fmt.Sprintf("%.0f%%", l.FailureRate*100),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Lesson", "Ready", "Timeouts", "Errors", "Unavailable", "Failure rate"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().DurationVar(&window, "window", projections.DefaultHealthWindow, "Look-back window")
	return cmd
}
