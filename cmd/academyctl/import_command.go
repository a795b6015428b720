package main

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"academy/internal/adapters/storage"
	lessonStore "academy/internal/adapters/storage/lesson"
	"academy/internal/application/orchestrators"
)

func defaultAuthor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "academyctl"
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var author string

	cmd := &cobra.Command{
		Use:   "import <catalog.toml>",
		Short: "Create or update lessons from a TOML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			db, err := ctx.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := orchestrators.ExecuteImportLessons(cmd.Context(), orchestrators.ImportLessonsInput{
				Reader:   f,
				AuthorID: author,
				DryRun:   dryRun,
			}, orchestrators.ImportLessonsDeps{
				LessonStore: lessonStore.NewSQLiteStore(storage.NewTimedDB(db, 0)),
				GenerateID:  func() string { return uuid.New().String() },
				Now:         func() time.Time { return time.Now().UTC() },
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			mode := "imported"
			if result.DryRun {
				mode = "dry run"
			}
			fmt.Fprintf(out, "%s: %d entries, %d created, %d updated, %d rejected\n",
				mode, result.Total, result.Created, result.Updated, len(result.Errors))
			if len(result.Errors) > 0 {
				rows := make([][]string, 0, len(result.Errors))
				for _, e := range result.Errors {
					rows = append(rows, []string{strconv.Itoa(e.Entry), e.Title, e.Message})
				}
				fmt.Fprintln(out, renderTable([]string{"Entry", "Title", "Problem"}, rows, []columnAlignment{alignRight}))
				return fmt.Errorf("%d catalog entries rejected", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the catalog without saving")
	cmd.Flags().StringVar(&author, "author", defaultAuthor(), "Recorded as the creator of new lessons")
	return cmd
}
