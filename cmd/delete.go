package cmd

import (
	"fmt"

	"github.com/marcus/shelf/internal/output"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Aliases: []string{"rm"},
	Short:   "Delete one or more books",
	GroupID: "catalog",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		var firstErr error
		failed := 0
		deleted := make([]int64, 0, len(ids))
		for _, id := range ids {
			if err := sess.svc.DeleteBook(cmd.Context(), id); err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				if !jsonOutput(cmd) {
					output.Error("failed to delete #%d: %v", id, err)
				}
				continue
			}
			deleted = append(deleted, id)
			if !jsonOutput(cmd) {
				fmt.Printf("DELETED #%d\n", id)
			}
		}

		if firstErr != nil {
			err := fmt.Errorf("%d of %d deletes failed: %w", failed, len(ids), firstErr)
			if jsonOutput(cmd) {
				return err
			}
			return reported(err)
		}
		if jsonOutput(cmd) {
			return output.JSON(map[string]any{"deleted": deleted})
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
