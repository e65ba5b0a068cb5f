package cmd

import (
	"fmt"
	"strconv"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/output"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List every book in the catalog",
	GroupID: "catalog",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		books, err := sess.svc.GetBooks(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput(cmd) {
			return output.JSON(books)
		}
		if len(books) == 0 {
			fmt.Println("No books")
			return nil
		}
		for _, b := range books {
			fmt.Println(output.FormatBookShort(b))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Aliases: []string{"get"},
	Short:   "Show one book",
	GroupID: "catalog",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		book, err := sess.svc.GetBook(cmd.Context(), id)
		if err != nil {
			return err
		}

		if jsonOutput(cmd) {
			return output.JSON(book)
		}
		fmt.Print(output.FormatBookLong(book))
		return nil
	},
}

// parseID parses a positive book id argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &models.ValidationError{Field: "id", Message: fmt.Sprintf("invalid book id %q", s)}
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
}
