package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/output"
	"github.com/marcus/shelf/pkg/browse"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// priceFlag is a decimal --price value. Setting "" clears it.
type priceFlag struct {
	value decimal.Decimal
	set   bool
}

var _ pflag.Value = (*priceFlag)(nil)

func (p *priceFlag) String() string {
	if !p.set {
		return ""
	}
	return p.value.String()
}

func (p *priceFlag) Set(s string) error {
	if strings.TrimSpace(s) == "" {
		*p = priceFlag{}
		return nil
	}
	d, err := models.ParsePrice(s)
	if err != nil {
		return err
	}
	p.value = d
	p.set = true
	return nil
}

func (p *priceFlag) Type() string {
	return "decimal"
}

var (
	addPrice  priceFlag
	editPrice priceFlag
)

var addCmd = &cobra.Command{
	Use:     "add",
	Aliases: []string{"create", "new"},
	Short:   "Add a book",
	Long: `Add a book to the catalog. Online, the book is created on the server;
offline it is stored locally and uploaded by the next 'shelf sync'.`,
	Example: `  shelf add --title "Dune" --price 9.99
  shelf add -i`,
	GroupID: "catalog",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var fields models.BookFields

		if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
			form := browse.NewBookForm()
			if err := form.Form.Run(); err != nil {
				return fmt.Errorf("form: %w", err)
			}
			f, err := form.Fields()
			if err != nil {
				return err
			}
			fields = f
		} else {
			title, _ := cmd.Flags().GetString("title")
			description, _ := cmd.Flags().GetString("description")
			image, _ := cmd.Flags().GetString("image")
			fields = models.BookFields{
				Title:       strings.TrimSpace(title),
				Description: strings.TrimSpace(description),
				Price:       addPrice.value,
				Image:       strings.TrimSpace(image),
			}
		}

		sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		book, err := sess.svc.AddBook(cmd.Context(), fields)
		if err != nil {
			return err
		}

		if jsonOutput(cmd) {
			return output.JSON(book)
		}
		output.Success("CREATED #%d %s", book.ID, book.Title)
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:     "edit <id>",
	Aliases: []string{"update"},
	Short:   "Edit a book",
	Long:    `Edit a book. Only the flags you pass are changed; the rest keep their current values.`,
	Example: `  shelf edit 3 --price 12.50
  shelf edit 3 -i`,
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

		current, err := sess.svc.GetBook(cmd.Context(), id)
		if err != nil {
			return err
		}

		var fields models.BookFields
		if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
			form := browse.NewEditForm(current)
			if err := form.Form.Run(); err != nil {
				return fmt.Errorf("form: %w", err)
			}
			if fields, err = form.Fields(); err != nil {
				return err
			}
		} else {
			if !anyChanged(cmd, "title", "description", "price", "image") {
				return &models.ValidationError{Message: "nothing to change (use --title, --description, --price or --image)"}
			}
			fields = applyEditFlags(cmd, current.Fields())
		}

		book, err := sess.svc.UpdateBook(cmd.Context(), id, fields)
		if err != nil {
			return err
		}

		if jsonOutput(cmd) {
			return output.JSON(book)
		}
		output.Success("UPDATED #%d %s", book.ID, book.Title)
		return nil
	},
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// applyEditFlags overlays the flags that were passed onto f.
func applyEditFlags(cmd *cobra.Command, f models.BookFields) models.BookFields {
	flags := cmd.Flags()
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		f.Title = strings.TrimSpace(v)
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		f.Description = strings.TrimSpace(v)
	}
	if flags.Changed("price") && editPrice.set {
		f.Price = editPrice.value
	}
	if flags.Changed("image") {
		v, _ := flags.GetString("image")
		f.Image = strings.TrimSpace(v)
	}
	return f
}

func init() {
	for _, c := range []*cobra.Command{addCmd, editCmd} {
		c.Flags().String("title", "", "book title")
		c.Flags().StringP("description", "d", "", "description (markdown allowed)")
		c.Flags().String("image", "", "cover image URL")
		c.Flags().BoolP("interactive", "i", false, "fill in a form instead of flags")
	}
	addCmd.Flags().Var(&addPrice, "price", "price, e.g. 9.99")
	editCmd.Flags().Var(&editPrice, "price", "new price, e.g. 12.50")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
}
