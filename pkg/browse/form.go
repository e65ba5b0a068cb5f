package browse

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/marcus/shelf/internal/models"
)

var errTitleRequired = errors.New("title is required")

// FormMode represents the mode of the form
type FormMode string

const (
	FormModeCreate FormMode = "create"
	FormModeEdit   FormMode = "edit"
)

// BookForm holds the bound values of the add/edit form.
type BookForm struct {
	Mode   FormMode
	BookID int64 // edit mode only
	Form   *huh.Form

	Title       string
	Description string
	Price       string
	Image       string
}

// NewBookForm returns an empty create form.
func NewBookForm() *BookForm {
	f := &BookForm{Mode: FormModeCreate}
	f.buildForm()
	return f
}

// NewEditForm returns a form pre-filled from b.
func NewEditForm(b models.Book) *BookForm {
	f := &BookForm{
		Mode:        FormModeEdit,
		BookID:      b.ID,
		Title:       b.Title,
		Description: b.Description,
		Price:       b.Price.String(),
		Image:       b.Image,
	}
	f.buildForm()
	return f
}

func (f *BookForm) buildForm() {
	heading := "New Book"
	if f.Mode == FormModeEdit {
		heading = fmt.Sprintf("Edit Book #%d", f.BookID)
	}

	f.Form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&f.Title).
				Placeholder("Book title...").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errTitleRequired
					}
					return nil
				}),
			huh.NewInput().
				Title("Price").
				Value(&f.Price).
				Placeholder("9.99").
				Validate(validatePrice),
			huh.NewText().
				Title("Description").
				Value(&f.Description).
				Placeholder("Optional, markdown allowed...").
				Lines(4),
			huh.NewInput().
				Title("Image URL").
				Value(&f.Image).
				Placeholder("https://...").
				Validate(validateImage),
		).Title(heading),
	)
	f.Form.WithTheme(huh.ThemeDracula())
}

func validatePrice(s string) error {
	p, err := models.ParsePrice(s)
	if err != nil {
		return err
	}
	if !p.IsPositive() {
		return errors.New("price must be greater than 0")
	}
	return nil
}

func validateImage(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := url.Parse(strings.TrimSpace(s)); err != nil {
		return errors.New("not a valid URL")
	}
	return nil
}

// Fields converts the form values into validated book fields.
func (f *BookForm) Fields() (models.BookFields, error) {
	price, err := models.ParsePrice(f.Price)
	if err != nil {
		return models.BookFields{}, err
	}
	fields := models.BookFields{
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
		Price:       price,
		Image:       strings.TrimSpace(f.Image),
	}
	if err := fields.Validate(); err != nil {
		return models.BookFields{}, err
	}
	return fields, nil
}
