package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/marcus/shelf/internal/cart"
	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/output"
	"github.com/spf13/cobra"
)

const cartFile = ".shelf/cart.json"

func cartPath() string {
	return filepath.Join(getBaseDir(), cartFile)
}

// withCart loads the session cart, runs fn and saves the cart when fn changed it.
func withCart(cmd *cobra.Command, fn func(c *cart.Cart) (changed bool, err error)) error {
	path := cartPath()
	c, err := cart.Load(path)
	if err != nil {
		return err
	}
	changed, err := fn(c)
	if err != nil {
		return err
	}
	if changed {
		if err := c.Save(path); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
	}
	return printCart(cmd, c)
}

func printCart(cmd *cobra.Command, c *cart.Cart) error {
	if jsonOutput(cmd) {
		return output.JSON(map[string]any{
			"entries": c.Entries(),
			"count":   c.Count(),
			"total":   c.Total(),
		})
	}
	fmt.Println(output.FormatCart(c.Entries(), c.Total()))
	return nil
}

// notInCart is returned when a cart command targets a book the cart lacks.
func notInCart(id int64) error {
	return fmt.Errorf("cart: %w", models.NotFound(id))
}

var cartCmd = &cobra.Command{
	Use:     "cart",
	Short:   "Manage the session cart",
	GroupID: "cart",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCart(cmd, func(*cart.Cart) (bool, error) { return false, nil })
	},
}

var cartShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the cart and its total",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCart(cmd, func(*cart.Cart) (bool, error) { return false, nil })
	},
}

var cartAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add a book to the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		qty, _ := cmd.Flags().GetInt("qty")
		if qty < 1 {
			return &models.ValidationError{Field: "qty", Message: "quantity must be at least 1"}
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
		return withCart(cmd, func(c *cart.Cart) (bool, error) {
			c.Add(book, qty)
			return true, nil
		})
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a book from the cart",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cartEntryCmd(cmd, args[0], func(c *cart.Cart, id int64) bool { return c.Remove(id) })
	},
}

var cartQtyCmd = &cobra.Command{
	Use:   "qty <id> <quantity>",
	Short: "Set the quantity of a cart entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.Atoi(args[1])
		if err != nil || qty < 1 {
			return &models.ValidationError{Field: "qty", Message: fmt.Sprintf("invalid quantity %q", args[1])}
		}
		return cartEntryCmd(cmd, args[0], func(c *cart.Cart, id int64) bool { return c.SetQuantity(id, qty) })
	},
}

var cartIncCmd = &cobra.Command{
	Use:   "inc <id>",
	Short: "Increase the quantity of a cart entry by one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cartEntryCmd(cmd, args[0], func(c *cart.Cart, id int64) bool { return c.Increment(id) })
	},
}

var cartDecCmd = &cobra.Command{
	Use:   "dec <id>",
	Short: "Decrease the quantity of a cart entry by one (minimum 1)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cartEntryCmd(cmd, args[0], func(c *cart.Cart, id int64) bool { return c.Decrement(id) })
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCart(cmd, func(c *cart.Cart) (bool, error) {
			c.Clear()
			return true, nil
		})
	},
}

// cartEntryCmd applies fn to the entry named by arg, failing when it is absent.
func cartEntryCmd(cmd *cobra.Command, arg string, fn func(c *cart.Cart, id int64) bool) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	return withCart(cmd, func(c *cart.Cart) (bool, error) {
		if !fn(c, id) {
			return false, notInCart(id)
		}
		return true, nil
	})
}

func init() {
	cartAddCmd.Flags().IntP("qty", "n", 1, "quantity to add")

	cartCmd.AddCommand(cartShowCmd, cartAddCmd, cartRemoveCmd, cartQtyCmd, cartIncCmd, cartDecCmd, cartClearCmd)
	rootCmd.AddCommand(cartCmd)
}
