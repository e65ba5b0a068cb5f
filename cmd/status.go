package cmd

import (
	"fmt"

	"github.com/marcus/shelf/internal/cart"
	"github.com/marcus/shelf/internal/output"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show connectivity, local store and cart summary",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		ctx := cmd.Context()
		online := sess.svc.Online(ctx)
		local, err := sess.db.CountBooks(ctx)
		if err != nil {
			return err
		}
		c, err := cart.Load(cartPath())
		if err != nil {
			return err
		}

		if jsonOutput(cmd) {
			return output.JSON(map[string]any{
				"online":      online,
				"server":      serverURL(cmd),
				"database":    sess.db.FilePath(),
				"local_books": local,
				"cart_items":  c.Count(),
				"cart_total":  c.Total(),
			})
		}

		fmt.Println(output.ConnectivityBadge(online))
		fmt.Printf("Server:      %s\n", serverURL(cmd))
		fmt.Printf("Database:    %s\n", sess.db.FilePath())
		fmt.Printf("Local books: %d\n", local)
		fmt.Printf("Cart:        %d items, %s\n", c.Count(), output.FormatPrice(c.Total()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
