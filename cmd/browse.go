package cmd

import (
	"time"

	"github.com/marcus/shelf/internal/cart"
	"github.com/marcus/shelf/pkg/browse"
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:     "browse",
	Aliases: []string{"ui"},
	Short:   "Open the interactive catalog browser",
	Long: `Open a full-screen catalog browser. The header shows whether the catalog API is
reachable; the list follows it automatically. Press ? inside for key bindings.`,
	GroupID: "catalog",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		path := cartPath()
		c, err := cart.Load(path)
		if err != nil {
			return err
		}

		interval, _ := cmd.Flags().GetDuration("probe-interval")
		return browse.Run(cmd.Context(), sess.svc, browse.Options{
			Cart:          c,
			CartPath:      path,
			Prober:        sess.prober,
			ProbeInterval: interval,
		})
	},
}

func init() {
	browseCmd.Flags().Duration("probe-interval", 5*time.Second, "how often to re-check connectivity")
	rootCmd.AddCommand(browseCmd)
}
