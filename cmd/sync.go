package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/shelf/internal/catalog"
	"github.com/marcus/shelf/internal/output"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload local changes to the catalog API",
	Long: `Upload local changes to the catalog API. Books added locally are created on the
server, cached books edited locally overwrite the server copy. Books already synced are
refreshed from the server. A failed record stays pending and does not stop the batch.

With --full the remote catalog is pulled afterwards, as 'shelf pull' does.`,
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		if full, _ := cmd.Flags().GetBool("full"); full {
			return runFullSync(cmd, sess)
		}

		res, err := sess.svc.Sync(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput(cmd) {
			if err := output.JSON(syncJSON(res)); err != nil {
				return err
			}
		} else {
			printSyncResult(res)
		}
		if !res.OK() {
			return reported(fmt.Errorf("sync incomplete: %w", res.Err()))
		}
		return nil
	},
}

func runFullSync(cmd *cobra.Command, sess *session) error {
	res, err := sess.svc.FullSync(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		if err := output.JSON(map[string]any{
			"ok":     res.OK(),
			"upload": syncJSON(res.Upload),
			"pull":   pullJSON(res.Download),
		}); err != nil {
			return err
		}
	} else {
		printSyncResult(res.Upload)
		printPullResult(res.Download)
	}
	if !res.OK() {
		return reported(fmt.Errorf("sync incomplete: %w", res.Err()))
	}
	return nil
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Cache the remote catalog locally",
	Long: `Copy every remote book into the local store so the catalog can be browsed offline.
Books with unsynced local changes are kept for the next 'shelf sync'. Synced copies of
books the server no longer has are removed.`,
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		res, err := sess.svc.Pull(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput(cmd) {
			if err := output.JSON(pullJSON(res)); err != nil {
				return err
			}
		} else {
			printPullResult(res)
		}
		if !res.OK() {
			return reported(fmt.Errorf("pull incomplete: %w", res.Err()))
		}
		return nil
	},
}

func syncJSON(res catalog.SyncResult) map[string]any {
	return map[string]any{
		"ok":        res.OK(),
		"created":   res.Created,
		"updated":   res.Updated,
		"rekeyed":   res.Rekeyed,
		"refreshed": res.Refreshed,
		"dropped":   res.Dropped,
		"unchanged": res.Unchanged,
		"failures":  failureStrings(res.Failures),
	}
}

func pullJSON(res catalog.PullResult) map[string]any {
	return map[string]any{
		"ok":        res.OK(),
		"stored":    res.Stored,
		"unchanged": res.Unchanged,
		"pending":   res.Pending,
		"pruned":    res.Pruned,
		"failures":  failureStrings(res.Failures),
	}
}

func printSyncResult(res catalog.SyncResult) {
	summary := fmt.Sprintf("%d created, %d updated, %d unchanged", res.Created, res.Updated, res.Unchanged)
	if res.Rekeyed > 0 {
		summary += fmt.Sprintf(", %d re-keyed", res.Rekeyed)
	}
	if res.Refreshed > 0 {
		summary += fmt.Sprintf(", %d refreshed", res.Refreshed)
	}
	if res.Dropped > 0 {
		summary += fmt.Sprintf(", %d dropped (deleted on server)", res.Dropped)
	}
	if res.OK() {
		output.Success("SYNCED %s", summary)
		return
	}
	output.Warning("SYNCED WITH ERRORS %s", summary)
	printFailures(res.Failures)
}

func printPullResult(res catalog.PullResult) {
	summary := fmt.Sprintf("%d stored, %d unchanged", res.Stored, res.Unchanged)
	if res.Pending > 0 {
		summary += fmt.Sprintf(", %d kept with unsynced changes", res.Pending)
	}
	if res.Pruned > 0 {
		summary += fmt.Sprintf(", %d removed", res.Pruned)
	}
	if res.OK() {
		output.Success("PULLED %s", summary)
		return
	}
	output.Warning("PULLED WITH ERRORS %s", summary)
	printFailures(res.Failures)
}

func printFailures(failures []*catalog.RecordError) {
	if len(failures) == 0 {
		return
	}
	fmt.Print(output.SectionHeader("failures"))
	fmt.Println(strings.Join(output.BulletList(failureStrings(failures), 2), "\n"))
}

func failureStrings(failures []*catalog.RecordError) []string {
	out := make([]string, len(failures))
	for i, f := range failures {
		out[i] = f.Error()
	}
	return out
}

func init() {
	syncCmd.Flags().Bool("full", false, "pull the remote catalog after uploading")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pullCmd)
}
