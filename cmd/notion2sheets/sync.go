package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync changed Notion pages into their sheets",
	RunE: func(cmd *cobra.Command, args []string) error {
		only, _ := cmd.Flags().GetStringSlice("collection")
		full, _ := cmd.Flags().GetBool("full")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Sync(cmd.Context(), n2s.SyncOptions{Full: full, DryRun: dryRun, Only: only})
		for _, r := range results {
			printResult(r)
		}
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		return nil
	},
}

func printResult(r *n2s.CollectionResult) {
	label := r.Collection.Label()
	if r.Err != nil {
		fmt.Printf("%-20s  failed   %v\n", label, r.Err)
		return
	}

	status := r.Run.Status
	if r.Reconcile == nil {
		fmt.Printf("%-20s  %-7s  no changes\n", label, status)
		return
	}
	header := ""
	if r.Reconcile.HeaderReplaced {
		header = "  header replaced"
	}
	elapsed := ""
	if r.Run.FinishedAt != nil {
		elapsed = "  " + r.Run.FinishedAt.Sub(r.Run.StartedAt).Truncate(time.Millisecond).String()
	}
	fmt.Printf("%-20s  %-7s  %d fetched, %d replaced, %d appended%s%s\n",
		label, status, r.Rows, r.Reconcile.Deleted, r.Reconcile.Appended, header, elapsed)
}

func init() {
	syncCmd.Flags().StringSliceP("collection", "c", nil, "Sync only these collections (name or database ID)")
	syncCmd.Flags().Bool("full", false, "Ignore checkpoints and fetch every page")
	syncCmd.Flags().Bool("dry-run", false, "Plan sheet edits without writing or checkpointing")
}
