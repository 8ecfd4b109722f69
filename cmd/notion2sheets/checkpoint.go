package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or reset sync checkpoints",
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		cps, err := a.Checkpoints()
		if err != nil {
			return err
		}
		if len(cps) == 0 {
			fmt.Println("No checkpoints recorded.")
			return nil
		}

		names := make(map[string]string)
		for _, c := range a.Collections() {
			names[c.DatabaseID] = c.Label()
		}
		for _, cp := range cps {
			name := names[cp.DatabaseID]
			if name == "" {
				name = "(not configured)"
			}
			fmt.Printf("%-36s  %-20s  %s  (%s ago)\n",
				cp.DatabaseID,
				name,
				n2s.FormatTimestamp(cp.SyncedAt),
				time.Since(cp.SyncedAt).Truncate(time.Second),
			)
		}
		return nil
	},
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset [COLLECTION]",
	Short: "Force the next sync of a collection to fetch everything",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return fmt.Errorf("specify a collection or --all")
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if all {
			if err := a.ResetAllCheckpoints(); err != nil {
				return err
			}
			fmt.Println("All checkpoints reset.")
			return nil
		}

		if err := a.ResetCheckpoint(args[0]); err != nil {
			return err
		}
		fmt.Printf("Checkpoint reset for %s\n", args[0])
		return nil
	},
}

func init() {
	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointResetCmd)
	checkpointResetCmd.Flags().Bool("all", false, "Reset every checkpoint")
}
