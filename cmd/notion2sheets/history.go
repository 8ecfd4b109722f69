package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No sync runs recorded.")
			return nil
		}

		for _, run := range runs {
			duration := ""
			if run.FinishedAt != nil {
				duration = run.FinishedAt.Sub(run.StartedAt).Truncate(time.Millisecond).String()
			}
			name := run.Collection
			if name == "" {
				name = run.DatabaseID
			}
			fmt.Printf("%s  %-20s  %-8s  %4d fetched  %4d appended  %s\n",
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				name,
				run.Status,
				run.RowsFetched,
				run.RowsAppended,
				duration,
			)
			if run.Error != "" {
				fmt.Printf("    %s\n", run.Error)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
}
