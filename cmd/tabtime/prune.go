package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneDays int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete day buckets older than the retention horizon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pruneDays < 0 {
			return fmt.Errorf("--days must not be negative")
		}
		n, err := theApp.Prune(cmd.Context(), pruneDays)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d day(s)\n", n)
		return nil
	},
}

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "days to keep (default: configured retention)")
	rootCmd.AddCommand(pruneCmd)
}
