package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations to the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		applied, err := theApp.Migrations().Run(ctx)
		if err != nil {
			return err
		}
		version, err := theApp.Migrations().Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s); schema version %d\n", applied, version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
