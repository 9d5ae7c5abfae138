package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trackerCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Show or change whether tab time is tracked",
}

var trackerEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable tab tracking",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTracking(cmd, true)
	},
}

var trackerDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable tab tracking",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTracking(cmd, false)
	},
}

var trackerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether tab tracking is enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fmt.Fprintf(cmd.OutOrStdout(), "Tracking: %s\n", enabledWord(theApp.TrackingEnabled(ctx)))

		info, err := theApp.Debug(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Days: %d\nEntries: %d\nOpen: %d\n", info.Days, info.Entries, info.Open)
		return nil
	},
}

func setTracking(cmd *cobra.Command, enabled bool) error {
	if err := theApp.SetTracking(cmd.Context(), enabled); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Tracking: %s\n", enabledWord(enabled))
	return nil
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func init() {
	trackerCmd.AddCommand(trackerEnableCmd, trackerDisableCmd, trackerStatusCmd)
	rootCmd.AddCommand(trackerCmd)
}
