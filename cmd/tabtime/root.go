package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JamesPrial/tabtime/internal/app"
	"github.com/JamesPrial/tabtime/internal/config"
	"github.com/JamesPrial/tabtime/internal/logging"
)

// theApp is opened in PersistentPreRunE and closed after the command runs.
var theApp *app.App

var rootCmd = &cobra.Command{
	Use:          "tabtime",
	Short:        "Inspect and maintain tabtime's per-site browsing time log",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		a, err := app.Open(cfg, logging.New(cfg.Logging, os.Stderr))
		if err != nil {
			return err
		}
		theApp = a

		// migrate reports what it applies itself.
		if cmd.Name() == "migrate" {
			return nil
		}
		return theApp.Migrate(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

func closeApp() error {
	if theApp == nil {
		return nil
	}
	err := theApp.Close()
	theApp = nil
	return err
}
