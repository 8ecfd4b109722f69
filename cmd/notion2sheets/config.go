package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caiotarifa/notion2sheets/internal/app"
	"github.com/caiotarifa/notion2sheets/internal/config"
	"github.com/caiotarifa/notion2sheets/internal/database"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		cfg.Collections = []config.CollectionConfig{{
			Name:             "Example",
			NotionDatabaseID: "<notion database id>",
			GoogleSheetID:    "<google spreadsheet id>",
			GoogleSheetName:  "Sheet1",
		}}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		db, err := database.NewDatabaseFromConfig(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		if err := db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Edit the [[collections]] entries before running 'notion2sheets sync'.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		locale := cfg.Locale
		if locale == "" {
			locale = "(raw values)"
		}
		timezone := cfg.Timezone
		if timezone == "" {
			timezone = "UTC"
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Locale:      %s\n", locale)
		fmt.Printf("Timezone:    %s\n", timezone)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Checkpoints: %s\n", cfg.Checkpoint.Type)

		fmt.Printf("\nCollections (%d):\n", len(cfg.Collections))
		for _, c := range cfg.SyncCollections() {
			fmt.Printf("  %-20s %s -> %s [%s]\n", c.Label(), c.DatabaseID, c.SpreadsheetID, c.TabName)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
}
