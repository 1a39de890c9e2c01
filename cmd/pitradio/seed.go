package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grandstand/pitradio/internal/db"
	"github.com/grandstand/pitradio/internal/schedule"
)

func newSeedCmd() *cobra.Command {
	var (
		configPath   string
		schedulePath string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed sessions from a schedule file",
		Long:  "Migrates the schema and upserts the race calendar. Re-seeding an updated calendar revises existing sessions in place.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, configPath, schedulePath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&schedulePath, "schedule", "schedule.yaml", "path to schedule YAML file")
	return cmd
}

func runSeed(cmd *cobra.Command, configPath, schedulePath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	entries, err := schedule.Load(schedulePath)
	if err != nil {
		return err
	}
	if err := schedule.Seed(gormDB, entries); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Seeded %d sessions from %s:\n", len(entries), schedulePath)
	for _, e := range entries {
		fmt.Fprintf(out, "  %s  %s %s\n", e.SessionID, e.EventName, e.SessionType)
	}
	return nil
}
