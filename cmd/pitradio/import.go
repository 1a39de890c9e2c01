package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grandstand/pitradio/internal/metrics"
)

func newImportCmd() *cobra.Command {
	var (
		configPath string
		token      string
		sessionID  string
		startStr   string
		endStr     string
		channelID  string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Ingest a session's messages on demand",
		Long: `Runs one ingestion pass for a session. Without --start/--end the whole
session interval is fetched; with them, only the given window (RFC 3339).
Safe to re-run: records already stored are revised in place, never duplicated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, configPath, token, sessionID, startStr, endStr, channelID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&token, "token", "", "Discord token (overrides DISCORD_TOKEN and config)")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "session to ingest (required)")
	cmd.Flags().StringVar(&startStr, "start", "", "window start, RFC 3339 (default: session start)")
	cmd.Flags().StringVar(&endStr, "end", "", "window end, RFC 3339 (default: session end)")
	cmd.Flags().StringVar(&channelID, "channel-id", "", "Discord channel (default: config channel)")
	cmd.MarkFlagRequired("session-id")
	return cmd
}

func runImport(cmd *cobra.Command, configPath, token, sessionID, startStr, endStr, channelID string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	tok, err := resolveToken(cmd, cfg, token)
	if err != nil {
		return err
	}
	engine, err := buildEngine(cmd, cfg, gormDB, tok, metrics.New())
	if err != nil {
		return err
	}

	if channelID == "" {
		channelID = cfg.Discord.ChannelID
	}

	ctx := context.Background()
	if startStr == "" && endStr == "" {
		report, err := engine.IngestSession(ctx, sessionID, channelID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", report.Summary())
		return nil
	}
	if startStr == "" || endStr == "" {
		return fmt.Errorf("--start and --end must be given together")
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return fmt.Errorf("parse --start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return fmt.Errorf("parse --end: %w", err)
	}

	report, err := engine.Ingest(ctx, sessionID, channelID, start.UTC(), end.UTC())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", report.Summary())
	return nil
}
