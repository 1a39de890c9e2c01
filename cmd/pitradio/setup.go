package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/grandstand/pitradio/internal/config"
	"github.com/grandstand/pitradio/internal/db"
	"github.com/grandstand/pitradio/internal/export"
	"github.com/grandstand/pitradio/internal/ingest"
	"github.com/grandstand/pitradio/internal/metrics"
	"github.com/grandstand/pitradio/internal/notify"
	"github.com/grandstand/pitradio/internal/session"
	"github.com/grandstand/pitradio/internal/store"
)

const defaultConfigPath = "pitradio.yaml"

// connectFromConfig loads the config file and opens the database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// resolveToken returns the Discord token: the --token flag wins, then the
// DISCORD_TOKEN environment variable, then the config file, then an
// interactive prompt when stdin is a terminal.
func resolveToken(cmd *cobra.Command, cfg *config.Config, flagToken string) (string, error) {
	if flagToken != "" {
		return flagToken, nil
	}
	if tok := os.Getenv("DISCORD_TOKEN"); tok != "" {
		return tok, nil
	}
	if cfg.Discord.Token != "" {
		return cfg.Discord.Token, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no Discord token: set --token, DISCORD_TOKEN, or discord.token in config")
	}

	fmt.Fprint(cmd.OutOrStdout(), "Discord token: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	tok := strings.TrimSpace(string(raw))
	if tok == "" {
		return "", fmt.Errorf("empty Discord token")
	}
	return tok, nil
}

// newFetcher builds the configured export source: DiscordChatExporter
// subprocess or the Discord REST API.
func newFetcher(cfg *config.Config, token string) (export.Fetcher, error) {
	switch cfg.Discord.Fetcher {
	case "exporter":
		return export.NewCLIFetcher(cfg.Discord.ExporterPath, token, cfg.Discord.ExportDir)
	case "api":
		return export.NewDiscordFetcher(export.DiscordFetcherOpts{BotToken: token})
	default:
		return nil, fmt.Errorf("unknown fetcher %q (want exporter or api)", cfg.Discord.Fetcher)
	}
}

// newNotifier builds the Slack notifier, or a no-op when Slack is not
// configured.
func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.Slack.BotToken == "" {
		return notify.Nop{}, nil
	}
	return notify.NewSlack(notify.SlackOpts{
		BotToken:  cfg.Slack.BotToken,
		ChannelID: cfg.Slack.ChannelID,
	})
}

// buildEngine wires the full ingestion pipeline from config.
func buildEngine(cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB, token string, m *metrics.Metrics) (*ingest.Engine, error) {
	fetcher, err := newFetcher(cfg, token)
	if err != nil {
		return nil, err
	}
	notifier, err := newNotifier(cfg)
	if err != nil {
		return nil, err
	}

	return ingest.NewEngine(ingest.EngineOpts{
		Registry:     session.NewRegistry(gormDB),
		Store:        store.New(gormDB),
		Fetcher:      fetcher,
		Metrics:      m,
		Notifier:     notifier,
		FetchTimeout: cfg.FetchTimeout(),
		Out:          cmd.OutOrStdout(),
	})
}
