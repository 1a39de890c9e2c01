package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grandstand/pitradio/internal/metrics"
	"github.com/grandstand/pitradio/internal/poller"
	"github.com/grandstand/pitradio/internal/session"
)

func newPollCmd() *cobra.Command {
	var (
		configPath string
		token      string
	)

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run the ingestion scheduler",
		Long:  "Polls the export source on the configured interval while a session is live, ingesting each trailing window. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(cmd, configPath, token)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&token, "token", "", "Discord token (overrides DISCORD_TOKEN and config)")
	return cmd
}

func runPoll(cmd *cobra.Command, configPath, token string) error {
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

	p, err := poller.New(poller.Opts{
		Registry:     session.NewRegistry(gormDB),
		Engine:       engine,
		ChannelID:    cfg.Discord.ChannelID,
		Interval:     cfg.Interval(),
		BackfillCron: cfg.Poll.BackfillCron,
		Out:          cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	return p.Run(ctx)
}
