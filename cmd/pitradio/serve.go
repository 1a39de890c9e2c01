package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grandstand/pitradio/internal/api"
	"github.com/grandstand/pitradio/internal/metrics"
	"github.com/grandstand/pitradio/internal/poller"
	"github.com/grandstand/pitradio/internal/resolver"
	"github.com/grandstand/pitradio/internal/session"
	"github.com/grandstand/pitradio/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		token      string
		port       int
		withPoll   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long:  "Serves the state-as-of query, session listing, fetch trigger, and Prometheus metrics. With --poll, also runs the ingestion scheduler in the same process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, token, port, withPoll)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&token, "token", "", "Discord token (overrides DISCORD_TOKEN and config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().BoolVar(&withPoll, "poll", false, "also run the poll scheduler")
	return cmd
}

func runServe(cmd *cobra.Command, configPath, token string, port int, withPoll bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	tok, err := resolveToken(cmd, cfg, token)
	if err != nil {
		return err
	}

	m := metrics.New()
	engine, err := buildEngine(cmd, cfg, gormDB, tok, m)
	if err != nil {
		return err
	}

	registry := session.NewRegistry(gormDB)
	res, err := resolver.New(resolver.Opts{
		Registry: registry,
		Store:    store.New(gormDB),
		Interval: cfg.Interval(),
		Metrics:  m,
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

	pollDone := make(chan struct{})
	if withPoll {
		p, err := poller.New(poller.Opts{
			Registry:     registry,
			Engine:       engine,
			ChannelID:    cfg.Discord.ChannelID,
			Interval:     cfg.Interval(),
			BackfillCron: cfg.Poll.BackfillCron,
			Out:          cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		go func() {
			defer close(pollDone)
			p.Run(ctx)
		}()
	} else {
		close(pollDone)
	}

	if port <= 0 {
		port = cfg.HTTP.Port
	}
	serveErr := api.Start(ctx, api.StartOpts{
		Registry:  registry,
		Resolver:  res,
		Engine:    engine,
		Metrics:   m,
		ChannelID: cfg.Discord.ChannelID,
		Port:      port,
		Out:       cmd.OutOrStdout(),
	})

	// Let the poller finish its tick before returning.
	select {
	case <-pollDone:
	case <-time.After(10 * time.Second):
	}
	return serveErr
}
