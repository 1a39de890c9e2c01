// Package api exposes the JSON HTTP surface: the state-as-of query, session
// listing, the on-demand fetch trigger, and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grandstand/pitradio/internal/ingest"
	"github.com/grandstand/pitradio/internal/metrics"
	"github.com/grandstand/pitradio/internal/resolver"
	"github.com/grandstand/pitradio/internal/session"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Registry *session.Registry
	Resolver *resolver.Resolver
	Engine   *ingest.Engine
	Metrics  *metrics.Metrics
	// ChannelID is the Discord channel the fetch trigger ingests from.
	ChannelID string
	Port      int
	Out       io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then shuts
// down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the Gin router with all routes registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("api: registry is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("api: resolver is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("api: engine is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)
	return router, nil
}
