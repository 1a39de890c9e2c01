package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grandstand/pitradio/internal/ingest"
	"github.com/grandstand/pitradio/internal/resolver"
	"github.com/grandstand/pitradio/internal/session"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/api/health", handleHealth())
	router.GET("/api/current_state", handleCurrentState(opts.Resolver))
	router.GET("/api/sessions", handleSessionList(opts.Registry))
	router.POST("/api/sessions/:session_id/fetch", handleFetch(opts.Engine, opts.ChannelID))

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			opts.Metrics.Registry, promhttp.HandlerOpts{})))
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// handleCurrentState answers "what was on the radio as of T". The timestamp
// query parameter is required and must be RFC 3339, offset included; a naive
// timestamp fails the parse.
func handleCurrentState(res *resolver.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("timestamp")
		if raw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp query parameter is required"})
			return
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "timestamp must be RFC 3339, got " + raw,
			})
			return
		}
		ts := parsed.UTC()

		view, err := res.Resolve(ts)
		switch {
		case errors.Is(err, resolver.ErrInvalidTimestamp):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, resolver.ErrNoSession):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, view)
		}
	}
}

func handleSessionList(registry *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var year *int
		if raw := c.Query("year"); raw != "" {
			y, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "year must be an integer, got " + raw})
				return
			}
			year = &y
		}

		sessions, err := registry.List(year)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}

// handleFetch triggers a full-session ingest. The call is synchronous: the
// response carries the ingestion report.
func handleFetch(engine *ingest.Engine, channelID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")

		report, err := engine.IngestSession(c.Request.Context(), sessionID, channelID)
		switch {
		case errors.Is(err, session.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case err != nil:
			// Partial counts from before the failure still ship with the error.
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":  err.Error(),
				"report": report,
			})
		default:
			c.JSON(http.StatusOK, report)
		}
	}
}
