// Package api exposes the REST and realtime boundaries of the presence
// core: the websocket endpoint for agent clients, the read API consumed by
// the CRM view layer, and an SSE stream for the supervisor wallboard.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dialflow/floorwatch/internal/channel"
	"github.com/dialflow/floorwatch/internal/heartbeat"
	"github.com/dialflow/floorwatch/internal/ledger"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Hub        *channel.Hub
	Ledger     *ledger.Ledger
	Heartbeats *heartbeat.Store
	Port       int
	Out        io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Hub == nil {
		return fmt.Errorf("api: hub is required")
	}
	if opts.Ledger == nil {
		return fmt.Errorf("api: ledger is required")
	}
	if opts.Heartbeats == nil {
		return fmt.Errorf("api: heartbeat store is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8090
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Presence API listening on %s\n", addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
