package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/getflowline/flowline/common/logger"
)

// Telemetry serves the pprof debug endpoints on a localhost-only port
type Telemetry struct {
	log    *logger.Logger
	server *http.Server
}

// New creates the debug server; Start actually binds it
func New(pprofPort int, log *logger.Logger) *Telemetry {
	return &Telemetry{
		log: log,
		server: &http.Server{
			// DefaultServeMux carries the pprof handlers via the blank import
			Addr:    fmt.Sprintf("localhost:%d", pprofPort),
			Handler: http.DefaultServeMux,
		},
	}
}

// Start serves pprof in the background
func (t *Telemetry) Start(ctx context.Context) error {
	go func() {
		t.log.Info("pprof server starting", "addr", t.server.Addr)
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Error("pprof server error", "error", err)
		}
	}()

	return nil
}

// Shutdown stops the debug server
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.server.Shutdown(ctx)
}
