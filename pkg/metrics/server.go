package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartServer exposes /metrics and the extra routes on port so a long run
// can be scraped while it progresses. It returns the server's Shutdown.
func (m *Metrics) StartServer(port int, extra map[string]http.Handler) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	for pattern, h := range extra {
		mux.Handle(pattern, h)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	log := slog.Default().With("component", "metrics-server", "addr", srv.Addr)
	go func() {
		log.Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	return srv.Shutdown
}
