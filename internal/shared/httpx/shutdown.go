package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// WaitAndShutdown blocks until SIGINT/SIGTERM or ctx is done, then drains
// every server within timeout.
func WaitAndShutdown(ctx context.Context, log *slog.Logger, timeout time.Duration, servers ...*http.Server) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	log.Info("shutdown_start")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown_failed", slog.String("addr", srv.Addr), slog.String("err", err.Error()))
		}
	}

	log.Info("shutdown_done")
}
