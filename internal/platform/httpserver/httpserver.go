// Package httpserver builds the service's *http.Server.
package httpserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// New returns a server for handler on addr. Connection-level errors from
// net/http go to log at warn level, and every request context derives from
// base so cancelling it reaches in-flight handlers after shutdown.
func New(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
		MaxHeaderBytes:    64 << 10,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}
