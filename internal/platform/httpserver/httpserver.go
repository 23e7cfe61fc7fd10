// Package httpserver builds the registry's HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// Registry requests are small JSON bodies answered synchronously, so the
// timeouts are tight: anything holding a connection past these is a stuck
// client, not a slow operation.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 15 * time.Second
	idleTimeout       = 60 * time.Second
)

// New builds the server serving the registry surface.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
