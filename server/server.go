// Package server wires the Request Orchestrator to an HTTP surface,
// modeled on the teacher's registry server: gorilla/mux routing, a
// combined access log, panic recovery, and graceful shutdown on
// SIGINT/SIGTERM.
package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	digest "github.com/opencontainers/go-digest"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/SiestaCat/dep-cache-proxy-server/internal/dcontext"
	"github.com/SiestaCat/dep-cache-proxy-server/orchestrator"
)

// Server is a complete instance of the cache proxy's HTTP interface.
type Server struct {
	httpServer *http.Server
	quit       chan os.Signal
}

// New builds a Server that dispatches resolve and download requests to
// orch. accessLog disables the combined access log when false, mirroring
// the teacher's Log.AccessLog.Disabled switch.
func New(ctx context.Context, addr string, orch *orchestrator.Orchestrator, algorithm digest.Algorithm, accessLog bool) *Server {
	router := newRouter(ctx, orch, algorithm)

	var handler http.Handler = router
	handler = recoverPanic(ctx, handler)
	if accessLog {
		handler = handlers.CombinedLoggingHandler(os.Stdout, handler)
	}

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: handler},
		quit:       make(chan os.Signal, 1),
	}
}

func newRouter(ctx context.Context, orch *orchestrator.Orchestrator, algorithm digest.Algorithm) *mux.Router {
	router := mux.NewRouter()
	h := &api{ctx: ctx, orchestrator: orch, algorithm: algorithm}

	router.HandleFunc("/v1/resolve", h.resolve).Methods(http.MethodPost)
	router.HandleFunc("/download/{bundleID}.zip", h.download).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)

	return router
}

// ListenAndServe runs the server until a SIGINT/SIGTERM arrives, then
// drains in-flight requests for drainTimeout before returning.
func (s *Server) ListenAndServe(drainTimeout time.Duration) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	if drainTimeout == 0 {
		return s.httpServer.Serve(ln)
	}

	signal.Notify(s.quit, os.Interrupt, syscall.SIGTERM)
	serveErr := make(chan error, 1)

	go func() {
		serveErr <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-s.quit:
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// recoverPanic turns a handler panic into a 500 response instead of
// crashing the process, logging the recovered value.
func recoverPanic(ctx context.Context, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				dcontext.GetLogger(ctx).Errorf("server: recovered from panic: %v", rec)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
