// Package webtransport is the Core side of the Core<->Clients wire
// interface (spec §6): the same {type, params} envelope pattern
// internal/periphclient speaks to Periphery, mounted over /auth, /read,
// /write, /execute, /user, /terminal, /listener, /ws. Dependencies,
// Server, NewServer, registerRoutes, ListenAndServe and Shutdown are
// carried from the teacher's internal/web/server.go verbatim in shape;
// only the route table and variant set are Core's own.
package webtransport

import (
	"context"
	"net/http"
	"time"

	"github.com/komodore/core/internal/clock"
	"github.com/komodore/core/internal/config"
	"github.com/komodore/core/internal/dispatch"
	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/permissions"
	"github.com/komodore/core/internal/periphclient"
	"github.com/komodore/core/internal/resources"
	"github.com/komodore/core/internal/scheduler"
	"github.com/komodore/core/internal/store"
	"github.com/komodore/core/internal/webhook"
)

// ClientFactory builds a periphclient.Client for a Server resource id,
// injected so this package never has to know how server configs are
// decoded out of a resource's raw Config blob.
type ClientFactory func(serverId string) (*periphclient.Client, error)

// Dependencies bundles every component the envelope layer calls into,
// the same "interfaces of narrow slices, bundled into one struct"
// shape as the teacher's internal/web.Dependencies.
type Dependencies struct {
	Store       *store.Store
	Facade      *resources.Facade
	Dispatcher  *dispatch.Dispatcher
	Permissions *permissions.Evaluator
	Scheduler   *scheduler.Scheduler
	Webhook     *webhook.Handler
	Clients     ClientFactory
	Updates     *UpdateBus
	Config      *config.Config
	Clock       clock.Clock
	Log         *logging.Logger
}

// Server is the Core<->Clients HTTP/WS transport.
type Server struct {
	*Executor
	deps   Dependencies
	mux    *http.ServeMux
	server *http.Server
	log    *logging.Logger
}

// NewServer constructs a Server and registers its routes.
func NewServer(deps Dependencies) *Server {
	s := &Server{
		Executor: NewExecutor(deps.Store, deps.Clients, deps.Dispatcher, deps.Clock),
		deps:     deps,
		mux:      http.NewServeMux(),
		log:      deps.Log.Component("webtransport"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /auth", authVariants.serveAnonWith(s))
	s.mux.HandleFunc("POST /read", readVariants.serveWith(s))
	s.mux.HandleFunc("POST /write", writeVariants.serveWith(s))
	s.mux.HandleFunc("POST /execute", executeVariants.serveWith(s))
	s.mux.HandleFunc("POST /user", userVariants.serveWith(s))
	s.mux.HandleFunc("POST /terminal", terminalVariants.serveWith(s))
	s.mux.HandleFunc("GET /ws/update", s.handleWsUpdate)
	s.mux.HandleFunc("GET /ws/terminal/{server}/{name}", s.handleWsTerminal)
	s.mux.HandleFunc("GET /ws/exec/{server}/{container}", s.handleWsExec)

	s.deps.Webhook.Register(s.mux)
}

// serveWith adapts a variantTable into an http.HandlerFunc bound to s —
// the indirection lets each route table be declared as a package-level
// var next to its handlers, the way the teacher groups handlers by
// concern across multiple files sharing one Dependencies.
func (t variantTable) serveWith(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.serve(s, w, r)
	}
}

// ListenAndServe starts the HTTP server on addr. WriteTimeout is left at
// zero because /ws/update and the terminal proxies are long-lived, the
// same tradeoff the teacher's server.go makes for its SSE stream.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	s.log.Info("webtransport listening", "addr", addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
