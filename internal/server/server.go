// Package server is the HTTP gateway (SPEC_FULL.md §10): one route,
// GET /<action>, dispatching to the persistence, auth, and graph-execution
// collaborators the way the original system's GatewayService routed to its
// sibling RPC services.
package server

import (
	"context"
	"net"
	"sync"

	"github.com/rakunlabs/ada"
	"github.com/rakunlabs/flowgraph/internal/auth"
	"github.com/rakunlabs/flowgraph/internal/config"
	"github.com/rakunlabs/flowgraph/internal/graph"
	"github.com/rakunlabs/flowgraph/internal/store"

	mcors "github.com/rakunlabs/ada/middleware/cors"
	mlog "github.com/rakunlabs/ada/middleware/log"
	mrecover "github.com/rakunlabs/ada/middleware/recover"
	mrequestid "github.com/rakunlabs/ada/middleware/requestid"
	mserver "github.com/rakunlabs/ada/middleware/server"
	mtelemetry "github.com/rakunlabs/ada/middleware/telemetry"
)

type Server struct {
	config config.Server
	server *ada.Server

	store         store.Store
	authenticator auth.Authenticator
	authorizer    auth.Authorizer

	execEnv     graph.ExecutionEnv
	llmProvider graph.LLMProvider

	// graphLocksMu guards graphLocks; each entry serializes the mutating
	// actions (edit/run/delete/share) on one graph id, matching the
	// single-writer rule in SPEC_FULL.md §5 ("a per-graph mutex held by the
	// gateway handler").
	graphLocksMu sync.Mutex
	graphLocks   map[string]*sync.Mutex
}

func New(
	cfg config.Server,
	st store.Store,
	authenticator auth.Authenticator,
	authorizer auth.Authorizer,
	execEnv graph.ExecutionEnv,
	llmProvider graph.LLMProvider,
) (*Server, error) {
	mux := ada.New()
	mux.Use(
		mrecover.Middleware(),
		mserver.Middleware(config.Service),
		mcors.Middleware(),
		mrequestid.Middleware(),
		mlog.Middleware(),
		mtelemetry.Middleware(),
	)

	s := &Server{
		config:        cfg,
		server:        mux,
		store:         st,
		authenticator: authenticator,
		authorizer:    authorizer,
		execEnv:       execEnv,
		llmProvider:   llmProvider,
		graphLocks:    make(map[string]*sync.Mutex),
	}

	baseGroup := mux.Group(cfg.BasePath)
	baseGroup.GET("/{action}", s.handleAction)

	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	return s.server.StartWithContext(ctx, net.JoinHostPort(s.config.Host, s.config.Port))
}

// lockGraph returns an unlock func serializing callers on the same graph id.
func (s *Server) lockGraph(graphID string) func() {
	s.graphLocksMu.Lock()
	mu, ok := s.graphLocks[graphID]
	if !ok {
		mu = &sync.Mutex{}
		s.graphLocks[graphID] = mu
	}
	s.graphLocksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
