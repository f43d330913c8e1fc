// Package status implements spec.md's ambient status/diagnostics surface
// (SPEC_FULL.md §4.6): a read-only HTTP server exposing a JSON snapshot of
// Peer session state and the Prometheus metrics registry, grounded on
// Tutu-Engine-tutuengine/internal/api/server.go's chi-router-plus-promhttp
// shape.
package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lzarth/trisp2p/internal/peer"
)

// Snapshotter is the read-only view the status server needs from a Peer;
// it never touches any other Peer method, so this surface cannot mutate
// session state.
type Snapshotter interface {
	Snapshot() peer.Snapshot
}

// Server serves GET /status and GET /metrics on its own listener, separate
// from the peer's RPC transport.
type Server struct {
	addr string
	p    Snapshotter
	log  *zap.Logger
	srv  *http.Server
}

// NewServer builds a status server bound to addr (host:port, or ":0" for an
// ephemeral port in tests). It does not yet listen.
func NewServer(addr string, p Snapshotter, log *zap.Logger) *Server {
	s := &Server{addr: addr, p: p, log: log}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())
	s.srv = &http.Server{Handler: r}
	return s
}

// Start binds the listener and serves in the background. A bind failure is
// returned to the caller, who per SPEC_FULL.md §4.6 treats it as non-fatal
// to the peer process: log and carry on without diagnostics.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr().String()
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Warn("status server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, useful once ":0" has resolved to a real
// port.
func (s *Server) Addr() string { return s.addr }

// Close shuts the server down, satisfying the Close() error shape closeAll
// aggregates with go.uber.org/multierr.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

type statusBody struct {
	ID                string `json:"id"`
	InGame            bool   `json:"in_game"`
	HasToken          bool   `json:"has_token"`
	Symbol            string `json:"symbol"`
	OpponentID        string `json:"opponent_id"`
	LastOpponentID    string `json:"last_opponent_id"`
	LookingForMatches bool   `json:"looking_for_matches"`
	DiscoveredPeers   int    `json:"discovered_peers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.p.Snapshot()
	ObserveDiscoveredPeers(snap.DiscoveredPeers)

	body := statusBody{
		ID:                snap.ID,
		InGame:            snap.InGame,
		HasToken:          snap.HasToken,
		Symbol:            string(snap.Symbol),
		OpponentID:        snap.OpponentID,
		LastOpponentID:    snap.LastOpponentID,
		LookingForMatches: snap.LookingForMatches,
		DiscoveredPeers:   snap.DiscoveredPeers,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
