package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"PrimeBoard/internal/broadcast"
	"PrimeBoard/internal/observability"
	"PrimeBoard/internal/state"
)

// Server is the viewer-facing front door: WebSocket upgrades, a pull-style
// snapshot endpoint, health probes, and the static dashboard assets. All
// state lives behind the store and the hub.
type Server struct {
	addr      string
	publicDir string
	hub       *broadcast.Hub
	store     *state.Store
	health    *observability.HealthChecker
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

func New(addr, publicDir string, hub *broadcast.Hub, store *state.Store, health *observability.HealthChecker, log zerolog.Logger) *Server {
	return &Server{
		addr:      addr,
		publicDir: publicDir,
		hub:       hub,
		store:     store,
		health:    health,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard is served from arbitrary hosts.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run serves until ctx is canceled. A bind failure here is the only
// process-fatal runtime condition.
func (s *Server) Run(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)
	r.Get("/api/snapshot", s.handleSnapshot)
	r.Get("/ws", s.handleWS)
	r.Handle("/*", http.FileServer(http.Dir(s.publicDir)))

	srv := &http.Server{
		Addr:    s.addr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.log.Info().Str("addr", s.addr).Msg("front door listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleWS upgrades a viewer connection and hands it to the hub, which
// immediately pushes the current snapshot.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	v := s.hub.Attach(conn)
	s.log.Debug().Str("viewer", v.ID().String()).Str("remote", r.RemoteAddr).Msg("viewer attached")
}

// handleSnapshot serves the current aggregate snapshot to pull-style clients.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.store.Snapshot()); err != nil {
		s.log.Warn().Err(err).Msg("snapshot encode failed")
	}
}
