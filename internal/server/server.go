// Package server hosts the HTTP/WebSocket endpoint: connection lifecycle,
// the per-session message loop, and region-scoped broadcasting.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/dmtrv/minefield/internal/config"
	"github.com/dmtrv/minefield/internal/db"
	"github.com/dmtrv/minefield/internal/engine"
	"github.com/dmtrv/minefield/internal/model"
	"github.com/dmtrv/minefield/internal/session"
	"github.com/dmtrv/minefield/internal/world"
)

// readLimit bounds inbound frame size. The largest legal client message is
// a few dozen bytes of JSON.
const readLimit = 4 << 10

// CellReader is the snapshot side of the persistence layer used when a
// player connects.
type CellReader interface {
	GetCellsInRegion(ctx context.Context, reg world.Region) ([]model.Cell, error)
}

// Server accepts websocket connections and runs a session for each.
type Server struct {
	cfg         config.Server
	store       *db.DB
	cells       CellReader
	registry    *session.Registry
	handler     *Handler
	broadcaster *Broadcaster
}

// NewServer wires the transport endpoint over the game components.
func NewServer(cfg config.Server, store *db.DB, cells CellReader, registry *session.Registry, eng *engine.Engine, players PlayerToucher) *Server {
	broadcaster := NewBroadcaster(registry)
	return &Server{
		cfg:         cfg,
		store:       store,
		cells:       cells,
		registry:    registry,
		handler:     NewHandler(eng, registry, broadcaster, players),
		broadcaster: broadcaster,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully: stop
// accepting, close every session, and let the read loops drain.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)
	if s.cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
		s.registry.CloseAll()
	}()

	slog.Info("server started", "address", addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving on %s: %w", addr, err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleWS upgrades the connection and runs the session until the client
// goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(readLimit)

	ctx := r.Context()
	cl := newClient(conn, r.RemoteAddr, s.cfg.SendQueueSize, s.cfg.WriteTimeout)
	go cl.writePump()
	defer cl.Close()

	slog.Info("new connection", "remote", r.RemoteAddr)

	sess, err := s.registry.Add(ctx, cl)
	if err != nil {
		slog.Error("creating session", "remote", r.RemoteAddr, "error", err)
		conn.Close(websocket.StatusInternalError, "session setup failed")
		return
	}
	defer s.onDisconnect(sess, cl)

	if err := s.onConnect(ctx, sess); err != nil {
		slog.Error("assembling initial state", "player", sess.PlayerID(), "error", err)
		return
	}

	s.readLoop(ctx, conn, sess, r.RemoteAddr)
}

// readLoop pumps inbound frames into the handler until the transport
// closes or the handler demands termination.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session, remote string) {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				slog.Info("client disconnected", "player", sess.PlayerID(), "remote", remote)
			} else {
				slog.Warn("read failed", "player", sess.PlayerID(), "remote", remote, "error", err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		if err := s.handler.HandleMessage(ctx, sess, data); err != nil {
			slog.Error("terminating session", "player", sess.PlayerID(), "error", err)
			return
		}
	}
}

// onConnect assembles the initial snapshot for a fresh session and
// announces it to the neighbourhood.
func (s *Server) onConnect(ctx context.Context, sess *session.Session) error {
	x, y := sess.Cursor()
	viewport := world.Viewport(x, y)

	cells, err := s.cells.GetCellsInRegion(ctx, viewport)
	if err != nil {
		return fmt.Errorf("loading initial cells: %w", err)
	}

	nearby := s.registry.SessionsInRegion(viewport, sess.PlayerID())
	players := make([]playerView, len(nearby))
	for i, n := range nearby {
		players[i] = playerView{ID: n.PlayerID, X: n.X, Y: n.Y}
	}

	frame, err := encode(msgInitialState, initialStateData{
		PlayerID: sess.PlayerID(),
		Score:    sess.Score(),
		MapChunk: mapChunk{Cells: viewsOf(cells)},
		Players:  players,
		Self:     selfView{X: x, Y: y},
	})
	if err != nil {
		return err
	}
	if err := sess.Transport().Enqueue(frame); err != nil {
		return fmt.Errorf("sending initial state: %w", err)
	}

	joined, err := encode(msgPlayerJoined, playerJoinedData{ID: sess.PlayerID(), X: x, Y: y})
	if err != nil {
		return err
	}
	s.broadcaster.Broadcast(viewport, joined, sess.PlayerID())

	slog.Info("player joined", "player", sess.PlayerID(), "x", x, "y", y)
	return nil
}

// onDisconnect purges the session and announces the departure from the
// last known cursor. Idempotent: a session already removed is a no-op.
func (s *Server) onDisconnect(sess *session.Session, transport session.Transport) {
	// Lifecycle cleanup must run even when the root context is gone.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	x, y := sess.Cursor()
	if removed := s.registry.Remove(ctx, transport); removed == nil {
		return
	}

	left, err := encode(msgPlayerLeft, playerLeftData{ID: sess.PlayerID()})
	if err != nil {
		slog.Error("encoding playerLeft", "error", err)
		return
	}
	s.broadcaster.Broadcast(world.Viewport(x, y), left, sess.PlayerID())

	slog.Info("player left", "player", sess.PlayerID())
}
