package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmtrv/minefield/internal/db"
	"github.com/dmtrv/minefield/internal/engine"
	"github.com/dmtrv/minefield/internal/model"
	"github.com/dmtrv/minefield/internal/session"
	"github.com/dmtrv/minefield/internal/world"
)

// Transient repository errors are retried a bounded number of times before
// the action is reported as failed.
const (
	transientRetries   = 3
	transientRetryWait = 25 * time.Millisecond
)

// PlayerToucher refreshes the durable last_seen timestamp.
type PlayerToucher interface {
	TouchPlayer(ctx context.Context, id string) error
}

// Handler owns the per-session message loop: decode, validate, route into
// the engine, shape the outbound messages, and scope the broadcasts.
type Handler struct {
	engine      *engine.Engine
	registry    *session.Registry
	broadcaster *Broadcaster
	players     PlayerToucher
}

// NewHandler creates a message handler.
func NewHandler(eng *engine.Engine, registry *session.Registry, broadcaster *Broadcaster, players PlayerToucher) *Handler {
	return &Handler{
		engine:      eng,
		registry:    registry,
		broadcaster: broadcaster,
		players:     players,
	}
}

// HandleMessage processes one inbound frame for the session. A returned
// error means the session must be terminated; validation problems and
// transient failures are answered with an error reply instead.
func (h *Handler) HandleMessage(ctx context.Context, sess *session.Session, raw []byte) error {
	if err := h.players.TouchPlayer(ctx, sess.PlayerID()); err != nil {
		slog.Warn("touch player", "player", sess.PlayerID(), "error", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Debug("malformed frame", "player", sess.PlayerID(), "error", err)
		h.sendError(sess, "malformed message")
		return nil
	}

	switch env.Type {
	case msgClickCell:
		return h.handleClickCell(ctx, sess, env.Data)
	case msgFlagCell:
		return h.handleFlagCell(ctx, sess, env.Data)
	case msgUpdatePosition:
		return h.handleUpdatePosition(sess, env.Data)
	default:
		slog.Warn("unknown message kind", "type", env.Type, "player", sess.PlayerID())
		return nil
	}
}

func (h *Handler) handleClickCell(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var req clickCellData
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(sess, "malformed clickCell payload")
		return nil
	}
	if !world.InBounds(req.X, req.Y) {
		h.sendError(sess, fmt.Sprintf("coordinates (%d,%d) out of range", req.X, req.Y))
		return nil
	}

	var res engine.RevealResult
	err := h.withRetry(ctx, func() error {
		var revealErr error
		res, revealErr = h.engine.Reveal(ctx, sess.PlayerID(), req.X, req.Y)
		return revealErr
	})
	if err != nil {
		return h.actionFailed(sess, "reveal failed", err)
	}

	switch res.Kind {
	case engine.RevealIgnored:
		return nil

	case engine.RevealMineHit:
		h.registry.UpdateCachedScore(sess.PlayerID(), res.NewScore)
		h.sendTo(sess, msgPlayerPenalty, playerPenaltyData{
			Score:          res.NewScore,
			StunDurationMs: res.StunMs,
		})
		h.broadcastMapUpdate(req.X, req.Y, res.Cells)
		return nil

	case engine.RevealSafe:
		h.registry.UpdateCachedScore(sess.PlayerID(), res.NewScore)
		h.sendTo(sess, msgScoreUpdate, scoreUpdateData{Score: res.NewScore})
		h.broadcastMapUpdate(req.X, req.Y, res.Cells)
		return nil
	}
	return nil
}

func (h *Handler) handleFlagCell(ctx context.Context, sess *session.Session, data json.RawMessage) error {
	var req flagCellData
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(sess, "malformed flagCell payload")
		return nil
	}
	if !world.InBounds(req.X, req.Y) {
		h.sendError(sess, fmt.Sprintf("coordinates (%d,%d) out of range", req.X, req.Y))
		return nil
	}

	var res engine.FlagResult
	err := h.withRetry(ctx, func() error {
		var flagErr error
		res, flagErr = h.engine.ToggleFlag(ctx, sess.PlayerID(), req.X, req.Y)
		return flagErr
	})
	if err != nil {
		return h.actionFailed(sess, "flag toggle failed", err)
	}

	if res.Kind == engine.FlagIgnored {
		return nil
	}
	h.broadcastMapUpdate(req.X, req.Y, []model.Cell{res.Cell})
	return nil
}

func (h *Handler) handleUpdatePosition(sess *session.Session, data json.RawMessage) error {
	var req updatePositionData
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(sess, "malformed updatePosition payload")
		return nil
	}

	// Any numeric input is accepted; the registry clamps onto the map.
	h.registry.UpdateCursor(sess.PlayerID(), req.X, req.Y)
	x, y := sess.Cursor()

	frame, err := encode(msgPlayerPositionUpdate, playerPositionUpdateData{
		Players: []playerView{{ID: sess.PlayerID(), X: x, Y: y}},
	})
	if err != nil {
		slog.Error("encoding position update", "error", err)
		return nil
	}
	h.broadcaster.Broadcast(world.Viewport(x, y), frame, sess.PlayerID())
	return nil
}

// broadcastMapUpdate fans a cell delta out to the viewport centred on the
// acted-on cell. Recipients merge by (x,y), so redundant deliveries from
// concurrent actions are harmless.
func (h *Handler) broadcastMapUpdate(x, y int, cells []model.Cell) {
	frame, err := encode(msgMapUpdate, mapUpdateData{Cells: viewsOf(cells)})
	if err != nil {
		slog.Error("encoding map update", "error", err)
		return
	}
	h.broadcaster.Broadcast(world.Viewport(x, y), frame, "")
}

// sendTo encodes and enqueues a message for a single session.
func (h *Handler) sendTo(sess *session.Session, msgType string, data any) {
	frame, err := encode(msgType, data)
	if err != nil {
		slog.Error("encoding message", "type", msgType, "error", err)
		return
	}
	if err := sess.Transport().Enqueue(frame); err != nil {
		slog.Warn("sending to session", "player", sess.PlayerID(), "type", msgType, "error", err)
	}
}

// sendError sends a single error reply without dropping the session.
func (h *Handler) sendError(sess *session.Session, message string) {
	h.sendTo(sess, msgError, errorData{Message: message})
}

// actionFailed replies with an error and decides whether the session
// survives: fatal storage failures terminate it, everything else keeps it.
func (h *Handler) actionFailed(sess *session.Session, message string, err error) error {
	slog.Error(message, "player", sess.PlayerID(), "error", err)
	h.sendError(sess, message+", retry allowed")
	if db.IsFatal(err) {
		return fmt.Errorf("%s: %w", message, err)
	}
	return nil
}

// withRetry runs fn, retrying transient storage failures a bounded number
// of times.
func (h *Handler) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < transientRetries; attempt++ {
		if err = fn(); err == nil || !db.IsTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(transientRetryWait):
		}
	}
	return err
}
