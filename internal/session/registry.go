// Package session tracks connected players in memory: identity, transport
// handle, cursor position, and the cached score used for outbound messages.
// The registry is the only shared mutable in-memory state in the process.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dmtrv/minefield/internal/model"
	"github.com/dmtrv/minefield/internal/world"
)

// Transport is the per-connection outbound handle. Enqueue must not block:
// it either accepts the message or fails, in which case the session is on
// its way out.
type Transport interface {
	Enqueue(msg []byte) error
	Close() error
}

// PlayerStore is the durable side of session lifecycle.
type PlayerStore interface {
	FindOrCreatePlayer(ctx context.Context, id string) (model.Player, error)
	TouchPlayer(ctx context.Context, id string) error
}

// Session pairs a transport with a player identity and cursor. Cursor and
// cached score are mutated under the session's own lock; identity and
// transport are immutable after creation.
type Session struct {
	playerID  string
	transport Transport

	mu    sync.Mutex
	x, y  int
	score int64
}

// PlayerID returns the server-minted player identity.
func (s *Session) PlayerID() string { return s.playerID }

// Transport returns the outbound handle.
func (s *Session) Transport() Transport { return s.transport }

// Cursor returns the current cursor position.
func (s *Session) Cursor() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y
}

// Score returns the cached score.
func (s *Session) Score() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

func (s *Session) setCursor(x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.x, s.y = x, y
}

func (s *Session) setScore(score int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score = score
}

// Snapshot is the projection handed to region queries: enough to address a
// recipient and place its cursor, nothing more.
type Snapshot struct {
	PlayerID  string
	X, Y      int
	Transport Transport
}

// Registry maintains the two session maps in lockstep: playerID → session
// and transport → playerID. At most one session exists per transport.
type Registry struct {
	players PlayerStore

	mu          sync.RWMutex
	byPlayer    map[string]*Session
	byTransport map[Transport]string
}

// NewRegistry creates an empty registry backed by the given player store.
func NewRegistry(players PlayerStore) *Registry {
	return &Registry{
		players:     players,
		byPlayer:    make(map[string]*Session, 256),
		byTransport: make(map[Transport]string, 256),
	}
}

// Add mints a fresh player identity for the transport, creates the durable
// player record, and places the session at the map centre.
func (r *Registry) Add(ctx context.Context, transport Transport) (*Session, error) {
	id := uuid.NewString()

	player, err := r.players.FindOrCreatePlayer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("creating player %q: %w", id, err)
	}

	sess := &Session{
		playerID:  id,
		transport: transport,
		x:         world.Width / 2,
		y:         world.Height / 2,
		score:     player.Score,
	}

	r.mu.Lock()
	r.byPlayer[id] = sess
	r.byTransport[transport] = id
	r.mu.Unlock()

	return sess, nil
}

// Remove detaches both mappings for the transport and returns the removed
// session, or nil when the transport was not registered. The durable
// last_seen timestamp is refreshed as a side effect.
func (r *Registry) Remove(ctx context.Context, transport Transport) *Session {
	r.mu.Lock()
	id, ok := r.byTransport[transport]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	sess := r.byPlayer[id]
	delete(r.byTransport, transport)
	delete(r.byPlayer, id)
	r.mu.Unlock()

	if err := r.players.TouchPlayer(ctx, id); err != nil {
		slog.Warn("touch player on remove", "player", id, "error", err)
	}
	return sess
}

// UpdateCursor clamps the given position onto the map and stores it.
// Any numeric input is accepted; out-of-range values stick to the edge.
func (r *Registry) UpdateCursor(playerID string, x, y float64) {
	sess := r.Get(playerID)
	if sess == nil {
		return
	}
	sess.setCursor(world.ClampX(int(x)), world.ClampY(int(y)))
}

// UpdateCachedScore stores the authoritative score returned by the last
// persistence increment.
func (r *Registry) UpdateCachedScore(playerID string, score int64) {
	if sess := r.Get(playerID); sess != nil {
		sess.setScore(score)
	}
}

// Get returns the session for the player id, or nil.
func (r *Registry) Get(playerID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byPlayer[playerID]
}

// Lookup returns the player id registered for the transport.
func (r *Registry) Lookup(transport Transport) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTransport[transport]
	return id, ok
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPlayer)
}

// SessionsInRegion returns a projection of every session whose cursor lies
// in the region, skipping excludeID when non-empty. Linear in the number of
// active sessions, which is fine at the expected scale.
func (r *Registry) SessionsInRegion(reg world.Region, excludeID string) []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Snapshot
	for id, sess := range r.byPlayer {
		if id == excludeID {
			continue
		}
		x, y := sess.Cursor()
		if !reg.Contains(x, y) {
			continue
		}
		out = append(out, Snapshot{PlayerID: id, X: x, Y: y, Transport: sess.transport})
	}
	return out
}

// CloseAll closes every transport. Used during shutdown; Remove still runs
// per-connection as the read loops unwind.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	transports := make([]Transport, 0, len(r.byTransport))
	for tr := range r.byTransport {
		transports = append(transports, tr)
	}
	r.mu.RUnlock()

	for _, tr := range transports {
		if err := tr.Close(); err != nil {
			slog.Debug("closing transport", "error", err)
		}
	}
}
