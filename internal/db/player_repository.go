package db

import (
	"context"
	"fmt"
	"time"

	"github.com/dmtrv/minefield/internal/model"
)

// PlayerRepository manages the players table.
type PlayerRepository struct {
	db *DB
}

// NewPlayerRepository creates a PlayerRepository over the given store.
func NewPlayerRepository(db *DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// FindOrCreatePlayer returns the player with the given id, creating it with
// a zero score on first sight. Idempotent; refreshes last_seen either way.
func (r *PlayerRepository) FindOrCreatePlayer(ctx context.Context, id string) (model.Player, error) {
	var p model.Player
	err := r.db.sql.QueryRowContext(ctx,
		`INSERT INTO players (player_id, score, last_seen)
		 VALUES (?, 0, ?)
		 ON CONFLICT (player_id) DO UPDATE SET last_seen = excluded.last_seen
		 RETURNING player_id, score, last_seen`,
		id, time.Now().UTC()).Scan(&p.ID, &p.Score, &p.LastSeen)
	if err != nil {
		return model.Player{}, fmt.Errorf("finding or creating player %q: %w", id, classify(err))
	}
	return p, nil
}

// AddToPlayerScore atomically adds delta to the player's score and returns
// the new total. The returned total, not the caller's cached value, is the
// authoritative score after the action.
func (r *PlayerRepository) AddToPlayerScore(ctx context.Context, id string, delta int) (int64, error) {
	var score int64
	err := r.db.sql.QueryRowContext(ctx,
		`UPDATE players SET score = score + ? WHERE player_id = ? RETURNING score`,
		delta, id).Scan(&score)
	if err != nil {
		return 0, fmt.Errorf("adding %d to score of player %q: %w", delta, id, classify(err))
	}
	return score, nil
}

// TouchPlayer refreshes the player's last_seen timestamp.
func (r *PlayerRepository) TouchPlayer(ctx context.Context, id string) error {
	if _, err := r.db.sql.ExecContext(ctx,
		`UPDATE players SET last_seen = ? WHERE player_id = ?`,
		time.Now().UTC(), id); err != nil {
		return fmt.Errorf("touching player %q: %w", id, classify(err))
	}
	return nil
}
