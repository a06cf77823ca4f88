// Package engine implements the cell state rules: reveal with flood-fill,
// flag toggling, and scoring. It orchestrates the mine oracle and the
// persistence layer and is the only component that mutates cell state.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmtrv/minefield/internal/model"
	"github.com/dmtrv/minefield/internal/world"
)

// Score constants.
const (
	MinePenalty  = -50
	StunDuration = 3000 // milliseconds
)

// CellStore is the slice of the persistence layer the engine writes through.
type CellStore interface {
	GetCell(ctx context.Context, x, y int) (model.Cell, bool, error)
	UpsertRevealed(ctx context.Context, x, y int, isMine bool, adjacentMines int) error
	SetFlag(ctx context.Context, x, y int, flagged bool) error
}

// ScoreStore applies score deltas and returns the authoritative new total.
type ScoreStore interface {
	AddToPlayerScore(ctx context.Context, id string, delta int) (int64, error)
}

// Oracle answers the pure mine queries.
type Oracle interface {
	IsMine(x, y int) bool
	AdjacentMines(x, y int) int
}

// RevealKind tags the outcome of a reveal.
type RevealKind int

const (
	// RevealIgnored: the cell was already revealed or flagged, or the
	// flood lost every cell to concurrent actors. No state changed.
	RevealIgnored RevealKind = iota
	// RevealMineHit: the cell held a mine. Penalty applied.
	RevealMineHit
	// RevealSafe: one or more cells were revealed and scored.
	RevealSafe
)

// RevealResult describes the effect of a reveal for the dispatcher: the
// cells to broadcast, the score movement, and the new authoritative total.
type RevealResult struct {
	Kind       RevealKind
	ScoreDelta int
	NewScore   int64
	StunMs     int
	Cells      []model.Cell
}

// FlagKind tags the outcome of a flag toggle.
type FlagKind int

const (
	FlagIgnored FlagKind = iota
	FlagSet
	FlagCleared
)

// FlagResult describes the effect of a flag toggle.
type FlagResult struct {
	Kind FlagKind
	Cell model.Cell
}

// Engine applies the game rules on top of the oracle and the store.
type Engine struct {
	oracle Oracle
	cells  CellStore
	scores ScoreStore
}

// New creates an engine over the given collaborators.
func New(oracle Oracle, cells CellStore, scores ScoreStore) *Engine {
	return &Engine{oracle: oracle, cells: cells, scores: scores}
}

// Reveal applies a player's click at (x, y).
//
// Revealed cells never change again, a flag shields its cell, and scoring is
// exact: +1 per safe cell revealed, MinePenalty on a mine. The mine record
// is persisted before the score delta so a crash between the two writes
// leaves the world consistent with what the player saw.
func (e *Engine) Reveal(ctx context.Context, playerID string, x, y int) (RevealResult, error) {
	cell, ok, err := e.cells.GetCell(ctx, x, y)
	if err != nil {
		return RevealResult{}, fmt.Errorf("fetching cell (%d,%d): %w", x, y, err)
	}
	if ok && (cell.Revealed || cell.Flagged) {
		return RevealResult{Kind: RevealIgnored}, nil
	}

	if e.oracle.IsMine(x, y) {
		return e.revealMine(ctx, playerID, x, y)
	}
	return e.revealSafe(ctx, playerID, x, y)
}

func (e *Engine) revealMine(ctx context.Context, playerID string, x, y int) (RevealResult, error) {
	if err := e.cells.UpsertRevealed(ctx, x, y, true, 0); err != nil {
		return RevealResult{}, fmt.Errorf("persisting mine at (%d,%d): %w", x, y, err)
	}

	newScore, err := e.scores.AddToPlayerScore(ctx, playerID, MinePenalty)
	if err != nil {
		return RevealResult{}, fmt.Errorf("applying mine penalty for %q: %w", playerID, err)
	}

	return RevealResult{
		Kind:       RevealMineHit,
		ScoreDelta: MinePenalty,
		NewScore:   newScore,
		StunMs:     StunDuration,
		Cells:      []model.Cell{{X: x, Y: y, Revealed: true, IsMine: true}},
	}, nil
}

// revealSafe runs the bounded flood-fill from (x, y).
//
// The peek-then-write pattern is racy on purpose: concurrent reveals are
// serialised per row by the store, and a lost race shows up as a revealed or
// flagged peek that simply stops the frontier. Redundant work is accepted;
// a locked critical section over the whole fill would serialise the map.
func (e *Engine) revealSafe(ctx context.Context, playerID string, x, y int) (RevealResult, error) {
	type coord struct{ x, y int }

	start := coord{world.WrapX(x), world.WrapY(y)}
	queue := []coord{start}
	visited := map[coord]struct{}{start: {}}

	var opened []model.Cell
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		// Re-check: another actor may have revealed or flagged this cell
		// since it was enqueued.
		cell, ok, err := e.cells.GetCell(ctx, cur.x, cur.y)
		if err != nil {
			return RevealResult{}, fmt.Errorf("peeking cell (%d,%d): %w", cur.x, cur.y, err)
		}
		if ok && (cell.Revealed || cell.Flagged) {
			continue
		}

		adjacent := e.oracle.AdjacentMines(cur.x, cur.y)
		opened = append(opened, model.Cell{X: cur.x, Y: cur.y, Revealed: true, AdjacentMines: adjacent})
		if adjacent != 0 {
			continue
		}

		for _, n := range world.Neighbours(cur.x, cur.y) {
			next := coord{n[0], n[1]}
			if _, seen := visited[next]; seen {
				continue
			}
			peek, ok, err := e.cells.GetCell(ctx, next.x, next.y)
			visited[next] = struct{}{}
			if err != nil {
				return RevealResult{}, fmt.Errorf("peeking neighbour (%d,%d): %w", next.x, next.y, err)
			}
			if ok && (peek.Revealed || peek.Flagged) {
				continue
			}
			queue = append(queue, next)
		}
	}

	if len(opened) == 0 {
		// Lost the race for every frontier cell.
		slog.Debug("reveal lost race", "player", playerID, "x", x, "y", y)
		return RevealResult{Kind: RevealIgnored}, nil
	}

	for _, cell := range opened {
		if err := e.cells.UpsertRevealed(ctx, cell.X, cell.Y, false, cell.AdjacentMines); err != nil {
			return RevealResult{}, fmt.Errorf("persisting revealed cell (%d,%d): %w", cell.X, cell.Y, err)
		}
	}

	newScore, err := e.scores.AddToPlayerScore(ctx, playerID, len(opened))
	if err != nil {
		return RevealResult{}, fmt.Errorf("scoring reveal for %q: %w", playerID, err)
	}

	return RevealResult{
		Kind:       RevealSafe,
		ScoreDelta: len(opened),
		NewScore:   newScore,
		Cells:      opened,
	}, nil
}

// ToggleFlag flips the flag at (x, y). Revealed cells are ignored; clearing
// a flag on an otherwise-default cell removes its record entirely. Flagging
// never changes any score.
func (e *Engine) ToggleFlag(ctx context.Context, playerID string, x, y int) (FlagResult, error) {
	cell, ok, err := e.cells.GetCell(ctx, x, y)
	if err != nil {
		return FlagResult{}, fmt.Errorf("fetching cell (%d,%d): %w", x, y, err)
	}
	if ok && cell.Revealed {
		return FlagResult{Kind: FlagIgnored}, nil
	}

	if ok && cell.Flagged {
		if err := e.cells.SetFlag(ctx, x, y, false); err != nil {
			return FlagResult{}, fmt.Errorf("clearing flag at (%d,%d): %w", x, y, err)
		}
		return FlagResult{Kind: FlagCleared, Cell: model.Cell{X: x, Y: y}}, nil
	}

	if err := e.cells.SetFlag(ctx, x, y, true); err != nil {
		return FlagResult{}, fmt.Errorf("setting flag at (%d,%d): %w", x, y, err)
	}
	return FlagResult{Kind: FlagSet, Cell: model.Cell{X: x, Y: y, Flagged: true}}, nil
}
