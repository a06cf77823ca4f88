package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmtrv/minefield/internal/model"
	"github.com/dmtrv/minefield/internal/world"
)

// CellRepository manages the map_state table. Only non-default cells are
// stored: a missing row means hidden and unflagged.
type CellRepository struct {
	db *DB
}

// NewCellRepository creates a CellRepository over the given store.
func NewCellRepository(db *DB) *CellRepository {
	return &CellRepository{db: db}
}

// GetCell returns the record at (x, y), or ok=false when the cell is in its
// default hidden state.
func (r *CellRepository) GetCell(ctx context.Context, x, y int) (model.Cell, bool, error) {
	row := r.db.sql.QueryRowContext(ctx,
		`SELECT x, y, revealed, is_mine, adjacent_mines, flag_state
		 FROM map_state WHERE x = ? AND y = ?`, x, y)

	cell, err := scanCell(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Cell{}, false, nil
	}
	if err != nil {
		return model.Cell{}, false, fmt.Errorf("querying cell (%d,%d): %w", x, y, classify(err))
	}
	return cell, true, nil
}

// GetCellsInRegion returns every stored cell whose coordinates satisfy the
// wrap-aware interval predicate of the region.
func (r *CellRepository) GetCellsInRegion(ctx context.Context, reg world.Region) ([]model.Cell, error) {
	xPred, xArgs := spanPredicate("x", reg.XMin, reg.XMax)
	yPred, yArgs := spanPredicate("y", reg.YMin, reg.YMax)

	query := `SELECT x, y, revealed, is_mine, adjacent_mines, flag_state
		 FROM map_state WHERE ` + xPred + ` AND ` + yPred
	args := append(xArgs, yArgs...)

	rows, err := r.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying region %+v: %w", reg, classify(err))
	}
	defer rows.Close()

	var cells []model.Cell
	for rows.Next() {
		cell, err := scanCell(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning region row: %w", classify(err))
		}
		cells = append(cells, cell)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating region %+v: %w", reg, classify(err))
	}
	return cells, nil
}

// UpsertRevealed marks (x, y) revealed, clearing any flag. For mines the
// adjacency count is stored as NULL. A revealed row is never downgraded: the
// upsert always writes revealed=1, so the operation is idempotent under
// concurrent reveals of the same cell.
func (r *CellRepository) UpsertRevealed(ctx context.Context, x, y int, isMine bool, adjacentMines int) error {
	adjacent := sql.NullInt64{Int64: int64(adjacentMines), Valid: !isMine}

	_, err := r.db.sql.ExecContext(ctx,
		`INSERT INTO map_state (x, y, revealed, is_mine, adjacent_mines, flag_state)
		 VALUES (?, ?, 1, ?, ?, 0)
		 ON CONFLICT (x, y) DO UPDATE SET
		   revealed = 1,
		   is_mine = excluded.is_mine,
		   adjacent_mines = excluded.adjacent_mines,
		   flag_state = 0`,
		x, y, isMine, adjacent)
	if err != nil {
		return fmt.Errorf("upserting revealed cell (%d,%d): %w", x, y, classify(err))
	}
	return nil
}

// SetFlag sets or clears the flag at (x, y).
//
// Setting inserts a hidden flagged row, or flips flag_state on an existing
// unrevealed row; a revealed row is left untouched. Clearing deletes the row
// only while unrevealed, which removes an otherwise-default cell entirely.
func (r *CellRepository) SetFlag(ctx context.Context, x, y int, flagged bool) error {
	var err error
	if flagged {
		_, err = r.db.sql.ExecContext(ctx,
			`INSERT INTO map_state (x, y, revealed, is_mine, adjacent_mines, flag_state)
			 VALUES (?, ?, 0, 0, NULL, 1)
			 ON CONFLICT (x, y) DO UPDATE SET flag_state = 1
			 WHERE map_state.revealed = 0`,
			x, y)
	} else {
		_, err = r.db.sql.ExecContext(ctx,
			`DELETE FROM map_state WHERE x = ? AND y = ? AND revealed = 0`, x, y)
	}
	if err != nil {
		return fmt.Errorf("setting flag=%v on (%d,%d): %w", flagged, x, y, classify(err))
	}
	return nil
}

// spanPredicate builds the SQL for one wrap-aware axis interval: a plain
// BETWEEN when the span is contiguous, an OR across the seam when it wraps.
func spanPredicate(column string, lo, hi int) (string, []any) {
	if lo <= hi {
		return column + " BETWEEN ? AND ?", []any{lo, hi}
	}
	return "(" + column + " >= ? OR " + column + " <= ?)", []any{lo, hi}
}

// scanCell reads one map_state row via the given Scan func.
func scanCell(scan func(dest ...any) error) (model.Cell, error) {
	var (
		cell     model.Cell
		adjacent sql.NullInt64
	)
	if err := scan(&cell.X, &cell.Y, &cell.Revealed, &cell.IsMine, &adjacent, &cell.Flagged); err != nil {
		return model.Cell{}, err
	}
	if adjacent.Valid {
		cell.AdjacentMines = int(adjacent.Int64)
	}
	return cell, nil
}
