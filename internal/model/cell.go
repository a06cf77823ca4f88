// Package model holds the persistent domain records shared between the
// repositories, the cell state engine, and the wire projections.
package model

// Cell is one persisted grid square. A cell absent from storage is the
// default hidden cell: not revealed, not flagged.
//
// Invariants maintained by the engine and repository:
//   - Revealed and Flagged are never both true.
//   - AdjacentMines is meaningful only when Revealed && !IsMine.
//   - Once Revealed, the record never changes again.
type Cell struct {
	X, Y          int
	Revealed      bool
	IsMine        bool
	AdjacentMines int
	Flagged       bool
}
