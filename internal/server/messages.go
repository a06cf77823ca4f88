package server

import (
	"encoding/json"
	"fmt"

	"github.com/dmtrv/minefield/internal/model"
)

// Message kinds. The client → server set is closed; the decoder in
// handler.go matches it exhaustively.
const (
	// Client → server.
	msgClickCell      = "clickCell"
	msgFlagCell       = "flagCell"
	msgUpdatePosition = "updatePosition"

	// Server → client.
	msgInitialState         = "initialState"
	msgMapUpdate            = "mapUpdate"
	msgPlayerJoined         = "playerJoined"
	msgPlayerLeft           = "playerLeft"
	msgPlayerPositionUpdate = "playerPositionUpdate"
	msgScoreUpdate          = "scoreUpdate"
	msgPlayerPenalty        = "playerPenalty"
	msgError                = "error"
)

// Cell states on the wire.
const (
	stateHidden   = "hidden"
	stateRevealed = "revealed"
	stateFlagged  = "flagged"
	stateMine     = "mine"
)

// envelope is the frame shape for both directions: a type tag and a payload.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound payloads.

type clickCellData struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type flagCellData struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type updatePositionData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Outbound payloads.

// cellView is the client-facing projection of a cell. Value carries the
// adjacency count for safe revealed cells, -1 for revealed mines, and is
// null otherwise.
type cellView struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	State string `json:"state"`
	Value *int   `json:"value"`
}

type playerView struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
}

type initialStateData struct {
	PlayerID string       `json:"playerId"`
	Score    int64        `json:"score"`
	MapChunk mapChunk     `json:"mapChunk"`
	Players  []playerView `json:"players"`
	Self     selfView     `json:"self"`
}

type mapChunk struct {
	Cells []cellView `json:"cells"`
}

type selfView struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type mapUpdateData struct {
	Cells []cellView `json:"cells"`
}

type playerJoinedData struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
}

type playerLeftData struct {
	ID string `json:"id"`
}

type playerPositionUpdateData struct {
	Players []playerView `json:"players"`
}

type scoreUpdateData struct {
	Score int64 `json:"score"`
}

type playerPenaltyData struct {
	Score          int64 `json:"score"`
	StunDurationMs int   `json:"stunDurationMs"`
}

type errorData struct {
	Message string `json:"message"`
}

// viewOf projects a persisted cell into its wire shape.
func viewOf(c model.Cell) cellView {
	switch {
	case c.Revealed && c.IsMine:
		v := -1
		return cellView{X: c.X, Y: c.Y, State: stateMine, Value: &v}
	case c.Revealed:
		v := c.AdjacentMines
		return cellView{X: c.X, Y: c.Y, State: stateRevealed, Value: &v}
	case c.Flagged:
		return cellView{X: c.X, Y: c.Y, State: stateFlagged}
	default:
		return cellView{X: c.X, Y: c.Y, State: stateHidden}
	}
}

// viewsOf projects a slice of cells.
func viewsOf(cells []model.Cell) []cellView {
	out := make([]cellView, len(cells))
	for i, c := range cells {
		out[i] = viewOf(c)
	}
	return out
}

// encode serialises an outbound message once; broadcast fan-out reuses the
// returned bytes for every recipient.
func encode(msgType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", msgType, err)
	}
	frame, err := json.Marshal(envelope{Type: msgType, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("marshaling %s envelope: %w", msgType, err)
	}
	return frame, nil
}
