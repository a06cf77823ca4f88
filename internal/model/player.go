package model

import "time"

// Player is the persistent identity minted for each connection. There is no
// reconnection: every connect creates a fresh id.
type Player struct {
	ID       string
	Score    int64
	LastSeen time.Time
}
