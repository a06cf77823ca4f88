package server

import (
	"log/slog"

	"github.com/dmtrv/minefield/internal/session"
	"github.com/dmtrv/minefield/internal/world"
)

// Broadcaster fans a pre-serialised message out to every session whose
// cursor lies in a region. A failing recipient is logged and left to
// lifecycle cleanup; it never aborts the fan-out.
type Broadcaster struct {
	registry *session.Registry
}

// NewBroadcaster creates a broadcaster over the registry.
func NewBroadcaster(registry *session.Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast delivers msg to every session in the region, skipping excludeID
// when non-empty. Returns the number of successful deliveries.
func (b *Broadcaster) Broadcast(reg world.Region, msg []byte, excludeID string) int {
	sent := 0
	for _, s := range b.registry.SessionsInRegion(reg, excludeID) {
		if err := s.Transport.Enqueue(msg); err != nil {
			// Enqueue already closed the slow transport; the read loop
			// will run disconnect cleanup.
			slog.Warn("broadcast delivery failed", "player", s.PlayerID, "error", err)
			continue
		}
		sent++
	}
	return sent
}
