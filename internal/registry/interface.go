package registry

import (
	"context"

	"github.com/advisorly/reading-room/internal/domain"
)

// SnapshotStore persists per-connection session snapshots and the room
// context outside the process, so a room actor restarted between events
// can rehydrate already-trusted sessions without re-running
// authentication.
type SnapshotStore interface {
	SaveSession(ctx context.Context, roomID string, session domain.Session) error
	// LoadSession returns nil with no error when no snapshot exists.
	LoadSession(ctx context.Context, roomID, connID string) (*domain.Session, error)
	DeleteSession(ctx context.Context, roomID, connID string) error

	SaveContext(ctx context.Context, roomID string, rc domain.RoomContext) error
	// LoadContext returns nil with no error when no context is bound.
	LoadContext(ctx context.Context, roomID string) (*domain.RoomContext, error)

	// Clear drops every snapshot of the room, sessions and context alike.
	Clear(ctx context.Context, roomID string) error

	Close() error
}
