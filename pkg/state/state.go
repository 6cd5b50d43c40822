package state

import (
	"context"
	"errors"

	"github.com/cbodonnell/ninetyfive/pkg/game/types"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
)

var (
	// ErrPersistence is returned when a change was applied in memory but
	// could not be written to the store. The session keeps the change and
	// retries the write.
	ErrPersistence = errors.New("game state could not be saved")
	// ErrRoomNotFound is returned when a room has no document in the store.
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	// ErrSessionClosed is returned for commands sent to a session that has
	// been evicted or torn down.
	ErrSessionClosed = errors.New("session closed")
)

// State is everything the server holds for one room. Game is nil until the
// game starts.
type State struct {
	Room  *models.Room
	Game  *types.GameState
	Dirty bool
}

// Change lists the documents a transaction replaced. Nil fields are left
// untouched.
type Change struct {
	Room *models.Room
	Game *types.GameState
}

func (c *Change) empty() bool {
	return c == nil || (c.Room == nil && c.Game == nil)
}

// Txn reads the current state and returns the documents it replaces. It runs
// on the session goroutine and must treat the state as read only.
type Txn func(ctx context.Context, s *State) (*Change, error)
