package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
)

// Directory owns the session of every room this process serves. Sessions are
// created on first use and load their documents from the store.
type Directory struct {
	lock     sync.RWMutex
	sessions map[string]*Session

	repo       repositories.Repository
	lifetime   time.Duration
	now        func() time.Time
	onTeardown func(roomID string)
}

// NewDirectoryOptions contains options for creating a new Directory.
type NewDirectoryOptions struct {
	Repository repositories.Repository
	// Lifetime is how long a room lives after creation. Zero disables
	// teardown.
	Lifetime time.Duration
	Now      func() time.Time
	// OnTeardown is called after a room reached the end of its lifetime and
	// its documents were deleted.
	OnTeardown func(roomID string)
}

func NewDirectory(opts NewDirectoryOptions) *Directory {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Directory{
		sessions:   make(map[string]*Session),
		repo:       opts.Repository,
		lifetime:   opts.Lifetime,
		now:        now,
		onTeardown: opts.OnTeardown,
	}
}

// Get returns the session for roomID, starting one if needed. Only callers
// for the same room wait for its documents to load.
func (d *Directory) Get(roomID string) *Session {
	d.lock.RLock()
	s, ok := d.sessions[roomID]
	d.lock.RUnlock()
	if ok {
		return s
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	if s, ok := d.sessions[roomID]; ok {
		return s
	}
	s = newSession(d, roomID)
	d.sessions[roomID] = s
	go s.run(true)
	return s
}

// Do runs txn on the session for roomID.
func (d *Directory) Do(ctx context.Context, roomID string, txn Txn) (*Change, error) {
	change, err := d.Get(roomID).Do(ctx, txn)
	if errors.Is(err, ErrSessionClosed) {
		// evicted between Get and Do
		change, err = d.Get(roomID).Do(ctx, txn)
	}
	return change, err
}

// View returns the current state of roomID.
func (d *Directory) View(ctx context.Context, roomID string) (State, error) {
	return d.Get(roomID).View(ctx)
}

// Create registers a new room and writes its document.
func (d *Directory) Create(ctx context.Context, room *models.Room) (*Session, error) {
	d.lock.Lock()
	if _, ok := d.sessions[room.ID]; ok {
		d.lock.Unlock()
		return nil, ErrRoomExists
	}
	s := newSession(d, room.ID)
	d.sessions[room.ID] = s
	go s.run(false)
	d.lock.Unlock()

	_, err := s.Do(ctx, func(ctx context.Context, st *State) (*Change, error) {
		return &Change{Room: room}, nil
	})
	return s, err
}

// Evict stops the session for roomID without touching the store. The next
// Get reloads it.
func (d *Directory) Evict(roomID string) {
	d.lock.Lock()
	s, ok := d.sessions[roomID]
	delete(d.sessions, roomID)
	d.lock.Unlock()
	if ok {
		s.stop()
	}
}

func (d *Directory) evict(roomID string, s *Session) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.sessions[roomID] == s {
		delete(d.sessions, roomID)
	}
}

// Teardown ends a room: the session is stopped and the room and game
// documents are deleted.
func (d *Directory) Teardown(ctx context.Context, roomID string) error {
	d.Evict(roomID)

	if err := d.repo.DeleteDocument(ctx, repositories.CollectionGames, roomID); err != nil {
		return fmt.Errorf("failed to delete game: %v", err)
	}
	if err := d.repo.DeleteDocument(ctx, repositories.CollectionRooms, roomID); err != nil {
		return fmt.Errorf("failed to delete room: %v", err)
	}
	log.Info("Room %s torn down", roomID)

	if d.onTeardown != nil {
		d.onTeardown(roomID)
	}
	return nil
}

// FlushDirty retries the writes of every session holding unsaved changes.
func (d *Directory) FlushDirty(ctx context.Context) error {
	var errs []error
	for _, s := range d.snapshot() {
		if !s.Dirty() {
			continue
		}
		if err := s.Flush(ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
			errs = append(errs, fmt.Errorf("room %s: %w", s.RoomID(), err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes and stops every session.
func (d *Directory) Close(ctx context.Context) error {
	err := d.FlushDirty(ctx)

	d.lock.Lock()
	sessions := d.sessions
	d.sessions = make(map[string]*Session)
	d.lock.Unlock()

	for _, s := range sessions {
		s.stop()
	}
	return err
}

// Len returns the number of live sessions.
func (d *Directory) Len() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return len(d.sessions)
}

func (d *Directory) snapshot() []*Session {
	d.lock.RLock()
	defer d.lock.RUnlock()
	sessions := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// deadline is when room is torn down.
func (d *Directory) deadline(room *models.Room) time.Time {
	if room.ExpiresAt > 0 {
		return time.UnixMilli(room.ExpiresAt)
	}
	if room.CreatedAt > 0 {
		return time.UnixMilli(room.CreatedAt).Add(d.lifetime)
	}
	return d.now().Add(d.lifetime)
}
