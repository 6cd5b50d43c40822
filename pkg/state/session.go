package state

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/game/types"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
)

const (
	mailboxSize = 64
	loadTimeout = 10 * time.Second
)

type command struct {
	ctx   context.Context
	txn   Txn
	flush bool
	reply chan result
}

type result struct {
	change *Change
	err    error
}

// Session serializes every change to one room. Commands are executed one at
// a time, in arrival order, by the session goroutine.
type Session struct {
	roomID string
	dir    *Directory
	logger *log.Logger

	mailbox  chan *command
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// owned by the session goroutine
	state     State
	dirtyRoom bool
	dirtyGame bool
	timer     *time.Timer

	dirty atomic.Bool
	// set before done is closed
	err error
}

func newSession(dir *Directory, roomID string) *Session {
	return &Session{
		roomID:  roomID,
		dir:     dir,
		logger:  log.WithFields(log.Fields{"room": roomID}),
		mailbox: make(chan *command, mailboxSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *Session) RoomID() string {
	return s.roomID
}

// Do runs txn on the session goroutine and waits for the result. When the
// change could not be written the error wraps ErrPersistence and the change
// is still returned.
func (s *Session) Do(ctx context.Context, txn Txn) (*Change, error) {
	return s.send(ctx, &command{ctx: ctx, txn: txn, reply: make(chan result, 1)})
}

// View returns the current state.
func (s *Session) View(ctx context.Context) (State, error) {
	var view State
	_, err := s.Do(ctx, func(ctx context.Context, st *State) (*Change, error) {
		view = *st
		return nil, nil
	})
	return view, err
}

// Flush retries writing documents a previous change failed to save.
func (s *Session) Flush(ctx context.Context) error {
	_, err := s.send(ctx, &command{ctx: ctx, flush: true, reply: make(chan result, 1)})
	return err
}

// Dirty reports whether the session holds changes the store has not seen.
func (s *Session) Dirty() bool {
	return s.dirty.Load()
}

func (s *Session) send(ctx context.Context, cmd *command) (*Change, error) {
	select {
	case s.mailbox <- cmd:
	case <-s.done:
		return nil, s.closedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		return r.change, r.err
	case <-s.done:
		return nil, s.closedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) closedErr() error {
	if s.err != nil {
		return s.err
	}
	return ErrSessionClosed
}

// stop ends the session goroutine and waits for it to exit.
func (s *Session) stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
}

// run is the session goroutine. A session created for an unknown room loads
// its documents first; a failed load evicts the session.
func (s *Session) run(load bool) {
	defer close(s.done)
	defer func() {
		if s.timer != nil {
			s.timer.Stop()
		}
	}()

	if load {
		if err := s.load(); err != nil {
			s.err = err
			s.dir.evict(s.roomID, s)
			return
		}
	}

	for {
		select {
		case <-s.quit:
			return
		case cmd := <-s.mailbox:
			s.handle(cmd)
		}
	}
}

func (s *Session) load() error {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	room := &models.Room{}
	if err := s.dir.repo.GetDocument(ctx, repositories.CollectionRooms, s.roomID, room); err != nil {
		if repositories.IsNotFound(err) {
			return ErrRoomNotFound
		}
		s.logger.Error("Failed to load room: %v", err)
		return fmt.Errorf("failed to load room %s: %v", s.roomID, err)
	}

	var game *types.GameState
	g := &types.GameState{}
	if err := s.dir.repo.GetDocument(ctx, repositories.CollectionGames, s.roomID, g); err == nil {
		game = g
	} else if !repositories.IsNotFound(err) {
		s.logger.Error("Failed to load game: %v", err)
		return fmt.Errorf("failed to load game %s: %v", s.roomID, err)
	}

	s.state = State{Room: room, Game: game}
	s.schedule()
	s.logger.Debug("Loaded session")
	return nil
}

func (s *Session) handle(cmd *command) {
	if err := cmd.ctx.Err(); err != nil {
		cmd.reply <- result{err: err}
		return
	}

	flushErr := s.flushDirty(cmd.ctx)
	if cmd.flush {
		cmd.reply <- result{err: flushErr}
		return
	}
	if flushErr != nil {
		s.logger.Warn("Retrying save failed: %v", flushErr)
	}

	view := s.state
	view.Dirty = s.dirtyRoom || s.dirtyGame
	change, err := cmd.txn(cmd.ctx, &view)
	if err != nil || change.empty() {
		cmd.reply <- result{err: err}
		return
	}

	if change.Room != nil {
		s.state.Room = change.Room
		s.dirtyRoom = true
	}
	if change.Game != nil {
		s.state.Game = change.Game
		s.dirtyGame = true
	}
	s.schedule()

	cmd.reply <- result{change: change, err: s.flushDirty(cmd.ctx)}
}

// flushDirty writes the documents that changed since the last successful
// save.
func (s *Session) flushDirty(ctx context.Context) error {
	defer func() {
		s.dirty.Store(s.dirtyRoom || s.dirtyGame)
	}()
	if s.dirtyRoom && s.state.Room != nil {
		if err := s.dir.repo.SetDocument(ctx, repositories.CollectionRooms, s.roomID, s.state.Room); err != nil {
			s.logger.Error("Failed to save room: %v", err)
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		s.dirtyRoom = false
	}
	if s.dirtyGame && s.state.Game != nil {
		if err := s.dir.repo.SetDocument(ctx, repositories.CollectionGames, s.roomID, s.state.Game); err != nil {
			s.logger.Error("Failed to save game: %v", err)
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		s.dirtyGame = false
	}
	return nil
}

// schedule arms the lifetime timer once the room is known.
func (s *Session) schedule() {
	if s.timer != nil || s.state.Room == nil || s.dir.lifetime <= 0 {
		return
	}
	deadline := s.dir.deadline(s.state.Room)
	s.timer = time.AfterFunc(deadline.Sub(s.dir.now()), func() {
		if err := s.dir.Teardown(context.Background(), s.roomID); err != nil {
			s.logger.Error("Failed to tear down room: %v", err)
		}
	})
}
