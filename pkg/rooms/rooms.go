package rooms

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/game/constants"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
	"github.com/cbodonnell/ninetyfive/pkg/state"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrRoomFull       = errors.New("room full")
	ErrGameInProgress = errors.New("game in progress")
	ErrNotHost        = errors.New("only the host can do that")
	ErrNotInRoom      = errors.New("player not in room")
)

const roomIDLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// maxIDAttempts bounds the retries when a generated room id is taken.
const maxIDAttempts = 10

// Manager runs the lobby: creating rooms and seating players before a game
// starts. Every change to a room goes through its session.
type Manager struct {
	repo       repositories.Repository
	dir        *state.Directory
	lifetime   time.Duration
	maxPlayers int
	now        func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewManagerOptions contains options for creating a new Manager.
type NewManagerOptions struct {
	Repository repositories.Repository
	Directory  *state.Directory
	Lifetime   time.Duration
	MaxPlayers int
	Rand       *rand.Rand
	Now        func() time.Time
}

func NewManager(opts NewManagerOptions) *Manager {
	lifetime := opts.Lifetime
	if lifetime == 0 {
		lifetime = constants.RoomLifetime
	}
	maxPlayers := opts.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = constants.MaxPlayers
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		repo:       opts.Repository,
		dir:        opts.Directory,
		lifetime:   lifetime,
		maxPlayers: maxPlayers,
		now:        now,
		rng:        rng,
	}
}

// LookupUser reads a profile from the users collection.
func (m *Manager) LookupUser(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	if err := m.repo.GetDocument(ctx, repositories.CollectionUsers, userID, user); err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %v", err)
	}
	if user.ID == "" {
		user.ID = userID
	}
	return user, nil
}

// Create opens a new room hosted by hostID, who is seated first.
func (m *Manager) Create(ctx context.Context, hostID string, settings models.RoomSettings) (*models.Room, error) {
	host, err := m.LookupUser(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if settings.MaxPlayers <= 0 || settings.MaxPlayers > m.maxPlayers {
		settings.MaxPlayers = m.maxPlayers
	}

	created := m.now()
	for i := 0; i < maxIDAttempts; i++ {
		room := &models.Room{
			ID:        m.newRoomID(),
			HostID:    host.ID,
			Players:   []models.RoomPlayer{seat(host)},
			Settings:  settings,
			Status:    models.RoomStatusWaiting,
			CreatedAt: created.UnixMilli(),
			ExpiresAt: created.Add(m.lifetime).UnixMilli(),
		}

		if err := m.repo.GetDocument(ctx, repositories.CollectionRooms, room.ID, &models.Room{}); err == nil {
			continue
		} else if !repositories.IsNotFound(err) {
			return nil, fmt.Errorf("failed to check room id: %v", err)
		}

		_, err := m.dir.Create(ctx, room)
		if errors.Is(err, state.ErrRoomExists) {
			continue
		}
		if err != nil && !errors.Is(err, state.ErrPersistence) {
			return nil, err
		}
		log.Info("Room %s created by %s", room.ID, host.ID)
		return room, err
	}
	return nil, fmt.Errorf("failed to generate a free room id after %d attempts", maxIDAttempts)
}

// Join seats userID in the room. Joining a room the user is already in
// changes nothing and reports false.
func (m *Manager) Join(ctx context.Context, roomID, userID string) (*models.Room, bool, error) {
	user, err := m.LookupUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	var room *models.Room
	change, err := m.dir.Do(ctx, roomID, func(ctx context.Context, s *state.State) (*state.Change, error) {
		room = s.Room
		if s.Room.HasPlayer(userID) {
			return nil, nil
		}
		if s.Room.Status == models.RoomStatusPlaying {
			return nil, ErrGameInProgress
		}
		if len(s.Room.Players) >= s.Room.Settings.MaxPlayers {
			return nil, ErrRoomFull
		}
		next := s.Room.Copy()
		next.Players = append(next.Players, seat(user))
		room = next
		return &state.Change{Room: next}, nil
	})
	if room == nil {
		return nil, false, err
	}
	return room, change != nil, err
}

// Leave takes userID out of a room that has not started playing. The host
// role passes to the next player in join order.
func (m *Manager) Leave(ctx context.Context, roomID, userID string) (*models.Room, bool, error) {
	return m.remove(ctx, roomID, func(r *models.Room) (string, error) {
		return userID, nil
	})
}

// Remove lets the host take playerID out of the room.
func (m *Manager) Remove(ctx context.Context, roomID, hostID, playerID string) (*models.Room, error) {
	room, _, err := m.remove(ctx, roomID, func(r *models.Room) (string, error) {
		if r.HostID != hostID {
			return "", ErrNotHost
		}
		if !r.HasPlayer(playerID) {
			return "", ErrNotInRoom
		}
		return playerID, nil
	})
	return room, err
}

// Disconnect removes userID from a waiting room. Players of a running game
// keep their seat.
func (m *Manager) Disconnect(ctx context.Context, roomID, userID string) (*models.Room, bool, error) {
	var playing bool
	room, removed, err := m.remove(ctx, roomID, func(r *models.Room) (string, error) {
		if r.Status == models.RoomStatusPlaying {
			playing = true
			return "", nil
		}
		return userID, nil
	})
	if playing {
		return room, false, nil
	}
	return room, removed, err
}

// remove takes the player chosen by pick out of the room. An empty pick
// changes nothing.
func (m *Manager) remove(ctx context.Context, roomID string, pick func(*models.Room) (string, error)) (*models.Room, bool, error) {
	var room *models.Room
	change, err := m.dir.Do(ctx, roomID, func(ctx context.Context, s *state.State) (*state.Change, error) {
		room = s.Room
		playerID, err := pick(s.Room)
		if err != nil || playerID == "" {
			return nil, err
		}
		if !s.Room.HasPlayer(playerID) {
			return nil, nil
		}
		if s.Room.Status == models.RoomStatusPlaying {
			return nil, ErrGameInProgress
		}
		next := s.Room.Copy()
		players := next.Players[:0]
		for _, p := range next.Players {
			if p.ID != playerID {
				players = append(players, p)
			}
		}
		next.Players = players
		if next.HostID == playerID && len(players) > 0 {
			next.HostID = players[0].ID
		}
		room = next
		return &state.Change{Room: next}, nil
	})
	if room == nil {
		return nil, false, err
	}
	return room, change != nil, err
}

func (m *Manager) newRoomID() string {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	b := make([]byte, constants.RoomIDLength)
	for i := range b {
		b[i] = roomIDLetters[m.rng.Intn(len(roomIDLetters))]
	}
	return string(b)
}

func seat(u *models.User) models.RoomPlayer {
	return models.RoomPlayer{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.Avatar,
	}
}
