package rooms

import (
	"context"
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
	"github.com/cbodonnell/ninetyfive/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, users ...string) (*Manager, *repositories.MemoryRepository, *state.Directory) {
	t.Helper()
	ctx := context.Background()
	repo := repositories.NewMemoryRepository()
	for _, id := range users {
		require.NoError(t, repo.SetDocument(ctx, repositories.CollectionUsers, id, &models.User{
			ID:       id,
			Username: "user-" + id,
		}))
	}
	dir := state.NewDirectory(state.NewDirectoryOptions{Repository: repo})
	t.Cleanup(func() { dir.Close(ctx) })
	m := NewManager(NewManagerOptions{
		Repository: repo,
		Directory:  dir,
		MaxPlayers: 3,
		Rand:       rand.New(rand.NewSource(1)),
		Now:        func() time.Time { return testNow },
	})
	return m, repo, dir
}

func TestManager_Create(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newTestManager(t, "a")

	room, err := m.Create(ctx, "a", models.RoomSettings{MaxPlayers: 10})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z]{5}$`), room.ID)
	assert.Equal(t, "a", room.HostID)
	assert.Equal(t, []models.RoomPlayer{{ID: "a", Username: "user-a"}}, room.Players)
	assert.Equal(t, 3, room.Settings.MaxPlayers, "capped at the server maximum")
	assert.Equal(t, models.RoomStatusWaiting, room.Status)
	assert.Equal(t, testNow.Add(90*time.Minute).UnixMilli(), room.ExpiresAt)

	var stored models.Room
	require.NoError(t, repo.GetDocument(ctx, repositories.CollectionRooms, room.ID, &stored))
	assert.Equal(t, *room, stored)

	_, err = m.Create(ctx, "nobody", models.RoomSettings{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestManager_Join(t *testing.T) {
	ctx := context.Background()
	m, _, dir := newTestManager(t, "a", "b", "c", "d")

	room, err := m.Create(ctx, "a", models.RoomSettings{})
	require.NoError(t, err)

	joined, changed, err := m.Join(ctx, room.ID, "b")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, joined.Players, 2)

	again, changed, err := m.Join(ctx, room.ID, "b")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, joined, again)

	_, _, err = m.Join(ctx, room.ID, "c")
	require.NoError(t, err)
	_, _, err = m.Join(ctx, room.ID, "d")
	assert.ErrorIs(t, err, ErrRoomFull)

	_, _, err = m.Join(ctx, room.ID, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, _, err = m.Join(ctx, "QQQQQ", "b")
	assert.ErrorIs(t, err, state.ErrRoomNotFound)

	setPlaying(t, dir, room.ID)
	_, _, err = m.Leave(ctx, room.ID, "c")
	assert.ErrorIs(t, err, ErrGameInProgress)
}

func TestManager_LeaveAndRemove(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, "a", "b", "c")

	room, err := m.Create(ctx, "a", models.RoomSettings{})
	require.NoError(t, err)
	_, _, err = m.Join(ctx, room.ID, "b")
	require.NoError(t, err)
	_, _, err = m.Join(ctx, room.ID, "c")
	require.NoError(t, err)

	_, err = m.Remove(ctx, room.ID, "b", "c")
	assert.ErrorIs(t, err, ErrNotHost)

	after, err := m.Remove(ctx, room.ID, "a", "c")
	require.NoError(t, err)
	assert.False(t, after.HasPlayer("c"))

	_, err = m.Remove(ctx, room.ID, "a", "c")
	assert.ErrorIs(t, err, ErrNotInRoom)

	after, left, err := m.Leave(ctx, room.ID, "a")
	require.NoError(t, err)
	assert.True(t, left)
	assert.Equal(t, "b", after.HostID, "host passes to the next player")

	_, left, err = m.Leave(ctx, room.ID, "a")
	require.NoError(t, err)
	assert.False(t, left)
}

func TestManager_Disconnect(t *testing.T) {
	ctx := context.Background()
	m, _, dir := newTestManager(t, "a", "b")

	room, err := m.Create(ctx, "a", models.RoomSettings{})
	require.NoError(t, err)
	_, _, err = m.Join(ctx, room.ID, "b")
	require.NoError(t, err)

	after, removed, err := m.Disconnect(ctx, room.ID, "b")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, after.HasPlayer("b"))

	_, _, err = m.Join(ctx, room.ID, "b")
	require.NoError(t, err)
	setPlaying(t, dir, room.ID)

	after, removed, err = m.Disconnect(ctx, room.ID, "b")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.True(t, after.HasPlayer("b"), "players keep their seat in a running game")
}

func setPlaying(t *testing.T, dir *state.Directory, roomID string) {
	t.Helper()
	_, err := dir.Do(context.Background(), roomID, func(ctx context.Context, s *state.State) (*state.Change, error) {
		next := s.Room.Copy()
		next.Status = models.RoomStatusPlaying
		return &state.Change{Room: next}, nil
	})
	require.NoError(t, err)
}
