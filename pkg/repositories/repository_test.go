package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoom() *models.Room {
	return &models.Room{
		ID:     "ABCDE",
		HostID: "u1",
		Players: []models.RoomPlayer{
			{ID: "u1", Username: "alice"},
		},
		Settings:  models.RoomSettings{MaxPlayers: 6},
		Status:    models.RoomStatusWaiting,
		CreatedAt: 1000,
		ExpiresAt: 2000,
	}
}

func exerciseRepository(t *testing.T, repo Repository) {
	ctx := context.Background()

	var got models.Room
	err := repo.GetDocument(ctx, CollectionRooms, "ABCDE", &got)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	err = repo.UpdateDocument(ctx, CollectionRooms, "ABCDE", map[string]interface{}{"status": "playing"})
	assert.True(t, IsNotFound(err))

	room := testRoom()
	require.NoError(t, repo.SetDocument(ctx, CollectionRooms, room.ID, room))
	require.NoError(t, repo.GetDocument(ctx, CollectionRooms, room.ID, &got))
	assert.Equal(t, *room, got)

	players := append(room.Players, models.RoomPlayer{ID: "u2", Username: "bob"})
	require.NoError(t, repo.UpdateDocument(ctx, CollectionRooms, room.ID, map[string]interface{}{
		"players": players,
	}))
	got = models.Room{}
	require.NoError(t, repo.GetDocument(ctx, CollectionRooms, room.ID, &got))
	assert.Equal(t, players, got.Players)
	assert.Equal(t, room.HostID, got.HostID, "fields not named are kept")

	var user models.User
	err = repo.GetDocument(ctx, CollectionUsers, room.ID, &user)
	assert.True(t, IsNotFound(err), "collections are separate")

	require.NoError(t, repo.DeleteDocument(ctx, CollectionRooms, room.ID))
	assert.True(t, IsNotFound(repo.GetDocument(ctx, CollectionRooms, room.ID, &got)))
	assert.NoError(t, repo.DeleteDocument(ctx, CollectionRooms, room.ID))
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	exerciseRepository(t, repo)
	assert.Zero(t, repo.Len(CollectionRooms))
}

func TestSQLiteRepository(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ninetyfive.db")
	repo, err := NewSQLiteRepository(ctx, path, "../../migrations/sqlite")
	require.NoError(t, err)
	defer repo.Close(ctx)

	exerciseRepository(t, repo)
}

func TestErrNotFound(t *testing.T) {
	err := notFound(CollectionGames, "ABCDE")
	assert.EqualError(t, err, "games/ABCDE not found")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(nil))
}

func TestMergeFields(t *testing.T) {
	merged, err := mergeFields([]byte(`{"a":1,"b":{"c":2}}`), map[string]interface{}{"b": "x", "d": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":"x","d":true}`, string(merged))

	_, err = mergeFields([]byte(`[]`), nil)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, "memory://", OpenOptions{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)

	path := filepath.Join(t.TempDir(), "ninetyfive.db")
	repo, err = Open(ctx, "sqlite://"+path, OpenOptions{MigrationsDir: "../../migrations"})
	require.NoError(t, err)
	defer repo.Close(ctx)
	exerciseRepository(t, repo)

	_, err = Open(ctx, "firestore://", OpenOptions{})
	assert.Error(t, err)

	_, err = Open(ctx, "mysql://localhost/db", OpenOptions{})
	assert.EqualError(t, err, "unknown database type mysql")
}
