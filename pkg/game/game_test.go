package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	mocks "github.com/cbodonnell/ninetyfive/mocks/github.com/cbodonnell/ninetyfive/pkg/queue"
	"github.com/cbodonnell/ninetyfive/pkg/game/types"
	"github.com/cbodonnell/ninetyfive/pkg/messages"
	"github.com/cbodonnell/ninetyfive/pkg/network"
	"github.com/cbodonnell/ninetyfive/pkg/queue"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
	"github.com/cbodonnell/ninetyfive/pkg/rooms"
	"github.com/cbodonnell/ninetyfive/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	To      string
	Type    string
	Payload json.RawMessage
}

// fakeBroadcaster records deliveries and room membership.
type fakeBroadcaster struct {
	mu         sync.Mutex
	deliveries []delivery
	members    map[uint32]string
	left       []string
	closed     []string
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{members: make(map[uint32]string)}
}

func (b *fakeBroadcaster) record(to string, msg *messages.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliveries = append(b.deliveries, delivery{To: to, Type: msg.Type, Payload: msg.Payload})
	return nil
}

func (b *fakeBroadcaster) SendToConnection(ctx context.Context, clientID uint32, msg *messages.Message) error {
	return b.record("connection", msg)
}

func (b *fakeBroadcaster) SendToClient(ctx context.Context, userID string, msg *messages.Message) error {
	return b.record("user:"+userID, msg)
}

func (b *fakeBroadcaster) SendToRoom(ctx context.Context, roomID string, msg *messages.Message) error {
	return b.record("room:"+roomID, msg)
}

func (b *fakeBroadcaster) JoinRoom(clientID uint32, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.members[clientID] = roomID
}

func (b *fakeBroadcaster) LeaveRoom(userID, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.left = append(b.left, userID+"@"+roomID)
}

func (b *fakeBroadcaster) CloseRoom(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, roomID)
}

// take returns and forgets the deliveries recorded so far.
func (b *fakeBroadcaster) take() []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.deliveries
	b.deliveries = nil
	return out
}

// failingRepository fails writes while failing is set.
type failingRepository struct {
	*repositories.MemoryRepository
	failing atomic.Bool
}

func (r *failingRepository) SetDocument(ctx context.Context, collection, id string, doc interface{}) error {
	if r.failing.Load() {
		return errors.New("store unavailable")
	}
	return r.MemoryRepository.SetDocument(ctx, collection, id, doc)
}

type testServer struct {
	gm          *GameManager
	dir         *state.Directory
	rooms       *rooms.Manager
	broadcaster *fakeBroadcaster
	events      queue.Queue
}

func newTestServer(t *testing.T, repo repositories.Repository, clientMessages queue.Queue) *testServer {
	t.Helper()
	ctx := context.Background()
	for _, u := range []models.User{
		{ID: "a", Username: "alice"},
		{ID: "b", Username: "bob"},
		{ID: "c", Username: "carol"},
	} {
		require.NoError(t, repo.SetDocument(ctx, repositories.CollectionUsers, u.ID, &u))
	}

	dir := state.NewDirectory(state.NewDirectoryOptions{Repository: repo})
	t.Cleanup(func() { dir.Close(context.Background()) })
	roomManager := rooms.NewManager(rooms.NewManagerOptions{
		Repository: repo,
		Directory:  dir,
	})
	broadcaster := newFakeBroadcaster()
	if clientMessages == nil {
		clientMessages = queue.NewInMemoryQueue(0)
	}
	events := queue.NewInMemoryQueue(0)
	gm := NewGameManager(NewGameManagerOptions{
		Engine:               newTestEngine(),
		Directory:            dir,
		Rooms:                roomManager,
		Broadcaster:          broadcaster,
		ClientMessageQueue:   clientMessages,
		ConnectionEventQueue: events,
	})
	return &testServer{
		gm:          gm,
		dir:         dir,
		rooms:       roomManager,
		broadcaster: broadcaster,
		events:      events,
	}
}

func inbound(t *testing.T, clientID uint32, userID, messageType string, payload interface{}) *network.InboundMessage {
	t.Helper()
	msg, err := messages.NewMessage(clientID, messageType, payload)
	require.NoError(t, err)
	return &network.InboundMessage{ClientID: clientID, UserID: userID, Message: msg}
}

// request handles one message and returns what was delivered.
func (s *testServer) request(t *testing.T, clientID uint32, userID, messageType string, payload interface{}) []delivery {
	t.Helper()
	s.gm.HandleMessage(context.Background(), inbound(t, clientID, userID, messageType, payload))
	return s.broadcaster.take()
}

func requireError(t *testing.T, deliveries []delivery, code string, kind ErrorKind) {
	t.Helper()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "connection", deliveries[0].To)
	require.Equal(t, messages.MessageTypeServerError, deliveries[0].Type)
	serverError := &messages.ServerError{}
	require.NoError(t, json.Unmarshal(deliveries[0].Payload, serverError))
	assert.Equal(t, code, serverError.Code)
	assert.Equal(t, string(kind), serverError.Kind)
	assert.NotEmpty(t, serverError.Request)
}

func decodeRoom(t *testing.T, d delivery) *models.Room {
	t.Helper()
	require.Equal(t, messages.MessageTypeServerRoomUpdated, d.Type)
	updated := &messages.ServerRoomUpdated{}
	require.NoError(t, json.Unmarshal(d.Payload, updated))
	return updated.Room
}

func TestGameManager_RoomAndGameFlow(t *testing.T) {
	s := newTestServer(t, repositories.NewMemoryRepository(), nil)

	out := s.request(t, 1, "a", messages.MessageTypeClientCreateRoom, &messages.CreateRoomRequest{
		Settings: models.RoomSettings{MaxPlayers: 2},
	})
	require.Len(t, out, 1)
	room := decodeRoom(t, out[0])
	roomID := room.ID
	assert.Equal(t, "room:"+roomID, out[0].To)
	assert.Equal(t, "a", room.HostID)
	assert.Equal(t, roomID, s.broadcaster.members[1])

	out = s.request(t, 2, "b", messages.MessageTypeClientJoinRoom, &messages.RoomRequest{RoomID: roomID})
	require.Len(t, out, 1)
	assert.Len(t, decodeRoom(t, out[0]).Players, 2)

	out = s.request(t, 2, "b", messages.MessageTypeClientJoinRoom, &messages.RoomRequest{RoomID: roomID})
	require.Len(t, out, 1)
	assert.Equal(t, "connection", out[0].To, "joining twice only refreshes the caller")

	requireError(t, s.request(t, 3, "c", messages.MessageTypeClientJoinRoom, &messages.RoomRequest{RoomID: roomID}),
		"room_full", ErrorKindState)
	requireError(t, s.request(t, 3, "c", messages.MessageTypeClientJoinRoom, &messages.RoomRequest{RoomID: "ZZZZZ"}),
		"room_not_found", ErrorKindState)

	five := types.Card{Suit: types.SuitSpades, Rank: types.RankFive}
	requireError(t, s.request(t, 1, "a", messages.MessageTypeClientPlayCard, &messages.PlayCardRequest{RoomID: roomID, Card: five}),
		"game_not_found", ErrorKindState)
	requireError(t, s.request(t, 3, "c", messages.MessageTypeClientStartGame, &messages.RoomRequest{RoomID: roomID}),
		"not_in_room", ErrorKindState)

	out = s.request(t, 2, "b", messages.MessageTypeClientStartGame, &messages.RoomRequest{RoomID: roomID})
	require.Len(t, out, 2)
	assert.Equal(t, models.RoomStatusPlaying, decodeRoom(t, out[0]).Status)
	assert.Equal(t, string(EventGameStarted), out[1].Type)
	assert.Equal(t, "room:"+roomID, out[1].To)

	requireError(t, s.request(t, 2, "b", messages.MessageTypeClientStartGame, &messages.RoomRequest{RoomID: roomID}),
		"game_already_started", ErrorKindState)
	requireError(t, s.request(t, 2, "b", messages.MessageTypeClientLeaveRoom, &messages.RoomRequest{RoomID: roomID}),
		"game_in_progress", ErrorKindState)

	view, err := s.dir.View(context.Background(), roomID)
	require.NoError(t, err)
	require.NotNil(t, view.Game)
	assert.Equal(t, 52, view.Game.CardCount())
	current, err := view.Game.CurrentPlayer()
	require.NoError(t, err)
	other := "a"
	if current == "a" {
		other = "b"
	}

	requireError(t, s.request(t, 1, other, messages.MessageTypeClientPlayCard, &messages.PlayCardRequest{
		RoomID: roomID,
		Card:   view.Game.Players[other].Hand[0],
	}), "not_your_turn", ErrorKindState)

	out = s.request(t, 1, current, messages.MessageTypeClientPlayCard, &messages.PlayCardRequest{
		RoomID: roomID,
		Card:   view.Game.Players[current].Hand[0],
	})
	require.NotEmpty(t, out)
	assert.Equal(t, string(EventGameUpdated), out[0].Type)
	assert.Equal(t, "room:"+roomID, out[0].To)

	after, err := s.dir.View(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, view.Game.Version+1, after.Game.Version)
	next, err := after.Game.CurrentPlayer()
	require.NoError(t, err)
	assert.Equal(t, other, next)

	out = s.request(t, 4, "b", messages.MessageTypeClientJoinGame, &messages.RoomRequest{RoomID: roomID})
	require.Len(t, out, 1)
	assert.Equal(t, string(EventGameState), out[0].Type)
	assert.Equal(t, "user:b", out[0].To)
	assert.Equal(t, roomID, s.broadcaster.members[4])

	requireError(t, s.request(t, 1, "a", messages.MessageTypeClientStartAutoroute, &messages.RoomRequest{RoomID: roomID}),
		"not_the_loser", ErrorKindState)
}

func TestGameManager_InvalidRequests(t *testing.T) {
	s := newTestServer(t, repositories.NewMemoryRepository(), nil)

	requireError(t, s.request(t, 1, "a", messages.MessageTypeClientStartGame, &messages.RoomRequest{}),
		"missing_room_id", ErrorKindValidation)
	requireError(t, s.request(t, 1, "a", messages.MessageTypeClientChooseAceValue, "not an object"),
		"invalid_payload", ErrorKindValidation)
	requireError(t, s.request(t, 1, "a", messages.MessageTypeClientGuess, &messages.GuessRequest{}),
		"missing_room_id", ErrorKindValidation)
	requireError(t, s.request(t, 1, "nobody", messages.MessageTypeClientCreateRoom, &messages.CreateRoomRequest{}),
		"user_not_found", ErrorKindState)
	requireError(t, s.request(t, 1, "a", "teleport", &messages.RoomRequest{RoomID: "ABCDE"}),
		"invalid_payload", ErrorKindValidation)
}

func TestGameManager_RemovePlayer(t *testing.T) {
	s := newTestServer(t, repositories.NewMemoryRepository(), nil)
	ctx := context.Background()
	room, err := s.rooms.Create(ctx, "a", models.RoomSettings{})
	require.NoError(t, err)
	_, _, err = s.rooms.Join(ctx, room.ID, "b")
	require.NoError(t, err)

	requireError(t, s.request(t, 2, "b", messages.MessageTypeClientRemovePlayer, &messages.RemovePlayerRequest{RoomID: room.ID, PlayerID: "a"}),
		"not_host", ErrorKindState)

	out := s.request(t, 1, "a", messages.MessageTypeClientRemovePlayer, &messages.RemovePlayerRequest{RoomID: room.ID, PlayerID: "b"})
	require.Len(t, out, 2)
	assert.Equal(t, messages.MessageTypeServerRemovedFromRoom, out[0].Type)
	assert.Equal(t, "user:b", out[0].To)
	assert.Len(t, decodeRoom(t, out[1]).Players, 1)
	assert.Equal(t, []string{"b@" + room.ID}, s.broadcaster.left)
}

func TestGameManager_Disconnect(t *testing.T) {
	s := newTestServer(t, repositories.NewMemoryRepository(), nil)
	ctx := context.Background()
	room, err := s.rooms.Create(ctx, "a", models.RoomSettings{})
	require.NoError(t, err)
	_, _, err = s.rooms.Join(ctx, room.ID, "b")
	require.NoError(t, err)

	require.NoError(t, s.events.Enqueue(network.ClientEvent{
		ClientID: 2,
		Type:     network.ClientEventTypeDisconnect,
		Data:     network.ClientDisconnectData{UserID: "b", RoomID: room.ID, LastConnection: false},
	}))
	s.gm.processConnectionEvents(ctx)
	assert.Empty(t, s.broadcaster.take(), "another connection of the user is still in the room")

	require.NoError(t, s.events.Enqueue(network.ClientEvent{
		ClientID: 3,
		Type:     network.ClientEventTypeDisconnect,
		Data:     network.ClientDisconnectData{UserID: "b", RoomID: room.ID, LastConnection: true},
	}))
	s.gm.processConnectionEvents(ctx)
	out := s.broadcaster.take()
	require.Len(t, out, 2)
	assert.Equal(t, messages.MessageTypeServerPlayerDisconnected, out[0].Type)
	assert.Len(t, decodeRoom(t, out[1]).Players, 1)
}

func TestGameManager_PersistenceFailure(t *testing.T) {
	repo := &failingRepository{MemoryRepository: repositories.NewMemoryRepository()}
	s := newTestServer(t, repo, nil)
	ctx := context.Background()
	room, err := s.rooms.Create(ctx, "a", models.RoomSettings{})
	require.NoError(t, err)

	repo.failing.Store(true)
	out := s.request(t, 2, "b", messages.MessageTypeClientJoinRoom, &messages.RoomRequest{RoomID: room.ID})
	require.Len(t, out, 2)
	assert.Len(t, decodeRoom(t, out[0]).Players, 2, "the change is announced even though it was not saved")
	requireError(t, out[1:], "persistence_failed", ErrorKindOperational)

	repo.failing.Store(false)
	require.NoError(t, s.dir.FlushDirty(ctx))
	saved := &models.Room{}
	require.NoError(t, repo.GetDocument(ctx, repositories.CollectionRooms, room.ID, saved))
	assert.Len(t, saved.Players, 2)
}

func TestGameManager_processClientMessages(t *testing.T) {
	mockQueue := mocks.NewQueue(t)
	s := newTestServer(t, repositories.NewMemoryRepository(), mockQueue)
	ctx := context.Background()
	first, err := s.rooms.Create(ctx, "a", models.RoomSettings{})
	require.NoError(t, err)
	second, err := s.rooms.Create(ctx, "c", models.RoomSettings{})
	require.NoError(t, err)

	mockQueue.On("ReadAllMessages").Return([]interface{}{
		inbound(t, 2, "b", messages.MessageTypeClientJoinRoom, &messages.RoomRequest{RoomID: first.ID}),
		"not a message",
		inbound(t, 1, "a", messages.MessageTypeClientJoinRoom, &messages.RoomRequest{RoomID: second.ID}),
		inbound(t, 2, "b", messages.MessageTypeClientLeaveRoom, &messages.RoomRequest{RoomID: first.ID}),
	}, nil).Once()

	s.gm.processClientMessages(ctx)

	var firstRoom []int
	for _, d := range s.broadcaster.take() {
		if d.To == "room:"+first.ID {
			firstRoom = append(firstRoom, len(decodeRoom(t, d).Players))
		}
	}
	assert.Equal(t, []int{2, 1}, firstRoom, "requests for one room keep their order")

	view, err := s.dir.View(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, view.Room.HasPlayer("a"))
}

func TestGameManager_RoomClosed(t *testing.T) {
	s := newTestServer(t, repositories.NewMemoryRepository(), nil)
	s.gm.RoomClosed("ABCDE")

	out := s.broadcaster.take()
	require.Len(t, out, 1)
	assert.Equal(t, messages.MessageTypeServerRoomClosed, out[0].Type)
	assert.Equal(t, "room:ABCDE", out[0].To)
	assert.Equal(t, []string{"ABCDE"}, s.broadcaster.closed)
}
