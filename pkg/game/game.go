package game

import (
	"context"
	"errors"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/game/types"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/messages"
	"github.com/cbodonnell/ninetyfive/pkg/network"
	"github.com/cbodonnell/ninetyfive/pkg/queue"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
	"github.com/cbodonnell/ninetyfive/pkg/rooms"
	"github.com/cbodonnell/ninetyfive/pkg/state"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultGameLoopInterval is how often queued requests are drained.
	DefaultGameLoopInterval = 20 * time.Millisecond
	// messageTimeout bounds the handling of a single request.
	messageTimeout = 15 * time.Second
)

// GameManager drains the request queues and applies each request to its
// room's session. Requests for one room are handled in arrival order; rooms
// are handled concurrently.
type GameManager struct {
	engine               *Engine
	directory            *state.Directory
	rooms                *rooms.Manager
	broadcaster          network.Broadcaster
	clientMessageQueue   queue.Queue
	connectionEventQueue queue.Queue
	gameLoopInterval     time.Duration
}

// NewGameManagerOptions contains options for creating a new GameManager.
type NewGameManagerOptions struct {
	Engine               *Engine
	Directory            *state.Directory
	Rooms                *rooms.Manager
	Broadcaster          network.Broadcaster
	ClientMessageQueue   queue.Queue
	ConnectionEventQueue queue.Queue
	GameLoopInterval     time.Duration
}

func NewGameManager(opts NewGameManagerOptions) *GameManager {
	interval := opts.GameLoopInterval
	if interval == 0 {
		interval = DefaultGameLoopInterval
	}
	return &GameManager{
		engine:               opts.Engine,
		directory:            opts.Directory,
		rooms:                opts.Rooms,
		broadcaster:          opts.Broadcaster,
		clientMessageQueue:   opts.ClientMessageQueue,
		connectionEventQueue: opts.ConnectionEventQueue,
		gameLoopInterval:     interval,
	}
}

// Start starts the game loop.
func (gm *GameManager) Start(ctx context.Context) error {
	ticker := time.NewTicker(gm.gameLoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			gm.gameTick(ctx)
		}
	}
}

// gameTick runs one iteration of the game loop.
func (gm *GameManager) gameTick(ctx context.Context) {
	gm.processConnectionEvents(ctx)
	gm.processClientMessages(ctx)
}

// processConnectionEvents handles the disconnects queued since the last tick.
func (gm *GameManager) processConnectionEvents(ctx context.Context) {
	pendingEvents, err := gm.connectionEventQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read connection events: %v", err)
		return
	}
	for _, item := range pendingEvents {
		event, ok := item.(network.ClientEvent)
		if !ok {
			log.Error("unhandled connection event type: %T", item)
			continue
		}
		if event.Type != network.ClientEventTypeDisconnect {
			continue
		}
		data, ok := event.Data.(network.ClientDisconnectData)
		if !ok {
			log.Error("Failed to cast client disconnect data")
			continue
		}
		gm.handleDisconnect(ctx, data)
	}
}

// processClientMessages handles the requests queued since the last tick,
// one goroutine per room.
func (gm *GameManager) processClientMessages(ctx context.Context) {
	pendingMessages, err := gm.clientMessageQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read client messages: %v", err)
		return
	}

	batches := make(map[string][]*network.InboundMessage)
	var order []string
	for _, item := range pendingMessages {
		in, ok := item.(*network.InboundMessage)
		if !ok {
			log.Error("Failed to cast message to network.InboundMessage")
			continue
		}
		key := roomKey(in.Message)
		if _, ok := batches[key]; !ok {
			order = append(order, key)
		}
		batches[key] = append(batches[key], in)
	}

	var g errgroup.Group
	for _, key := range order {
		batch := batches[key]
		g.Go(func() error {
			for _, in := range batch {
				gm.HandleMessage(ctx, in)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// roomKey is the room a request addresses, or "" for requests that do not
// name one.
func roomKey(msg *messages.Message) string {
	req := &messages.RoomRequest{}
	if err := msg.DecodePayload(req); err != nil {
		return ""
	}
	return req.RoomID
}

// HandleMessage applies one request and reports a failure to the connection
// it came from.
func (gm *GameManager) HandleMessage(ctx context.Context, in *network.InboundMessage) {
	ctx, cancel := context.WithTimeout(ctx, messageTimeout)
	defer cancel()

	logger := log.WithFields(log.Fields{
		"client":  in.ClientID,
		"user":    in.UserID,
		"request": in.Message.Type,
	})
	logger.Trace("Handling request")

	if err := gm.dispatch(ctx, in); err != nil {
		if Kind(err) == ErrorKindOperational {
			logger.Error("Request failed: %v", err)
		} else {
			logger.Debug("Request rejected: %v", err)
		}
		gm.replyError(ctx, in, err)
	}
}

func (gm *GameManager) dispatch(ctx context.Context, in *network.InboundMessage) error {
	msg := in.Message
	switch msg.Type {
	case messages.MessageTypeClientCreateRoom:
		req := &messages.CreateRoomRequest{}
		if err := decode(msg, req); err != nil {
			return err
		}
		return gm.createRoom(ctx, in, req.Settings)
	case messages.MessageTypeClientJoinRoom:
		roomID, err := decodeRoomID(msg)
		if err != nil {
			return err
		}
		return gm.joinRoom(ctx, in, roomID)
	case messages.MessageTypeClientLeaveRoom:
		roomID, err := decodeRoomID(msg)
		if err != nil {
			return err
		}
		return gm.leaveRoom(ctx, in, roomID)
	case messages.MessageTypeClientRemovePlayer:
		req := &messages.RemovePlayerRequest{}
		if err := decode(msg, req); err != nil {
			return err
		}
		if req.RoomID == "" {
			return validationError(ErrMissingRoomID, "")
		}
		return gm.removePlayer(ctx, in, req.RoomID, req.PlayerID)
	case messages.MessageTypeClientStartGame:
		roomID, err := decodeRoomID(msg)
		if err != nil {
			return err
		}
		return gm.startGame(ctx, in, roomID)
	case messages.MessageTypeClientJoinGame:
		roomID, err := decodeRoomID(msg)
		if err != nil {
			return err
		}
		return gm.joinGame(ctx, in, roomID)
	case messages.MessageTypeClientPlayCard:
		req := &messages.PlayCardRequest{}
		if err := decode(msg, req); err != nil {
			return err
		}
		return gm.applyGame(ctx, req.RoomID, func(g *types.GameState) (*types.GameState, []Event, error) {
			return gm.engine.PlayCard(g, in.UserID, req.Card)
		})
	case messages.MessageTypeClientStartAutoroute:
		roomID, err := decodeRoomID(msg)
		if err != nil {
			return err
		}
		return gm.applyGame(ctx, roomID, func(g *types.GameState) (*types.GameState, []Event, error) {
			return gm.engine.StartAutoroute(g, in.UserID)
		})
	case messages.MessageTypeClientChooseAceValue:
		req := &messages.ChooseAceValueRequest{}
		if err := decode(msg, req); err != nil {
			return err
		}
		return gm.applyGame(ctx, req.RoomID, func(g *types.GameState) (*types.GameState, []Event, error) {
			return gm.engine.ChooseAceValue(g, in.UserID, req.Value)
		})
	case messages.MessageTypeClientChooseDirection:
		req := &messages.ChooseDirectionRequest{}
		if err := decode(msg, req); err != nil {
			return err
		}
		return gm.applyGame(ctx, req.RoomID, func(g *types.GameState) (*types.GameState, []Event, error) {
			return gm.engine.ChooseDirection(g, in.UserID, req.Direction)
		})
	case messages.MessageTypeClientGuess:
		req := &messages.GuessRequest{}
		if err := decode(msg, req); err != nil {
			return err
		}
		return gm.applyGame(ctx, req.RoomID, func(g *types.GameState) (*types.GameState, []Event, error) {
			return gm.engine.Guess(g, in.UserID, req.Guess)
		})
	case messages.MessageTypeClientRestartAutoroute:
		roomID, err := decodeRoomID(msg)
		if err != nil {
			return err
		}
		return gm.applyGame(ctx, roomID, func(g *types.GameState) (*types.GameState, []Event, error) {
			return gm.engine.RestartAutoroute(g, in.UserID)
		})
	default:
		return validationError(ErrInvalidPayload, "unknown message type "+msg.Type)
	}
}

func decode(msg *messages.Message, v interface{}) error {
	if err := msg.DecodePayload(v); err != nil {
		return validationError(ErrInvalidPayload, err.Error())
	}
	return nil
}

func decodeRoomID(msg *messages.Message) (string, error) {
	req := &messages.RoomRequest{}
	if err := decode(msg, req); err != nil {
		return "", err
	}
	if req.RoomID == "" {
		return "", validationError(ErrMissingRoomID, "")
	}
	return req.RoomID, nil
}

// applied reports whether a result should be announced: the change was made,
// even if it could not be saved yet.
func applied(err error) bool {
	return err == nil || errors.Is(err, state.ErrPersistence)
}

func (gm *GameManager) createRoom(ctx context.Context, in *network.InboundMessage, settings models.RoomSettings) error {
	room, err := gm.rooms.Create(ctx, in.UserID, settings)
	if room == nil {
		return err
	}
	gm.broadcaster.JoinRoom(in.ClientID, room.ID)
	gm.sendRoomUpdated(ctx, room)
	return err
}

func (gm *GameManager) joinRoom(ctx context.Context, in *network.InboundMessage, roomID string) error {
	room, changed, err := gm.rooms.Join(ctx, roomID, in.UserID)
	if room == nil || !applied(err) {
		return err
	}
	gm.broadcaster.JoinRoom(in.ClientID, roomID)
	if changed {
		gm.sendRoomUpdated(ctx, room)
	} else {
		gm.send(ctx, in.ClientID, messages.MessageTypeServerRoomUpdated, &messages.ServerRoomUpdated{Room: room})
	}
	return err
}

func (gm *GameManager) leaveRoom(ctx context.Context, in *network.InboundMessage, roomID string) error {
	room, changed, err := gm.rooms.Leave(ctx, roomID, in.UserID)
	if room == nil || !applied(err) {
		return err
	}
	if changed {
		gm.sendRoomUpdated(ctx, room)
	}
	gm.broadcaster.LeaveRoom(in.UserID, roomID)
	return err
}

func (gm *GameManager) removePlayer(ctx context.Context, in *network.InboundMessage, roomID, playerID string) error {
	room, err := gm.rooms.Remove(ctx, roomID, in.UserID, playerID)
	if room == nil || !applied(err) {
		return err
	}
	gm.sendToClient(ctx, playerID, messages.MessageTypeServerRemovedFromRoom, &messages.ServerRemovedFromRoom{RoomID: roomID})
	gm.broadcaster.LeaveRoom(playerID, roomID)
	gm.sendRoomUpdated(ctx, room)
	return err
}

// startGame deals a new game to the players seated in the room. A finished
// game is replaced once its autoroute is over.
func (gm *GameManager) startGame(ctx context.Context, in *network.InboundMessage, roomID string) error {
	var events []Event
	change, err := gm.directory.Do(ctx, roomID, func(ctx context.Context, s *state.State) (*state.Change, error) {
		if !s.Room.HasPlayer(in.UserID) {
			return nil, rooms.ErrNotInRoom
		}
		if s.Game != nil && (!s.Game.GameOver || (s.Game.Autoroute != nil && s.Game.Autoroute.InProgress())) {
			return nil, stateError(ErrGameAlreadyStarted)
		}
		roster := make([]Seat, 0, len(s.Room.Players))
		for _, p := range s.Room.Players {
			roster = append(roster, Seat{ID: p.ID, Username: p.Username, Avatar: p.Avatar})
		}
		game, evs, err := gm.engine.StartGame(roomID, roster)
		if err != nil {
			return nil, err
		}
		events = evs
		room := s.Room.Copy()
		room.Status = models.RoomStatusPlaying
		return &state.Change{Room: room, Game: game}, nil
	})
	if change == nil {
		return err
	}
	log.Info("Game started in room %s", roomID)
	gm.broadcaster.JoinRoom(in.ClientID, roomID)
	gm.sendRoomUpdated(ctx, change.Room)
	gm.publish(ctx, roomID, events)
	return err
}

// joinGame sends the current snapshot to the caller, saving it first if it
// had to be repaired.
func (gm *GameManager) joinGame(ctx context.Context, in *network.InboundMessage, roomID string) error {
	var events []Event
	_, err := gm.directory.Do(ctx, roomID, func(ctx context.Context, s *state.State) (*state.Change, error) {
		next, evs, repaired, err := gm.engine.JoinGame(s.Game, in.UserID)
		if err != nil {
			return nil, err
		}
		events = evs
		if !repaired {
			return nil, nil
		}
		return &state.Change{Game: next}, nil
	})
	if events == nil {
		return err
	}
	gm.broadcaster.JoinRoom(in.ClientID, roomID)
	gm.publish(ctx, roomID, events)
	return err
}

// applyGame runs an engine transition on the room's game. When the game ends
// the room opens again for joining and leaving.
func (gm *GameManager) applyGame(ctx context.Context, roomID string, action func(g *types.GameState) (*types.GameState, []Event, error)) error {
	if roomID == "" {
		return validationError(ErrMissingRoomID, "")
	}
	var events []Event
	change, err := gm.directory.Do(ctx, roomID, func(ctx context.Context, s *state.State) (*state.Change, error) {
		next, evs, err := action(s.Game)
		if err != nil {
			return nil, err
		}
		events = evs
		c := &state.Change{Game: next}
		if next.GameOver && s.Room.Status == models.RoomStatusPlaying {
			room := s.Room.Copy()
			room.Status = models.RoomStatusWaiting
			c.Room = room
		}
		return c, nil
	})
	if change == nil {
		return err
	}
	gm.publish(ctx, roomID, events)
	if change.Room != nil {
		gm.sendRoomUpdated(ctx, change.Room)
	}
	return err
}

// handleDisconnect tells the room a player's last connection closed and
// frees their seat if the game has not started.
func (gm *GameManager) handleDisconnect(ctx context.Context, data network.ClientDisconnectData) {
	if data.RoomID == "" || !data.LastConnection {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, messageTimeout)
	defer cancel()

	room, removed, err := gm.rooms.Disconnect(ctx, data.RoomID, data.UserID)
	if room == nil {
		if errors.Is(err, state.ErrRoomNotFound) {
			log.Debug("Room %s is gone, ignoring disconnect of %s", data.RoomID, data.UserID)
			return
		}
		log.Error("Failed to handle disconnect of %s from room %s: %v", data.UserID, data.RoomID, err)
		return
	}
	if err != nil {
		log.Error("Failed to save disconnect of %s from room %s: %v", data.UserID, data.RoomID, err)
	}

	gm.sendToRoom(ctx, data.RoomID, messages.MessageTypeServerPlayerDisconnected, &messages.ServerPlayerDisconnected{
		RoomID:   data.RoomID,
		PlayerID: data.UserID,
	})
	if removed {
		gm.sendRoomUpdated(ctx, room)
	}
}

// RoomClosed tells the clients of a torn down room and detaches them.
func (gm *GameManager) RoomClosed(roomID string) {
	log.Info("Room %s closed", roomID)
	gm.sendToRoom(context.Background(), roomID, messages.MessageTypeServerRoomClosed, &messages.ServerRoomClosed{RoomID: roomID})
	gm.broadcaster.CloseRoom(roomID)
}

// publish delivers engine events: to the listed recipients, or to the whole
// room when there are none.
func (gm *GameManager) publish(ctx context.Context, roomID string, events []Event) {
	for _, ev := range events {
		if ev.Broadcast() {
			gm.sendToRoom(ctx, roomID, string(ev.Type), ev.Payload)
			continue
		}
		for _, userID := range ev.Recipients {
			gm.sendToClient(ctx, userID, string(ev.Type), ev.Payload)
		}
	}
}

func (gm *GameManager) sendRoomUpdated(ctx context.Context, room *models.Room) {
	gm.sendToRoom(ctx, room.ID, messages.MessageTypeServerRoomUpdated, &messages.ServerRoomUpdated{Room: room})
}

func (gm *GameManager) sendToRoom(ctx context.Context, roomID, messageType string, payload interface{}) {
	msg, err := messages.NewMessage(0, messageType, payload)
	if err != nil {
		log.Error("Failed to encode %s: %v", messageType, err)
		return
	}
	if err := gm.broadcaster.SendToRoom(ctx, roomID, msg); err != nil {
		log.Error("Failed to send %s to room %s: %v", messageType, roomID, err)
	}
}

func (gm *GameManager) sendToClient(ctx context.Context, userID, messageType string, payload interface{}) {
	msg, err := messages.NewMessage(0, messageType, payload)
	if err != nil {
		log.Error("Failed to encode %s: %v", messageType, err)
		return
	}
	if err := gm.broadcaster.SendToClient(ctx, userID, msg); err != nil {
		log.Error("Failed to send %s to user %s: %v", messageType, userID, err)
	}
}

func (gm *GameManager) send(ctx context.Context, clientID uint32, messageType string, payload interface{}) {
	msg, err := messages.NewMessage(0, messageType, payload)
	if err != nil {
		log.Error("Failed to encode %s: %v", messageType, err)
		return
	}
	if err := gm.broadcaster.SendToConnection(ctx, clientID, msg); err != nil {
		log.Error("Failed to send %s to client %d: %v", messageType, clientID, err)
	}
}

func (gm *GameManager) replyError(ctx context.Context, in *network.InboundMessage, err error) {
	code := Code(err)
	text := err.Error()
	switch {
	case errors.Is(err, state.ErrPersistence):
		text = state.ErrPersistence.Error()
	case code == "internal":
		text = "internal error"
	}
	gm.send(ctx, in.ClientID, messages.MessageTypeServerError, &messages.ServerError{
		Code:    code,
		Kind:    string(Kind(err)),
		Message: text,
		Request: in.Message.Type,
	})
}
