package workers

import (
	"context"
	"fmt"

	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/messages"
	"github.com/cbodonnell/ninetyfive/pkg/network"
)

// BroadcastMessageChannelSize is the number of pending deliveries the game
// loop can queue before it blocks.
const BroadcastMessageChannelSize = 1024

type BroadcastAction int

const (
	BroadcastActionSendToConnection BroadcastAction = iota
	BroadcastActionSendToClient
	BroadcastActionSendToRoom
	BroadcastActionJoinRoom
	BroadcastActionLeaveRoom
	BroadcastActionCloseRoom
)

// BroadcastMessage is one delivery or room membership change. Membership
// changes travel on the same channel so they stay ordered with the
// messages around them.
type BroadcastMessage struct {
	Action   BroadcastAction
	ClientID uint32
	UserID   string
	RoomID   string
	Message  *messages.Message
}

// BroadcastMessageWorker performs queued deliveries on the network so the
// game loop never waits on a slow client.
type BroadcastMessageWorker struct {
	networkManager       network.Broadcaster
	broadcastMessageChan <-chan BroadcastMessage
}

type NewBroadcastMessageWorkerOptions struct {
	NetworkManager       network.Broadcaster
	BroadcastMessageChan <-chan BroadcastMessage
}

func NewBroadcastMessageWorker(opts NewBroadcastMessageWorkerOptions) *BroadcastMessageWorker {
	return &BroadcastMessageWorker{
		networkManager:       opts.NetworkManager,
		broadcastMessageChan: opts.BroadcastMessageChan,
	}
}

func (w *BroadcastMessageWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.broadcastMessageChan:
			if err := w.handle(ctx, msg); err != nil {
				log.Error("Failed to broadcast message: %v", err)
			}
		}
	}
}

func (w *BroadcastMessageWorker) handle(ctx context.Context, b BroadcastMessage) error {
	switch b.Action {
	case BroadcastActionSendToConnection:
		return w.networkManager.SendToConnection(ctx, b.ClientID, b.Message)
	case BroadcastActionSendToClient:
		return w.networkManager.SendToClient(ctx, b.UserID, b.Message)
	case BroadcastActionSendToRoom:
		return w.networkManager.SendToRoom(ctx, b.RoomID, b.Message)
	case BroadcastActionJoinRoom:
		w.networkManager.JoinRoom(b.ClientID, b.RoomID)
	case BroadcastActionLeaveRoom:
		w.networkManager.LeaveRoom(b.UserID, b.RoomID)
	case BroadcastActionCloseRoom:
		w.networkManager.CloseRoom(b.RoomID)
	default:
		return fmt.Errorf("unknown broadcast action: %v", b.Action)
	}
	return nil
}

var _ network.Broadcaster = &QueuedBroadcaster{}

// QueuedBroadcaster hands every call to a BroadcastMessageWorker. Sends
// return once the delivery is queued.
type QueuedBroadcaster struct {
	broadcastMessageChan chan<- BroadcastMessage
}

func NewQueuedBroadcaster(broadcastMessageChan chan<- BroadcastMessage) *QueuedBroadcaster {
	return &QueuedBroadcaster{
		broadcastMessageChan: broadcastMessageChan,
	}
}

func (b *QueuedBroadcaster) enqueue(ctx context.Context, msg BroadcastMessage) error {
	select {
	case b.broadcastMessageChan <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to queue broadcast: %v", ctx.Err())
	}
}

func (b *QueuedBroadcaster) SendToConnection(ctx context.Context, clientID uint32, msg *messages.Message) error {
	return b.enqueue(ctx, BroadcastMessage{Action: BroadcastActionSendToConnection, ClientID: clientID, Message: msg})
}

func (b *QueuedBroadcaster) SendToClient(ctx context.Context, userID string, msg *messages.Message) error {
	return b.enqueue(ctx, BroadcastMessage{Action: BroadcastActionSendToClient, UserID: userID, Message: msg})
}

func (b *QueuedBroadcaster) SendToRoom(ctx context.Context, roomID string, msg *messages.Message) error {
	return b.enqueue(ctx, BroadcastMessage{Action: BroadcastActionSendToRoom, RoomID: roomID, Message: msg})
}

// JoinRoom blocks until queued. Membership changes are never dropped.
func (b *QueuedBroadcaster) JoinRoom(clientID uint32, roomID string) {
	b.broadcastMessageChan <- BroadcastMessage{Action: BroadcastActionJoinRoom, ClientID: clientID, RoomID: roomID}
}

func (b *QueuedBroadcaster) LeaveRoom(userID, roomID string) {
	b.broadcastMessageChan <- BroadcastMessage{Action: BroadcastActionLeaveRoom, UserID: userID, RoomID: roomID}
}

func (b *QueuedBroadcaster) CloseRoom(roomID string) {
	b.broadcastMessageChan <- BroadcastMessage{Action: BroadcastActionCloseRoom, RoomID: roomID}
}
