package workers

import (
	"context"

	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/network"
	"github.com/cbodonnell/ninetyfive/pkg/queue"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
)

type ConnectionEventWorker struct {
	clientEventChan      <-chan network.ClientEvent
	repository           repositories.Repository
	connectionEventQueue queue.Queue
}

type NewConnectionEventWorkerOptions struct {
	ClientEventChan      <-chan network.ClientEvent
	Repository           repositories.Repository
	ConnectionEventQueue queue.Queue
}

// NewConnectionEventWorker creates a new ConnectionEventWorker.
// The worker makes sure every connected user has a profile and passes
// disconnects on to the game loop.
func NewConnectionEventWorker(opts NewConnectionEventWorkerOptions) *ConnectionEventWorker {
	return &ConnectionEventWorker{
		clientEventChan:      opts.ClientEventChan,
		repository:           opts.Repository,
		connectionEventQueue: opts.ConnectionEventQueue,
	}
}

func (w *ConnectionEventWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.clientEventChan:
			switch event.Type {
			case network.ClientEventTypeConnect:
				w.handleClientConnect(ctx, event)
			case network.ClientEventTypeDisconnect:
				w.handleClientDisconnect(event)
			default:
				log.Error("Unknown client event type: %v", event.Type)
			}
		}
	}
}

// handleClientConnect creates a profile from the token claims for users
// that signed in without registering through the auth server.
func (w *ConnectionEventWorker) handleClientConnect(ctx context.Context, event network.ClientEvent) {
	data, ok := event.Data.(network.ClientConnectData)
	if !ok {
		log.Error("Failed to cast client connect data")
		return
	}

	err := w.repository.GetDocument(ctx, repositories.CollectionUsers, data.UserID, &models.User{})
	if err == nil {
		return
	}
	if !repositories.IsNotFound(err) {
		log.Error("Failed to get user %s: %v", data.UserID, err)
		return
	}

	username := data.Name
	if username == "" {
		username = data.Email
	}
	if username == "" {
		username = data.UserID
	}
	log.Debug("Creating profile for user %s", data.UserID)
	if err := w.repository.SetDocument(ctx, repositories.CollectionUsers, data.UserID, &models.User{
		ID:       data.UserID,
		Username: username,
	}); err != nil {
		log.Error("Failed to create profile for user %s: %v", data.UserID, err)
	}
}

func (w *ConnectionEventWorker) handleClientDisconnect(event network.ClientEvent) {
	if err := w.connectionEventQueue.Enqueue(event); err != nil {
		log.Error("Failed to enqueue disconnect event for client %d: %v", event.ClientID, err)
	}
}
