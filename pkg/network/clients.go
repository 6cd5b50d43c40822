package network

import (
	"fmt"
	"math/rand"
	"net"
	"sync"

	"nhooyr.io/websocket"
)

const (
	// ClientIDMaxRetries represents the maximum number of retries when generating a unique ID
	ClientIDMaxRetries = 1024
	// ClientEventChannelSize represents the size of the client event channel
	ClientEventChannelSize = 1024
)

type ClientConnectionType int

const (
	ClientConnectionTypeTCP ClientConnectionType = iota
	ClientConnectionTypeWebSocket
)

// Client represents a connected, authenticated connection. A user may hold
// several clients at once.
type Client struct {
	ID             uint32
	UserID         string
	RoomID         string
	ConnectionType ClientConnectionType
	TCPConn        net.Conn
	WSConn         *websocket.Conn
	// writeLock serializes frames written to TCPConn
	writeLock *sync.Mutex
}

// ClientEvent represents an event that happened to a client
type ClientEvent struct {
	ClientID uint32
	Type     ClientEventType
	Data     interface{}
}

// ClientEventType represents the type of a client event
type ClientEventType int

const (
	ClientEventTypeConnect ClientEventType = iota
	ClientEventTypeDisconnect
)

type ClientConnectData struct {
	UserID string
	Name   string
	Email  string
}

type ClientDisconnectData struct {
	UserID string
	RoomID string
	// LastConnection is set when the user has no other client left in the room.
	LastConnection bool
}

// ClientManager manages connected clients
type ClientManager struct {
	clients         map[uint32]*Client
	clientsLock     sync.RWMutex
	clientEventChan chan ClientEvent
}

// NewClientManager creates a new ClientManager
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients:         make(map[uint32]*Client),
		clientEventChan: make(chan ClientEvent, ClientEventChannelSize),
	}
}

// GetClientEventChan returns a one-way channel for receiving client events
func (cm *ClientManager) GetClientEventChan() <-chan ClientEvent {
	return cm.clientEventChan
}

// GetClients returns a slice with a copy of all connected clients.
func (cm *ClientManager) GetClients() []*Client {
	return cm.filter(func(*Client) bool { return true })
}

// GetClientsByUser returns copies of every client of userID.
func (cm *ClientManager) GetClientsByUser(userID string) []*Client {
	return cm.filter(func(c *Client) bool { return c.UserID == userID })
}

// GetClientsInRoom returns copies of every client that joined roomID.
func (cm *ClientManager) GetClientsInRoom(roomID string) []*Client {
	return cm.filter(func(c *Client) bool { return c.RoomID == roomID })
}

func (cm *ClientManager) filter(keep func(*Client) bool) []*Client {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	clients := make([]*Client, 0, len(cm.clients))
	for _, client := range cm.clients {
		if keep(client) {
			copy := *client
			clients = append(clients, &copy)
		}
	}
	return clients
}

// GetClient returns a copy of a client.
func (cm *ClientManager) GetClient(clientID uint32) (*Client, error) {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	client, ok := cm.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %d not found", clientID)
	}
	copy := *client
	return &copy, nil
}

// ConnectClient adds a new client to the manager and returns its ID. Exactly
// one of tcpConn and wsConn is set.
func (cm *ClientManager) ConnectClient(tcpConn net.Conn, wsConn *websocket.Conn, data ClientConnectData) (uint32, error) {
	if (tcpConn == nil) == (wsConn == nil) {
		return 0, fmt.Errorf("exactly one connection is required")
	}

	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	clientID, err := cm.generateUniqueID(ClientIDMaxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to generate a unique ID: %v", err)
	}
	client := &Client{
		ID:        clientID,
		UserID:    data.UserID,
		TCPConn:   tcpConn,
		WSConn:    wsConn,
		writeLock: &sync.Mutex{},
	}
	if wsConn != nil {
		client.ConnectionType = ClientConnectionTypeWebSocket
	}
	cm.clients[clientID] = client

	event := ClientEvent{
		ClientID: clientID,
		Type:     ClientEventTypeConnect,
		Data:     data,
	}
	cm.clientEventChan <- event

	return clientID, nil
}

// GetClientIDByTCPConn returns the ID of a client by its TCP connection.
// Returns 0 if the client is not found
func (cm *ClientManager) GetClientIDByTCPConn(conn net.Conn) uint32 {
	if conn == nil {
		return 0
	}
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	for _, client := range cm.clients {
		if client.TCPConn == conn {
			return client.ID
		}
	}
	return 0
}

// GetClientIDByWSConn returns the ID of a client by its WebSocket connection.
// Returns 0 if the client is not found
func (cm *ClientManager) GetClientIDByWSConn(conn *websocket.Conn) uint32 {
	if conn == nil {
		return 0
	}
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	for _, client := range cm.clients {
		if client.WSConn == conn {
			return client.ID
		}
	}
	return 0
}

// DisconnectClient removes a client from the manager
func (cm *ClientManager) DisconnectClient(clientID uint32) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	client, ok := cm.clients[clientID]
	if !ok {
		return
	}
	delete(cm.clients, clientID)

	last := true
	for _, other := range cm.clients {
		if other.UserID == client.UserID && other.RoomID == client.RoomID {
			last = false
			break
		}
	}

	event := ClientEvent{
		ClientID: client.ID,
		Type:     ClientEventTypeDisconnect,
		Data: ClientDisconnectData{
			UserID:         client.UserID,
			RoomID:         client.RoomID,
			LastConnection: last,
		},
	}
	cm.clientEventChan <- event
}

// SetRoom records the room a client takes part in. Broadcasts to the room
// reach it from then on.
func (cm *ClientManager) SetRoom(clientID uint32, roomID string) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()
	if client, ok := cm.clients[clientID]; ok {
		client.RoomID = roomID
	}
}

// LeaveRoom detaches every client of userID from roomID.
func (cm *ClientManager) LeaveRoom(userID, roomID string) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()
	for _, client := range cm.clients {
		if client.UserID == userID && client.RoomID == roomID {
			client.RoomID = ""
		}
	}
}

// CloseRoom detaches every client from roomID.
func (cm *ClientManager) CloseRoom(roomID string) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()
	for _, client := range cm.clients {
		if client.RoomID == roomID {
			client.RoomID = ""
		}
	}
}

func (cm *ClientManager) Exists(clientID uint32) bool {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	_, ok := cm.clients[clientID]
	return ok
}

// generateUniqueID generates a unique client ID with a maximum number of retries
// it reads from the clients, so it needs to be locked before calling
func (cm *ClientManager) generateUniqueID(maxRetries int) (uint32, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		id := rand.Uint32()
		if id == 0 {
			continue
		}
		if _, ok := cm.clients[id]; !ok {
			return id, nil
		}
	}

	return 0, fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}
