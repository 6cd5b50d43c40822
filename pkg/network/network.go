package network

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	authproviders "github.com/cbodonnell/ninetyfive/pkg/auth/providers"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/messages"
	"github.com/cbodonnell/ninetyfive/pkg/queue"
	"nhooyr.io/websocket"
)

// writeTimeout bounds a single write to a slow client.
const writeTimeout = 5 * time.Second

// InboundMessage is a client request stamped with the identity of the
// connection it arrived on.
type InboundMessage struct {
	ClientID uint32
	UserID   string
	Message  *messages.Message
}

// Broadcaster delivers server messages to connections, users and rooms.
type Broadcaster interface {
	// SendToConnection writes to a single connection.
	SendToConnection(ctx context.Context, clientID uint32, msg *messages.Message) error
	// SendToClient writes to every connection of a user.
	SendToClient(ctx context.Context, userID string, msg *messages.Message) error
	// SendToRoom writes to every connection that joined a room.
	SendToRoom(ctx context.Context, roomID string, msg *messages.Message) error
	JoinRoom(clientID uint32, roomID string)
	LeaveRoom(userID, roomID string)
	CloseRoom(roomID string)
}

var _ Broadcaster = &NetworkManager{}

type NetworkManager struct {
	AuthProvider  authproviders.AuthProvider
	ClientManager *ClientManager
	MessageQueue  queue.Queue
	TCPServer     *TCPServer
	WSServer      *WSServer
}

type NewNetworkManagerOptions struct {
	AuthProvider  authproviders.AuthProvider
	ClientManager *ClientManager
	MessageQueue  queue.Queue
	// TCPPort and WSPort disable their server when zero.
	TCPPort     int
	WSPort      int
	WSServerTLS *TLSConfig
}

func NewNetworkManager(options NewNetworkManagerOptions) *NetworkManager {
	n := &NetworkManager{
		AuthProvider:  options.AuthProvider,
		ClientManager: options.ClientManager,
		MessageQueue:  options.MessageQueue,
	}
	if options.TCPPort != 0 {
		n.TCPServer = NewTCPServer(NewTCPServerOptions{
			Port: options.TCPPort,
		})
	}
	if options.WSPort != 0 {
		n.WSServer = NewWSServer(NewWSServerOptions{
			Port: options.WSPort,
			TLS:  options.WSServerTLS,
		})
	}
	return n
}

func (n *NetworkManager) Start(ctx context.Context) {
	if n.TCPServer != nil {
		go n.TCPServer.Start(ctx, n.handleControlDisconnect, n.handleControlMessage)
	}
	if n.WSServer != nil {
		go n.WSServer.Start(ctx, n.handleControlDisconnect, n.handleControlMessage)
	}
}

// WSHandler serves the WebSocket transport from another HTTP server.
func (n *NetworkManager) WSHandler(ctx context.Context) http.Handler {
	ws := n.WSServer
	if ws == nil {
		ws = NewWSServer(NewWSServerOptions{})
	}
	return ws.Handler(ctx, n.handleControlDisconnect, n.handleControlMessage)
}

type ControlDisconnectHandler func(tcpConn net.Conn, wsConn *websocket.Conn)

func (n *NetworkManager) handleControlDisconnect(conn net.Conn, wsConn *websocket.Conn) {
	clientID := n.clientIDByConn(conn, wsConn)
	if clientID == 0 {
		log.Trace("Unauthenticated connection closed")
		return
	}
	n.ClientManager.DisconnectClient(clientID)
	log.Info("Client %d disconnected", clientID)
}

type ControlMessageHandler func(ctx context.Context, tcpConn net.Conn, wsConn *websocket.Conn, message *messages.Message)

func (n *NetworkManager) handleControlMessage(ctx context.Context, tcpConn net.Conn, wsConn *websocket.Conn, message *messages.Message) {
	clientID := n.clientIDByConn(tcpConn, wsConn)
	// the connection is the only source of identity
	message.ClientID = clientID

	if message.Type == messages.MessageTypeClientLogin {
		if clientID != 0 {
			log.Warn("Client %d sent a second login", clientID)
			return
		}
		n.handleClientLogin(ctx, tcpConn, wsConn, message)
		return
	}

	if clientID == 0 {
		log.Warn("Received %s message from an unauthenticated connection", message.Type)
		n.writeToConn(ctx, tcpConn, wsConn, errorMessage("unauthenticated", "login required", message.Type))
		return
	}

	switch message.Type {
	case messages.MessageTypeClientSyncTime:
		if err := n.handleClientSyncTime(ctx, message); err != nil {
			log.Error("Failed to handle client sync time: %v", err)
		}
	default:
		if !messages.IsClientMessageType(message.Type) {
			log.Warn("Received unknown message type %s from client %d", message.Type, clientID)
			n.reply(ctx, clientID, errorMessage("unknown_message_type", "unknown message type", message.Type))
			return
		}
		client, err := n.ClientManager.GetClient(clientID)
		if err != nil {
			log.Warn("Dropping message from client %d: %v", clientID, err)
			return
		}
		inbound := &InboundMessage{
			ClientID: clientID,
			UserID:   client.UserID,
			Message:  message,
		}
		if err := n.MessageQueue.Enqueue(inbound); err != nil {
			log.Error("Failed to enqueue message: %v", err)
			n.reply(ctx, clientID, errorMessage("server_busy", "server busy, try again", message.Type))
		}
	}
}

// handleClientLogin verifies the token of a login message and registers the
// connection.
func (n *NetworkManager) handleClientLogin(ctx context.Context, tcpConn net.Conn, wsConn *websocket.Conn, message *messages.Message) {
	clientID, userID, err := n.login(ctx, tcpConn, wsConn, message)
	if err != nil {
		log.Warn("Failed to handle client login: %v", err)
		msg, encErr := messages.NewMessage(0, messages.MessageTypeServerLoginFailure, &messages.ServerLoginFailure{
			Reason: err.Error(),
		})
		if encErr != nil {
			log.Error("Failed to encode login failure: %v", encErr)
			return
		}
		n.writeToConn(ctx, tcpConn, wsConn, msg)
		return
	}

	log.Info("Client %d connected as %s", clientID, userID)
	msg, err := messages.NewMessage(0, messages.MessageTypeServerLoginSuccess, &messages.ServerLoginSuccess{
		ClientID: clientID,
		UserID:   userID,
	})
	if err != nil {
		log.Error("Failed to encode login success: %v", err)
		return
	}
	if err := n.SendToConnection(ctx, clientID, msg); err != nil {
		log.Error("Failed to send server login success: %v", err)
	}
}

func (n *NetworkManager) login(ctx context.Context, tcpConn net.Conn, wsConn *websocket.Conn, message *messages.Message) (uint32, string, error) {
	clientLogin := &messages.ClientLogin{}
	if err := message.DecodePayload(clientLogin); err != nil {
		return 0, "", err
	}

	claims, err := n.AuthProvider.VerifyToken(ctx, clientLogin.Token)
	if err != nil {
		return 0, "", fmt.Errorf("failed to verify token: %v", err)
	}

	clientID, err := n.ClientManager.ConnectClient(tcpConn, wsConn, ClientConnectData{
		UserID: claims.UID,
		Name:   claims.Name,
		Email:  claims.Email,
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to connect client: %v", err)
	}

	return clientID, claims.UID, nil
}

func (n *NetworkManager) handleClientSyncTime(ctx context.Context, message *messages.Message) error {
	clientSyncTime := &messages.ClientSyncTime{}
	if err := message.DecodePayload(clientSyncTime); err != nil {
		return err
	}

	msg, err := messages.NewMessage(0, messages.MessageTypeServerSyncTime, &messages.ServerSyncTime{
		Timestamp:       time.Now().UnixMilli(),
		ClientTimestamp: clientSyncTime.Timestamp,
	})
	if err != nil {
		return err
	}

	if err := n.SendToConnection(ctx, message.ClientID, msg); err != nil {
		return fmt.Errorf("failed to send server sync time: %v", err)
	}

	return nil
}

func (n *NetworkManager) clientIDByConn(tcpConn net.Conn, wsConn *websocket.Conn) uint32 {
	if tcpConn != nil {
		return n.ClientManager.GetClientIDByTCPConn(tcpConn)
	}
	return n.ClientManager.GetClientIDByWSConn(wsConn)
}

func (n *NetworkManager) reply(ctx context.Context, clientID uint32, msg *messages.Message) {
	if msg == nil {
		return
	}
	if err := n.SendToConnection(ctx, clientID, msg); err != nil {
		log.Error("Failed to reply to client %d: %v", clientID, err)
	}
}

// writeToConn writes to a connection that has not logged in.
func (n *NetworkManager) writeToConn(ctx context.Context, tcpConn net.Conn, wsConn *websocket.Conn, msg *messages.Message) {
	if msg == nil {
		return
	}
	var err error
	if tcpConn != nil {
		err = WriteMessageToTCP(tcpConn, msg)
	} else {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		err = WriteMessageToWS(ctx, wsConn, msg)
	}
	if err != nil {
		log.Error("Failed to write %s to unauthenticated connection: %v", msg.Type, err)
	}
}

func errorMessage(code, text, request string) *messages.Message {
	msg, err := messages.NewMessage(0, messages.MessageTypeServerError, &messages.ServerError{
		Code:    code,
		Kind:    "validation",
		Message: text,
		Request: request,
	})
	if err != nil {
		log.Error("Failed to encode error message: %v", err)
		return nil
	}
	return msg
}

func (n *NetworkManager) sendToClient(ctx context.Context, client *Client, msg *messages.Message) error {
	switch client.ConnectionType {
	case ClientConnectionTypeTCP:
		client.writeLock.Lock()
		defer client.writeLock.Unlock()
		client.TCPConn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := WriteMessageToTCP(client.TCPConn, msg); err != nil {
			return fmt.Errorf("failed to write message to TCP connection for client %d: %v", client.ID, err)
		}
	case ClientConnectionTypeWebSocket:
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		if err := WriteMessageToWS(ctx, client.WSConn, msg); err != nil {
			return fmt.Errorf("failed to write message to WebSocket connection for client %d: %v", client.ID, err)
		}
	default:
		return fmt.Errorf("unknown connection type for client %d: %v", client.ID, client.ConnectionType)
	}

	return nil
}

func (n *NetworkManager) SendToConnection(ctx context.Context, clientID uint32, msg *messages.Message) error {
	client, err := n.ClientManager.GetClient(clientID)
	if err != nil {
		return fmt.Errorf("failed to get client %d: %v", clientID, err)
	}

	return n.sendToClient(ctx, client, msg)
}

func (n *NetworkManager) SendToClient(ctx context.Context, userID string, msg *messages.Message) error {
	return n.sendToAll(ctx, n.ClientManager.GetClientsByUser(userID), msg)
}

func (n *NetworkManager) SendToRoom(ctx context.Context, roomID string, msg *messages.Message) error {
	return n.sendToAll(ctx, n.ClientManager.GetClientsInRoom(roomID), msg)
}

// sendToAll writes to every client, logging failures. It returns the last
// error so callers know a delivery was missed.
func (n *NetworkManager) sendToAll(ctx context.Context, clients []*Client, msg *messages.Message) error {
	var lastErr error
	for _, client := range clients {
		if err := n.sendToClient(ctx, client, msg); err != nil {
			log.Error("Failed to send %s to client %d: %v", msg.Type, client.ID, err)
			lastErr = err
		}
	}
	return lastErr
}

func (n *NetworkManager) JoinRoom(clientID uint32, roomID string) {
	n.ClientManager.SetRoom(clientID, roomID)
}

func (n *NetworkManager) LeaveRoom(userID, roomID string) {
	n.ClientManager.LeaveRoom(userID, roomID)
}

func (n *NetworkManager) CloseRoom(roomID string) {
	n.ClientManager.CloseRoom(roomID)
}
