package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/game/types"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/messages"
	"github.com/cbodonnell/ninetyfive/pkg/network"
	"github.com/cbodonnell/ninetyfive/pkg/queue"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
)

const (
	DefaultServerAddr = "localhost:8888"
	// DefaultRequestTimeout bounds login and time sync round trips.
	DefaultRequestTimeout = 5 * time.Second
	// recentRTTCount is the number of round trips averaged into the ping.
	recentRTTCount = 10
)

// ErrNotConnected is returned by requests made before Connect succeeded.
var ErrNotConnected = errors.New("not connected")

// Client plays on a game server. Replies to login and time sync are handled
// by the client; every other server message is put on the server message
// queue in arrival order.
type Client struct {
	addr               string
	token              string
	requestTimeout     time.Duration
	serverMessageQueue queue.Queue

	conn     Conn
	clientID uint32
	userID   string
	lock     sync.RWMutex

	loginChan      chan *messages.Message
	serverTimeChan chan *messages.ServerSyncTime
	readErrChan    chan error
	wg             sync.WaitGroup

	serverTime      int64
	ping            float64
	recentRTTs      []int64
	serverTimeMutex sync.Mutex
}

type NewClientOptions struct {
	// Addr is a host:port for TCP or a ws:// or wss:// URL.
	Addr  string
	Token string
	// MessageQueue receives server messages. Defaults to an in-memory queue.
	MessageQueue   queue.Queue
	RequestTimeout time.Duration
}

func NewClient(opts NewClientOptions) *Client {
	addr := opts.Addr
	if addr == "" {
		addr = DefaultServerAddr
	}
	q := opts.MessageQueue
	if q == nil {
		q = queue.NewInMemoryQueue(1000)
	}
	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		addr:               addr,
		token:              opts.Token,
		requestTimeout:     timeout,
		serverMessageQueue: q,
		loginChan:          make(chan *messages.Message, 1),
		serverTimeChan:     make(chan *messages.ServerSyncTime, 1),
		readErrChan:        make(chan error, 1),
	}
}

// Connect dials the server and logs in with the client's token.
func (c *Client) Connect(ctx context.Context) error {
	log.Info("Connecting to game server at %s", c.addr)
	conn, err := Dial(ctx, c.addr)
	if err != nil {
		return err
	}
	c.lock.Lock()
	c.conn = conn
	c.lock.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.handleMessages(conn)
	}()

	if err := c.login(ctx, conn); err != nil {
		c.Close()
		return err
	}
	return nil
}

func (c *Client) login(ctx context.Context, conn Conn) error {
	msg, err := messages.NewMessage(0, messages.MessageTypeClientLogin, &messages.ClientLogin{
		Token: c.token,
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	if err := conn.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send login: %v", err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for login: %v", ctx.Err())
	case err := <-c.readErrChan:
		return fmt.Errorf("connection closed during login: %v", err)
	case reply := <-c.loginChan:
		if reply.Type == messages.MessageTypeServerLoginFailure {
			failure := &messages.ServerLoginFailure{}
			if err := reply.DecodePayload(failure); err != nil {
				return err
			}
			return fmt.Errorf("server login failure: %s", failure.Reason)
		}
		success := &messages.ServerLoginSuccess{}
		if err := reply.DecodePayload(success); err != nil {
			return err
		}
		c.lock.Lock()
		c.clientID = success.ClientID
		c.userID = success.UserID
		c.lock.Unlock()
		log.Info("Connected to server with client ID %d as %s", success.ClientID, success.UserID)
		return nil
	}
}

func (c *Client) handleMessages(conn Conn) {
	for {
		msg, err := conn.Receive(context.Background())
		if err != nil {
			var closed *network.ErrConnectionClosed
			if !errors.As(err, &closed) {
				log.Error("Failed to read from server: %v", err)
			}
			select {
			case c.readErrChan <- err:
			default:
			}
			return
		}
		if err := c.handleMessage(msg); err != nil {
			log.Error("Failed to handle %s message: %v", msg.Type, err)
		}
	}
}

func (c *Client) handleMessage(msg *messages.Message) error {
	log.Trace("Received message from server of type %s", msg.Type)
	switch msg.Type {
	case messages.MessageTypeServerLoginSuccess, messages.MessageTypeServerLoginFailure:
		select {
		case c.loginChan <- msg:
		default:
			log.Warn("Dropping unexpected %s", msg.Type)
		}
	case messages.MessageTypeServerSyncTime:
		serverSyncTime := &messages.ServerSyncTime{}
		if err := msg.DecodePayload(serverSyncTime); err != nil {
			return err
		}
		select {
		case c.serverTimeChan <- serverSyncTime:
		default:
			log.Warn("Dropping late sync time reply")
		}
	default:
		if err := c.serverMessageQueue.Enqueue(msg); err != nil {
			return fmt.Errorf("failed to enqueue message: %v", err)
		}
	}
	return nil
}

// SyncTime measures the round trip to the server and updates ServerTime.
func (c *Client) SyncTime(ctx context.Context) error {
	sent := time.Now().UnixMilli()
	if err := c.Send(ctx, messages.MessageTypeClientSyncTime, &messages.ClientSyncTime{
		Timestamp: sent,
	}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for server sync time message")
	case serverSyncTime := <-c.serverTimeChan:
		rtt := time.Now().UnixMilli() - serverSyncTime.ClientTimestamp
		serverTime := serverSyncTime.Timestamp + rtt/2
		log.Trace("Server time: %d, ping: %d", serverTime, rtt)

		c.serverTimeMutex.Lock()
		defer c.serverTimeMutex.Unlock()
		c.recentRTTs = append(c.recentRTTs, rtt)
		for len(c.recentRTTs) > recentRTTCount {
			c.recentRTTs = c.recentRTTs[1:]
		}
		c.serverTime = serverTime
		c.ping = averageRTT(c.recentRTTs)
	}
	return nil
}

// ServerTime returns the server clock in unix milliseconds at the last sync
// and the average round trip in milliseconds.
func (c *Client) ServerTime() (serverTime int64, ping float64) {
	c.serverTimeMutex.Lock()
	defer c.serverTimeMutex.Unlock()
	return c.serverTime, c.ping
}

// Send encodes payload as a message of the given type and sends it.
func (c *Client) Send(ctx context.Context, messageType string, payload interface{}) error {
	c.lock.RLock()
	conn, clientID := c.conn, c.clientID
	c.lock.RUnlock()
	if conn == nil || clientID == 0 {
		return ErrNotConnected
	}

	msg, err := messages.NewMessage(clientID, messageType, payload)
	if err != nil {
		return err
	}
	if err := conn.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s: %v", messageType, err)
	}
	return nil
}

func (c *Client) CreateRoom(ctx context.Context, settings models.RoomSettings) error {
	return c.Send(ctx, messages.MessageTypeClientCreateRoom, &messages.CreateRoomRequest{Settings: settings})
}

func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	return c.sendRoomRequest(ctx, messages.MessageTypeClientJoinRoom, roomID)
}

func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	return c.sendRoomRequest(ctx, messages.MessageTypeClientLeaveRoom, roomID)
}

func (c *Client) RemovePlayer(ctx context.Context, roomID, playerID string) error {
	return c.Send(ctx, messages.MessageTypeClientRemovePlayer, &messages.RemovePlayerRequest{
		RoomID:   roomID,
		PlayerID: playerID,
	})
}

func (c *Client) StartGame(ctx context.Context, roomID string) error {
	return c.sendRoomRequest(ctx, messages.MessageTypeClientStartGame, roomID)
}

func (c *Client) JoinGame(ctx context.Context, roomID string) error {
	return c.sendRoomRequest(ctx, messages.MessageTypeClientJoinGame, roomID)
}

func (c *Client) PlayCard(ctx context.Context, roomID string, card types.Card) error {
	return c.Send(ctx, messages.MessageTypeClientPlayCard, &messages.PlayCardRequest{
		RoomID: roomID,
		Card:   card,
	})
}

func (c *Client) StartAutoroute(ctx context.Context, roomID string) error {
	return c.sendRoomRequest(ctx, messages.MessageTypeClientStartAutoroute, roomID)
}

func (c *Client) ChooseAceValue(ctx context.Context, roomID string, value int) error {
	return c.Send(ctx, messages.MessageTypeClientChooseAceValue, &messages.ChooseAceValueRequest{
		RoomID: roomID,
		Value:  value,
	})
}

func (c *Client) ChooseDirection(ctx context.Context, roomID string, direction types.Direction) error {
	return c.Send(ctx, messages.MessageTypeClientChooseDirection, &messages.ChooseDirectionRequest{
		RoomID:    roomID,
		Direction: direction,
	})
}

func (c *Client) Guess(ctx context.Context, roomID string, call types.Call) error {
	return c.Send(ctx, messages.MessageTypeClientGuess, &messages.GuessRequest{
		RoomID: roomID,
		Guess:  call,
	})
}

func (c *Client) RestartAutoroute(ctx context.Context, roomID string) error {
	return c.sendRoomRequest(ctx, messages.MessageTypeClientRestartAutoroute, roomID)
}

func (c *Client) sendRoomRequest(ctx context.Context, messageType, roomID string) error {
	return c.Send(ctx, messageType, &messages.RoomRequest{RoomID: roomID})
}

func (c *Client) ServerMessageQueue() queue.Queue {
	return c.serverMessageQueue
}

// Done receives the read error once the connection is gone.
func (c *Client) Done() <-chan error {
	return c.readErrChan
}

func (c *Client) ClientID() uint32 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.clientID
}

func (c *Client) UserID() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.userID
}

// Close closes the connection and waits for the reader to stop.
func (c *Client) Close() error {
	c.lock.Lock()
	conn := c.conn
	c.conn = nil
	c.clientID = 0
	c.lock.Unlock()
	if conn == nil {
		log.Warn("Client is already closed")
		return nil
	}
	err := conn.Close()
	c.wg.Wait()
	return err
}
