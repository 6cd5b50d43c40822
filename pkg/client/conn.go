package client

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/messages"
	"github.com/cbodonnell/ninetyfive/pkg/network"
	"nhooyr.io/websocket"
)

// Conn is a connection to the game server over either transport.
type Conn interface {
	Send(ctx context.Context, msg *messages.Message) error
	// Receive blocks until the next message arrives or the connection closes.
	Receive(ctx context.Context) (*messages.Message, error)
	Close() error
}

// Dial connects to addr. ws:// and wss:// addresses use WebSocket; anything
// else, with or without a tcp:// prefix, is a TCP host:port.
func Dial(ctx context.Context, addr string) (Conn, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return dialWS(ctx, addr)
	}
	return dialTCP(ctx, strings.TrimPrefix(addr, "tcp://"))
}

type tcpConn struct {
	conn    net.Conn
	writeMu sync.Mutex
}

func dialTCP(ctx context.Context, addr string) (*tcpConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %v", err)
	}
	return &tcpConn{conn: conn}, nil
}

func (c *tcpConn) Send(ctx context.Context, msg *messages.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return network.WriteMessageToTCP(c.conn, msg)
}

func (c *tcpConn) Receive(ctx context.Context) (*messages.Message, error) {
	return network.ReadMessageFromTCP(c.conn)
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

type wsConn struct {
	conn *websocket.Conn
}

func dialWS(ctx context.Context, addr string) (*wsConn, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %v", err)
	}
	conn.SetReadLimit(messages.MessageBufferSize)
	return &wsConn{conn: conn}, nil
}

func (c *wsConn) Send(ctx context.Context, msg *messages.Message) error {
	return network.WriteMessageToWS(ctx, c.conn, msg)
}

func (c *wsConn) Receive(ctx context.Context) (*messages.Message, error) {
	msg, err := network.ReadMessageFromWS(ctx, c.conn)
	if err != nil && websocket.CloseStatus(err) != -1 {
		return nil, &network.ErrConnectionClosed{}
	}
	return msg, err
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
