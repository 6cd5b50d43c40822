package network

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/messages"
)

// frameHeaderSize is the length prefix in front of every TCP message.
const frameHeaderSize = 4

// TCPServer represents a TCP server.
type TCPServer struct {
	port int
}

type NewTCPServerOptions struct {
	Port int
}

// NewTCPServer creates a new TCP server.
func NewTCPServer(opts NewTCPServerOptions) *TCPServer {
	return &TCPServer{
		port: opts.Port,
	}
}

// Start starts the TCP server.
func (s *TCPServer) Start(ctx context.Context, disconnectHandler ControlDisconnectHandler, messageHandler ControlMessageHandler) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		log.Error("Failed to resolve TCP address: %v", err)
		return
	}

	tcpListener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		log.Error("Failed to listen on TCP address: %v", err)
		return
	}
	log.Info("TCP server listening on %s", tcpAddr.String())

	go func() {
		<-ctx.Done()
		tcpListener.Close()
	}()

	for {
		conn, err := tcpListener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				log.Info("TCP server closed")
				return
			}
			log.Error("Failed to accept TCP connection: %v", err)
			continue
		}

		go s.handleTCPConnection(ctx, conn, disconnectHandler, messageHandler)
	}
}

// handleTCPConnection reads messages until the connection closes. Messages
// are handled one at a time so a client's requests keep their order.
func (s *TCPServer) handleTCPConnection(ctx context.Context, conn net.Conn, disconnectHandler ControlDisconnectHandler, messageHandler ControlMessageHandler) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		disconnectHandler(conn, nil)
		conn.Close()
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		message, err := ReadMessageFromTCP(conn)
		if err != nil {
			var closed *ErrConnectionClosed
			if errors.As(err, &closed) {
				log.Trace("TCP connection closed for %s", conn.RemoteAddr().String())
				return
			}
			log.Error("Error reading TCP message from %s: %v", conn.RemoteAddr().String(), err)
			return
		}

		messageHandler(ctx, conn, nil, message)
	}
}

// WriteMessageToTCP writes a length-prefixed Message to a TCP connection
func WriteMessageToTCP(conn net.Conn, msg *messages.Message) error {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	frame := make([]byte, frameHeaderSize+len(b))
	binary.BigEndian.PutUint32(frame, uint32(len(b)))
	copy(frame[frameHeaderSize:], b)

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write message to TCP connection: %v", err)
	}

	return nil
}

// ErrConnectionClosed is returned when the TCP connection is closed
type ErrConnectionClosed struct{}

func (e *ErrConnectionClosed) Error() string {
	return "connection closed"
}

// ReadMessageFromTCP reads a length-prefixed Message from a TCP connection
func ReadMessageFromTCP(conn net.Conn) (*messages.Message, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return nil, &ErrConnectionClosed{}
		}
		return nil, fmt.Errorf("failed to read frame header: %v", err)
	}

	size := binary.BigEndian.Uint32(header)
	if size == 0 || size > messages.MessageBufferSize {
		return nil, fmt.Errorf("invalid frame size %d", size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(conn, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
			return nil, &ErrConnectionClosed{}
		}
		return nil, fmt.Errorf("failed to read frame: %v", err)
	}

	msg, err := messages.DeserializeMessage(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}

	return msg, nil
}
