package messages

import (
	"encoding/json"
	"fmt"

	"github.com/cbodonnell/ninetyfive/pkg/game/types"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
)

const (
	// MessageBufferSize represents the maximum size of a message
	MessageBufferSize = 64 * 1024
)

// Client message types
const (
	MessageTypeClientLogin            = "login"
	MessageTypeClientSyncTime         = "sync_time"
	MessageTypeClientCreateRoom       = "create_room"
	MessageTypeClientJoinRoom         = "join_room"
	MessageTypeClientLeaveRoom        = "leave_room"
	MessageTypeClientRemovePlayer     = "remove_player"
	MessageTypeClientStartGame        = "start_game"
	MessageTypeClientJoinGame         = "join_game"
	MessageTypeClientPlayCard         = "play_card"
	MessageTypeClientStartAutoroute   = "start_autoroute"
	MessageTypeClientChooseAceValue   = "choose_ace_value"
	MessageTypeClientChooseDirection  = "choose_direction"
	MessageTypeClientGuess            = "guess_higher_lower"
	MessageTypeClientRestartAutoroute = "restart_autoroute"
)

// Server message types. Game events are sent with their event name as type.
const (
	MessageTypeServerLoginSuccess       = "login_success"
	MessageTypeServerLoginFailure       = "login_failure"
	MessageTypeServerSyncTime           = "sync_time"
	MessageTypeServerError              = "error"
	MessageTypeServerRoomUpdated        = "room_updated"
	MessageTypeServerRemovedFromRoom    = "removed_from_room"
	MessageTypeServerPlayerDisconnected = "player_disconnected"
	MessageTypeServerRoomClosed         = "room_closed"
)

// Message represents a generic message for serialization/deserialization
type Message struct {
	ClientID uint32          `json:"clientID"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
}

// NewMessage encodes payload as JSON into a message of the given type.
func NewMessage(clientID uint32, messageType string, payload interface{}) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", messageType, err)
	}
	return &Message{
		ClientID: clientID,
		Type:     messageType,
		Payload:  b,
	}, nil
}

// DecodePayload decodes the message payload into v.
func (m *Message) DecodePayload(v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("empty %s payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %v", m.Type, err)
	}
	return nil
}

type ClientLogin struct {
	Token string `json:"token"`
}

type ServerLoginSuccess struct {
	ClientID uint32 `json:"clientID"`
	UserID   string `json:"userId"`
}

type ServerLoginFailure struct {
	Reason string `json:"reason"`
}

type ClientSyncTime struct {
	Timestamp int64 `json:"timestamp"`
}

type ServerSyncTime struct {
	Timestamp       int64 `json:"timestamp"`
	ClientTimestamp int64 `json:"clientTimestamp"`
}

// ServerError is sent to the client whose request failed.
type ServerError struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Request is the type of the message that failed.
	Request string `json:"request,omitempty"`
}

// RoomRequest is the payload of every message that only names a room.
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type CreateRoomRequest struct {
	Settings models.RoomSettings `json:"settings"`
}

type RemovePlayerRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type PlayCardRequest struct {
	RoomID string     `json:"roomId"`
	Card   types.Card `json:"card"`
}

type ChooseAceValueRequest struct {
	RoomID string `json:"roomId"`
	Value  int    `json:"value"`
}

type ChooseDirectionRequest struct {
	RoomID    string          `json:"roomId"`
	Direction types.Direction `json:"direction"`
}

type GuessRequest struct {
	RoomID string     `json:"roomId"`
	Guess  types.Call `json:"guess"`
}

type ServerRoomUpdated struct {
	Room *models.Room `json:"room"`
}

type ServerRemovedFromRoom struct {
	RoomID string `json:"roomId"`
}

type ServerPlayerDisconnected struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type ServerRoomClosed struct {
	RoomID string `json:"roomId"`
}

var clientMessageTypes = map[string]bool{
	MessageTypeClientCreateRoom:       true,
	MessageTypeClientJoinRoom:         true,
	MessageTypeClientLeaveRoom:        true,
	MessageTypeClientRemovePlayer:     true,
	MessageTypeClientStartGame:        true,
	MessageTypeClientJoinGame:         true,
	MessageTypeClientPlayCard:         true,
	MessageTypeClientStartAutoroute:   true,
	MessageTypeClientChooseAceValue:   true,
	MessageTypeClientChooseDirection:  true,
	MessageTypeClientGuess:            true,
	MessageTypeClientRestartAutoroute: true,
}

// IsClientMessageType reports whether t is a request the game server queues.
// Login and time sync are answered by the transport and are not included.
func IsClientMessageType(t string) bool {
	return clientMessageTypes[t]
}
