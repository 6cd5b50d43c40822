package messages

import (
	"encoding/json"
	"testing"

	"github.com/cbodonnell/ninetyfive/pkg/game/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeMessage(t *testing.T) {
	tests := []struct {
		name    string
		message *Message
	}{
		{
			name: "play card",
			message: mustMessage(t, 7, MessageTypeClientPlayCard, PlayCardRequest{
				RoomID: "ABCDE",
				Card:   types.Card{Suit: types.SuitHearts, Rank: types.RankKing},
			}),
		},
		{
			name: "error",
			message: mustMessage(t, 1, MessageTypeServerError, ServerError{
				Code:    "not_your_turn",
				Kind:    "state",
				Message: "not your turn",
				Request: MessageTypeClientPlayCard,
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := SerializeMessage(tt.message)
			require.NoError(t, err)

			got, err := DeserializeMessage(b)
			require.NoError(t, err)
			assert.Equal(t, tt.message.ClientID, got.ClientID)
			assert.Equal(t, tt.message.Type, got.Type)
			assert.JSONEq(t, string(tt.message.Payload), string(got.Payload))
		})
	}
}

func TestDeserializeMessage_Malformed(t *testing.T) {
	_, err := DeserializeMessage([]byte("not zstd"))
	assert.Error(t, err)

	_, err = DeserializeMessageFlatbuffer([]byte{1})
	assert.Error(t, err)

	_, err = DeserializeMessageFlatbuffer([]byte{0xff, 0xff, 0xff, 0x7f})
	assert.Error(t, err)
}

func TestMessage_DecodePayload(t *testing.T) {
	m := mustMessage(t, 0, MessageTypeClientChooseAceValue, ChooseAceValueRequest{RoomID: "ABCDE", Value: 14})
	var req ChooseAceValueRequest
	require.NoError(t, m.DecodePayload(&req))
	assert.Equal(t, ChooseAceValueRequest{RoomID: "ABCDE", Value: 14}, req)

	empty := &Message{Type: MessageTypeClientJoinGame}
	assert.Error(t, empty.DecodePayload(&req))

	bad := &Message{Type: MessageTypeClientJoinGame, Payload: json.RawMessage(`[1]`)}
	assert.Error(t, bad.DecodePayload(&req))
}

func mustMessage(t *testing.T, clientID uint32, messageType string, payload interface{}) *Message {
	t.Helper()
	m, err := NewMessage(clientID, messageType, payload)
	require.NoError(t, err)
	return m
}
