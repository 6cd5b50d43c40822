package messages

import (
	"bytes"
	"fmt"
	"io"

	messagefb "github.com/cbodonnell/ninetyfive/flatbuffers/message"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
)

func SerializeMessage(m *Message) ([]byte, error) {
	b, err := SerializeMessageFlatbuffer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %v", err)
	}

	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := compWriter.Write(b); err != nil {
		return nil, fmt.Errorf("failed to compress message: %v", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return compressed.Bytes(), nil
}

func DeserializeMessage(data []byte) (*Message, error) {
	compReader, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer compReader.Close()
	b, err := io.ReadAll(io.LimitReader(compReader, MessageBufferSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed message: %v", err)
	}
	if len(b) > MessageBufferSize {
		return nil, fmt.Errorf("message exceeds %d bytes", MessageBufferSize)
	}

	message, err := DeserializeMessageFlatbuffer(b)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}

	return message, nil
}

func SerializeMessageFlatbuffer(m *Message) ([]byte, error) {
	builder := flatbuffers.NewBuilder(0)

	messageType := builder.CreateString(m.Type)
	payload := builder.CreateByteVector(m.Payload)

	messagefb.MessageStart(builder)
	messagefb.MessageAddClientId(builder, m.ClientID)
	messagefb.MessageAddType(builder, messageType)
	messagefb.MessageAddPayload(builder, payload)
	messageOffset := messagefb.MessageEnd(builder)
	builder.Finish(messageOffset)
	b := builder.FinishedBytes()

	return b, nil
}

// DeserializeMessageFlatbuffer decodes b, recovering from the panics the
// flatbuffers accessors raise on truncated input.
func DeserializeMessageFlatbuffer(b []byte) (message *Message, err error) {
	if len(b) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("message too short: %d bytes", len(b))
	}
	defer func() {
		if r := recover(); r != nil {
			message, err = nil, fmt.Errorf("malformed message: %v", r)
		}
	}()

	messageFlatbuffer := messagefb.GetRootAsMessage(b, 0)
	message = &Message{
		ClientID: messageFlatbuffer.ClientId(),
		Type:     string(messageFlatbuffer.Type()),
	}
	if payload := messageFlatbuffer.PayloadBytes(); payload != nil {
		message.Payload = append([]byte{}, payload...)
	}

	return message, nil
}
